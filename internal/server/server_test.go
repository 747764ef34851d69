package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gugu/cmiuc-client/internal/entity"
	"github.com/gugu/cmiuc-client/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type chatLogMock struct {
	mock.Mock
}

func (that *chatLogMock) Messages() []entity.ChatMessage {
	args := that.Called()
	return args.Get(0).([]entity.ChatMessage)
}

type gameViewMock struct {
	mock.Mock
}

func (that *gameViewMock) View(ctx context.Context) (game.View, error) {
	args := that.Called(ctx)
	return args.Get(0).(game.View), args.Error(1)
}

func (that *gameViewMock) Timer(ctx context.Context) (game.Timer, error) {
	args := that.Called(ctx)
	return args.Get(0).(game.Timer), args.Error(1)
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	server.Handler().ServeHTTP(recorder, request)

	body, err := io.ReadAll(recorder.Result().Body)
	require.NoError(t, err)

	return recorder.Code, string(body)
}

func newServer(chat ChatLog, view GameView) *Server {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), ":0", chat, view)
}

func TestServer_Ping(t *testing.T) {
	code, body := get(t, newServer(nil, nil), "/ping")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong", body)
}

func TestServer_ChatMessages(t *testing.T) {
	t.Run("Lists the log in order", func(t *testing.T) {
		// Given: a room with two messages
		chat := &chatLogMock{}
		chat.On("Messages").Return([]entity.ChatMessage{
			{Sender: "tom", Message: "hi"},
			{Sender: "jerry", Message: "hello"},
		})

		// When: asking for the log
		code, body := get(t, newServer(chat, nil), "/chat/messages")

		// Then: both come back in order
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `[{"sender":"tom","message":"hi"},{"sender":"jerry","message":"hello"}]`, body)
		chat.AssertExpectations(t)
	})

	t.Run("No room", func(t *testing.T) {
		code, _ := get(t, newServer(nil, nil), "/chat/messages")

		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestServer_Game(t *testing.T) {
	t.Run("View snapshot", func(t *testing.T) {
		view := &gameViewMock{}
		view.On("View", mock.Anything).Return(game.View{
			GameID:    "g1",
			GameState: entity.StateRound,
			Round:     1,
			TableCard: entity.TableCard{301},
			Remaining: 2,
		}, nil)

		code, body := get(t, newServer(nil, view), "/game/view")

		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, `"gameState":"ROUND"`)
		assert.Contains(t, body, `"tableCard":[301]`)
		view.AssertExpectations(t)
	})

	t.Run("Timer", func(t *testing.T) {
		view := &gameViewMock{}
		view.On("Timer", mock.Anything).Return(game.Timer{GameState: entity.StateDrawCard, Remaining: 118}, nil)

		code, body := get(t, newServer(nil, view), "/game/timer")

		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"gameState":"DRAW_CARD","remaining":118}`, body)
	})

	t.Run("Stopped view", func(t *testing.T) {
		view := &gameViewMock{}
		view.On("View", mock.Anything).Return(game.View{}, game.ErrNotRunning)

		code, body := get(t, newServer(nil, view), "/game/view")

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body, game.ErrNotRunning.Error())
	})

	t.Run("No game", func(t *testing.T) {
		code, _ := get(t, newServer(nil, nil), "/game/timer")

		assert.Equal(t, http.StatusNotFound, code)
	})
}
