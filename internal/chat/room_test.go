package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gugu/cmiuc-client/internal/apperror"
	"github.com/gugu/cmiuc-client/internal/channel"
	"github.com/gugu/cmiuc-client/internal/config"
	"github.com/gugu/cmiuc-client/internal/entity"
	"github.com/gugu/cmiuc-client/testing/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCredentials string

func (that staticCredentials) ConnectHeaders() map[string]string {
	return map[string]string{"token": string(that)}
}

func (that staticCredentials) SendHeaders() map[string]string {
	return map[string]string{"accessToken": string(that)}
}

func (that staticCredentials) Expired() bool {
	return false
}

func joinRoom(t *testing.T, b *broker.Broker, sender string) *Room {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := channel.New(logger, staticCredentials("bearer-1"), channel.Options{
		Endpoint: b.URL(),
		Reconnect: config.Reconnect{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			MaxElapsedTime:  time.Second,
		},
	})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	room := NewRoom(logger, client, "1", sender)
	require.NoError(t, room.Join())
	b.WaitSubscribers(channel.ChatTopic("1"), 1)

	return room
}

func broadcast(t *testing.T, b *broker.Broker, kind entity.MessageType, sender, message string) {
	t.Helper()

	body, err := entity.EncodeEvent("1", entity.ChatEvent{Type: kind, Message: entity.ChatMessage{Sender: sender, Message: message}})
	require.NoError(t, err)

	b.Publish(channel.ChatTopic("1"), body)
}

func TestRoom_Receive(t *testing.T) {
	t.Run("Log equals the broadcasts in delivery order", func(t *testing.T) {
		// Given: a joined room
		b := broker.New(t)
		room := joinRoom(t, b, "tom")

		// When: the server broadcasts an enter notice and twenty lines
		broadcast(t, b, entity.MessageEnter, "jerry", "jerry joined")
		want := []entity.ChatMessage{{Sender: "jerry", Message: "jerry joined"}}
		for i := 0; i < 20; i++ {
			message := entity.ChatMessage{Sender: "jerry", Message: fmt.Sprintf("line %d", i)}
			broadcast(t, b, entity.MessageTalk, message.Sender, message.Message)
			want = append(want, message)
		}

		// Then: the log holds every message once, in order
		require.Eventually(t, func() bool { return len(room.Messages()) == len(want) }, 5*time.Second, 10*time.Millisecond)
		assert.Equal(t, want, room.Messages())
	})

	t.Run("Callback runs after each append", func(t *testing.T) {
		b := broker.New(t)
		room := joinRoom(t, b, "tom")

		seen := make(chan entity.ChatMessage, 1)
		room.OnMessage(func(message entity.ChatMessage) { seen <- message })

		broadcast(t, b, entity.MessageTalk, "jerry", "hi")

		select {
		case message := <-seen:
			assert.Equal(t, "jerry : hi", room.Format(message))
		case <-time.After(5 * time.Second):
			t.Fatal("callback not called")
		}
	})
}

func TestRoom_Send(t *testing.T) {
	t.Run("Publishes sender and message", func(t *testing.T) {
		b := broker.New(t)
		room := joinRoom(t, b, "tom")

		_, err := room.Send(context.Background(), "  hello  ")
		require.NoError(t, err)

		sent := b.NextSent()
		assert.Equal(t, "/pub/games/room/1/chat", sent.Destination)
		assert.Equal(t, "bearer-1", sent.Headers["accessToken"])
		assert.JSONEq(t, `{"sender":"tom","message":"hello"}`, string(sent.Body))
	})

	t.Run("Empty lines are rejected", func(t *testing.T) {
		b := broker.New(t)
		room := joinRoom(t, b, "tom")

		_, err := room.Send(context.Background(), "   ")

		require.ErrorIs(t, err, apperror.ErrEmptyMessage)
		b.NoSent(50 * time.Millisecond)
	})
}

func TestRoom_Leave(t *testing.T) {
	// Given: a room with one received message
	b := broker.New(t)
	room := joinRoom(t, b, "tom")

	broadcast(t, b, entity.MessageTalk, "jerry", "before")
	require.Eventually(t, func() bool { return len(room.Messages()) == 1 }, 5*time.Second, 10*time.Millisecond)

	// When: leaving the room
	require.NoError(t, room.Leave())
	b.WaitSubscribers(channel.ChatTopic("1"), 0)

	// Then: later broadcasts do not reach the log and sending fails
	broadcast(t, b, entity.MessageTalk, "jerry", "after")
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, room.Messages(), 1)

	_, err := room.Send(context.Background(), "bye")
	require.ErrorIs(t, err, apperror.ErrChannelClosed)
	require.NoError(t, room.Leave())
}

func TestRoom_Format(t *testing.T) {
	room := NewRoom(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, "1", "tom")

	assert.Equal(t, "system notice", room.Format(entity.ChatMessage{Message: "system notice"}))
	assert.Equal(t, "jerry : hi", room.Format(entity.ChatMessage{Sender: "jerry", Message: "hi"}))
	assert.Equal(t, "tom (me) : hi", room.Format(entity.ChatMessage{Sender: "tom", Message: "hi"}))
}
