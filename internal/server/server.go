// Package server exposes the local views over HTTP for status checks.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gugu/cmiuc-client/internal/entity"
	"github.com/gugu/cmiuc-client/internal/game"
	"github.com/gugu/cmiuc-client/pkg/handlers"
	"github.com/julienschmidt/httprouter"
)

const (
	requestTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

type ChatLog interface {
	Messages() []entity.ChatMessage
}

type GameView interface {
	View(ctx context.Context) (game.View, error)
	Timer(ctx context.Context) (game.Timer, error)
}

type Server struct {
	logger *slog.Logger
	addr   string
	chat   ChatLog
	game   GameView
	router *httprouter.Router
}

// New builds the routes. chat and game may be nil when the command does not
// run that view.
func New(logger *slog.Logger, addr string, chat ChatLog, view GameView) *Server {
	server := &Server{
		logger: logger.With("component", "server"),
		addr:   addr,
		chat:   chat,
		game:   view,
		router: httprouter.New(),
	}

	server.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, recovered any) {
		server.logger.Error("handler panicked", "path", r.URL.Path, "panic", recovered)
		handlers.WriteError(w, http.StatusInternalServerError, "internal error")
	}

	server.router.GET("/ping", handlers.PingHandler)
	server.router.GET("/chat/messages", server.chatMessages)
	server.router.GET("/game/view", server.gameView)
	server.router.GET("/game/timer", server.gameTimer)

	return server
}

func (that *Server) Handler() http.Handler {
	return that.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (that *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              that.addr,
		Handler:           that.router,
		ReadHeaderTimeout: requestTimeout,
		WriteTimeout:      requestTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		that.logger.Info("status server listening", "addr", that.addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}

	return nil
}

func (that *Server) chatMessages(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if that.chat == nil {
		handlers.WriteError(w, http.StatusNotFound, "no chat room joined")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, that.chat.Messages())
}

func (that *Server) gameView(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if that.game == nil {
		handlers.WriteError(w, http.StatusNotFound, "no game running")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := that.game.View(ctx)
	if err != nil {
		that.unavailable(w, "gameView", err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, view)
}

func (that *Server) gameTimer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if that.game == nil {
		handlers.WriteError(w, http.StatusNotFound, "no game running")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	timer, err := that.game.Timer(ctx)
	if err != nil {
		that.unavailable(w, "gameTimer", err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, timer)
}

func (that *Server) unavailable(w http.ResponseWriter, method string, err error) {
	that.logger.Warn("game view unavailable", "method", method, "error", err)
	handlers.WriteError(w, http.StatusServiceUnavailable, err.Error())
}
