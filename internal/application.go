package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gugu/cmiuc-client/internal/channel"
	"github.com/gugu/cmiuc-client/internal/config"
	"github.com/gugu/cmiuc-client/internal/repository"
	"github.com/gugu/cmiuc-client/internal/repository/storage"
	"github.com/gugu/cmiuc-client/internal/server"
	"github.com/gugu/cmiuc-client/internal/session"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// App holds what every command needs: config, the credential store and the
// bearer credentials loaded from it.
type App struct {
	logger      *slog.Logger
	conf        *config.Config
	storage     *storage.RedisStorage
	credentials *session.Credentials
}

// New connects the credential store.
func New(ctx context.Context, logger *slog.Logger, conf *config.Config) (*App, error) {
	redisAddrString := conf.Redis.GetRedisAddr()
	if conf.Redis.Host == "" || redisAddrString == "" {
		return nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	credentialRepo := repository.NewCredentialRepository(redisStorage.Connection)

	return &App{
		logger:      logger,
		conf:        conf,
		storage:     redisStorage,
		credentials: session.NewCredentials(credentialRepo, conf.Credential.Key),
	}, nil
}

func (that *App) Close() {
	if err := that.storage.Close(); err != nil {
		that.logger.Error("could not close redis storage", "error", err)
	}
}

func (that *App) Login(ctx context.Context, token string) error {
	if err := that.credentials.Login(ctx, token); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	that.logger.Info("logged in", "component", "app", "memberID", that.credentials.MemberID())

	return nil
}

func (that *App) Logout(ctx context.Context) error {
	if err := that.credentials.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	that.logger.Info("logged out", "component", "app")

	return nil
}

// connect loads the stored credentials and opens the realtime channel.
func (that *App) connect(ctx context.Context) (*channel.Client, error) {
	if err := that.credentials.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("no usable credential, run login first: %w", err)
	}

	client := channel.New(that.logger, that.credentials, channel.OptionsFromConfig(that.conf))
	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// serveStatus runs the status server when an address is configured.
func (that *App) serveStatus(ctx context.Context, chat server.ChatLog, view server.GameView) <-chan error {
	errs := make(chan error, 1)

	if that.conf.Status.Addr == "" {
		return errs
	}

	go func() {
		status := server.New(that.logger, that.conf.Status.Addr, chat, view)
		if err := status.Run(ctx); err != nil {
			errs <- err
		}
	}()

	return errs
}

// WithSignals cancels the returned context on SIGINT or SIGTERM.
func WithSignals(ctx context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
