package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xtremettt/backend/internal/config"
	"github.com/xtremettt/backend/internal/directory"
	"github.com/xtremettt/backend/internal/dispatcher"
	"github.com/xtremettt/backend/internal/repository"
	"github.com/xtremettt/backend/internal/repository/storage"
	"github.com/xtremettt/backend/internal/token"
	"github.com/xtremettt/backend/internal/transport/rest"
	"github.com/xtremettt/backend/internal/transport/websocket"
	"github.com/xtremettt/backend/internal/usecase"
)

// RunApp - wires the components and runs the servers until a signal or a
// server failure.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	codec, err := buildCodec(log, conf)
	if err != nil {
		return err
	}

	sessions, closeStorage, err := buildSessionRepository(ctx, conf)
	if err != nil {
		return err
	}
	defer func() {
		if err = closeStorage(); err != nil {
			log.Error("could not close session storage", "error", err)
		}
	}()

	dir := directory.New()
	events := dispatcher.New(logger.With("component", "dispatcher"), dir, codec)
	gameManager := usecase.NewGameManager(logger.With("component", "games"), sessions, codec)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.ListenAddr, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run WebSocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger.With("component", "websocket"), gameManager, dir, events)
		if wsErr := wsServer.Start(ctx, conf.ListenAddr, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// buildCodec sources the token key from configuration so saved games survive
// restarts; without one a fresh key is generated for this process only.
func buildCodec(log *slog.Logger, conf *config.Config) (*token.Codec, error) {
	if conf.TokenKey == "" {
		key, err := token.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("could not generate token key: %w", err)
		}

		log.Warn("token key not configured, saved games will not survive a restart")

		return token.New(key)
	}

	key, err := hex.DecodeString(conf.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("token key is not valid hex: %w", err)
	}

	return token.New(key)
}

func buildSessionRepository(ctx context.Context, conf *config.Config) (repository.SessionRepository, func() error, error) {
	switch conf.Storage.Type {
	case "", "memory":
		return repository.NewMemorySessionRepository(), func() error { return nil }, nil
	case "redis":
		client, err := storage.New(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		return repository.NewRedisSessionRepository(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type: %q", conf.Storage.Type)
	}
}
