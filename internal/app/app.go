package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/framechat-server/internal/config"
	"github.com/vovakirdan/framechat-server/internal/core"
	"github.com/vovakirdan/framechat-server/internal/log"
	"github.com/vovakirdan/framechat-server/internal/store"
	"github.com/vovakirdan/framechat-server/internal/store/sqlite"
	transporttcp "github.com/vovakirdan/framechat-server/internal/transport/tcp"
	transportws "github.com/vovakirdan/framechat-server/internal/transport/ws"
)

// App wires the router, store, and transports together.
type App struct {
	tcpServer       *transporttcp.Server
	httpServer      *stdhttp.Server
	shutdownTimeout time.Duration
	history         store.MessageStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. One router
// instance is shared by the TCP listener and the websocket bridge, so
// sessions from either transport see each other.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	var history store.MessageStore
	if cfg.DatabasePath != "" {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		history = st
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("message log initialized")
	}

	router := core.NewRouter(history, cfg.MaxBodyBytes, log.Component(logger, "router"))

	tcpServer, err := transporttcp.NewServer(router, cfg, log.Component(logger, "tcp"))
	if err != nil {
		if history != nil {
			history.Close()
		}
		return nil, err
	}

	httpServer := transportws.NewServer(router, cfg, log.Component(logger, "ws"))

	return &App{
		tcpServer:       tcpServer,
		httpServer:      httpServer,
		shutdownTimeout: cfg.ShutdownTimeout,
		history:         history,
		log:             logger,
	}, nil
}

// Run starts both transports and blocks until context cancellation or a
// fatal listener error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 2)

	tcpCtx, cancelTCP := context.WithCancel(ctx)
	defer cancelTCP()

	if err := a.tcpServer.Listen(); err != nil {
		a.cleanup()
		return err
	}

	go func() {
		serverErr <- a.tcpServer.Run(tcpCtx)
	}()

	go func() {
		a.log.Info().Str("addr", a.httpServer.Addr).Msg("http server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		cancelTCP()
		a.httpServer.Close()
		<-serverErr
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down")
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("http shutdown")
		}
		cancelTCP()
		<-serverErr
		<-serverErr
		a.cleanup()
		return nil
	}
}

// cleanup closes the message log and other resources.
func (a *App) cleanup() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
