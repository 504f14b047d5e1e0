package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/fileflow/fileflow-server/internal/auth"
	"github.com/fileflow/fileflow-server/internal/config"
	"github.com/fileflow/fileflow-server/internal/core"
	"github.com/fileflow/fileflow-server/internal/service/files"
	"github.com/fileflow/fileflow-server/internal/service/friends"
	"github.com/fileflow/fileflow-server/internal/store"
	"github.com/fileflow/fileflow-server/internal/store/sqlite"
	transporthttp "github.com/fileflow/fileflow-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	// Initialize database store
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		st.Close()
		return nil, fmt.Errorf("init upload dir: %w", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}

	authService := auth.NewService(st, jwtConfig)
	friendService := friends.New(st)
	fileService := files.New(st, cfg.UploadDir, cfg.MaxUploadSize)

	registry := core.NewRegistry()
	bridge := core.NewStoreBridge(st)
	engine := core.NewEngine(registry, bridge, bridge, bridge, logger,
		core.WithHistoryLimit(cfg.HistoryLimit))

	server := transporthttp.NewServer(transporthttp.Deps{
		Engine:        engine,
		AuthService:   authService,
		FriendService: friendService,
		FileService:   fileService,
		Store:         st,
		Config:        cfg,
		Log:           logger,
	})

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
