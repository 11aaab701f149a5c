package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/example/focus-timer/internal/application"
	"github.com/example/focus-timer/internal/config"
	httptransport "github.com/example/focus-timer/internal/http"
	"github.com/example/focus-timer/internal/logging"
	"github.com/example/focus-timer/internal/persistence/sqlite"
)

// services bundles the storage and the application layer built on it.
type services struct {
	storage *sqlite.Storage
	timer   *application.TimerService
	auth    *application.OwnerAuthService
	logger  *slog.Logger
}

func newLogger(level slog.Level) *slog.Logger {
	return logging.New(os.Stderr, level)
}

// openServices opens and migrates storage and wires the application services.
func openServices(ctx context.Context, cfg config.Config, now func() time.Time, logger *slog.Logger) (*services, error) {
	storage, err := sqlite.Open(ctx, cfg.SQLiteDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	if now == nil {
		now = time.Now
	}
	idGenerator := func() string { return uuid.NewString() }

	archiver := application.NewArchiverWithLogger(newActivityRepositoryAdapter(storage), cfg.Location, idGenerator, now, logger)
	timer := application.NewTimerServiceWithLogger(
		newSessionRepositoryAdapter(storage),
		newEventRepositoryAdapter(storage),
		archiver,
		idGenerator,
		now,
		logger,
	)
	auth := application.NewOwnerAuthServiceWithLogger(newCredentialRepositoryAdapter(storage), nil, nil, now, cfg.CredentialCacheTTL, logger)

	return &services{storage: storage, timer: timer, auth: auth, logger: logger}, nil
}

func (s *services) Close() error {
	return s.storage.Close()
}

// handler builds the authenticated HTTP surface.
func (s *services) handler() http.Handler {
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Timer:    httptransport.NewTimerHandler(s.timer, s.logger),
		Activity: httptransport.NewActivityHandler(s.timer, s.logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(s.logger),
			httptransport.RequireOwner(s.auth, s.logger, httptransport.HealthPath),
		},
	})
	return router
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
