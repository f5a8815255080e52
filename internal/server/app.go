// Package server initializes and runs the homeboard server: it opens the
// database, applies migrations, wires the services to the channel hub and
// starts the HTTP endpoint and the trash retention sweep.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/server/config"
	"github.com/mkuzmins/homeboard/internal/server/httpapi"
	"github.com/mkuzmins/homeboard/internal/server/hub"
	"github.com/mkuzmins/homeboard/internal/server/repositories/repomanager"
	"github.com/mkuzmins/homeboard/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	hub         *hub.Hub
	noteService *services.NoteService
	api         *httpapi.API
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	userService := services.NewUserService(db, rm, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	h := hub.New(userService, logger)

	noteService := services.NewNoteService(db, rm, h, logger)
	tagService := services.NewTagService(db, rm, noteService, h, logger)

	api := httpapi.New(userService, noteService, tagService, h, logger)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		hub:         h,
		noteService: noteService,
		api:         api,
	}, nil
}

// Run serves until the context is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.api.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		app.runRetentionSweep(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		app.logger.Info(ctx, "shutting down")
		app.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return app.db.Close()
	})

	return g.Wait()
}

// runRetentionSweep purges expired trash on an interval until the context is
// cancelled.
func (app *App) runRetentionSweep(ctx context.Context) {
	ticker := time.NewTicker(app.config.RetentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := app.noteService.PurgeExpiredTrash(ctx)
			if err != nil {
				app.logger.Warn(ctx, "retention sweep failed", "error", err)
				continue
			}
			if purged > 0 {
				app.logger.Info(ctx, "purged expired trash", "count", purged)
			}
		}
	}
}
