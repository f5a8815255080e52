// Package app assembles the client: session login, local database, note
// store, change bus, sync orchestrator, timers and notification sources.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkuzmins/homeboard/internal/client/api"
	"github.com/mkuzmins/homeboard/internal/client/bus"
	"github.com/mkuzmins/homeboard/internal/client/config"
	"github.com/mkuzmins/homeboard/internal/client/localdb"
	"github.com/mkuzmins/homeboard/internal/client/models"
	"github.com/mkuzmins/homeboard/internal/client/notify"
	"github.com/mkuzmins/homeboard/internal/client/pending"
	"github.com/mkuzmins/homeboard/internal/client/store"
	"github.com/mkuzmins/homeboard/internal/client/syncer"
	"github.com/mkuzmins/homeboard/internal/client/timers"
	"github.com/mkuzmins/homeboard/internal/client/voice"
	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/logging"
)

const (
	driveTimeInterval = 5 * time.Minute
	weatherInterval   = 30 * time.Minute
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	localDB *sql.DB

	Store  *store.Store
	Timers *timers.Service
	Events *notify.EventStore

	syncer    *syncer.Syncer
	sweeper   *notify.Sweeper
	notifiers []*notify.Notifier
}

// NewApp logs the principal in (registering on first run), opens the local
// database and wires the sync core together.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if cfg.Login == "" {
		return nil, fmt.Errorf("login is required")
	}

	session, err := api.Login(ctx, cfg.ServerEndpointAddr, cfg.Login)
	if errors.Is(err, common.ErrNotFound) {
		if _, err := api.Register(ctx, cfg.ServerEndpointAddr, cfg.Login, ""); err != nil {
			return nil, fmt.Errorf("register error: %w", err)
		}
		session, err = api.Login(ctx, cfg.ServerEndpointAddr, cfg.Login)
	}
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	client := api.New(cfg.ServerEndpointAddr, session.Token)

	db, err := localdb.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("local db error: %w", err)
	}

	principal := session.User.ID
	tracker := pending.New()
	transport := bus.NewWSTransport(cfg.ChannelEndpointAddr, session.Token, logger)
	changeBus := bus.New(principal, transport, client, logger)
	st := store.New(client, tracker, changeBus, logger)
	sync := syncer.New(principal, changeBus, st, tracker, logger,
		syncer.WithPollInterval(cfg.PollInterval))

	eventStore := notify.NewEventStore(db)
	timerService := timers.NewService(timers.NewRepository(db))

	app := &App{
		config:  cfg,
		logger:  logger,
		localDB: db,
		Store:   st,
		Timers:  timerService,
		Events:  eventStore,
		syncer:  sync,
	}
	app.sweeper = notify.NewSweeper(eventStore, app.announce, logger)

	if cfg.DriveTimeURL != "" {
		source := notify.NewDriveTimeSource(cfg.DriveTimeURL, cfg.DriveTimeThreshold)
		app.notifiers = append(app.notifiers,
			notify.New(source, app.announce, driveTimeInterval, logger))
	}
	if cfg.WeatherURL != "" {
		source := notify.NewWeatherSource(cfg.WeatherURL, notify.TimeWindow{})
		app.notifiers = append(app.notifiers,
			notify.New(source, app.announce, weatherInterval, logger))
	}

	return app, nil
}

// announce is the sink for every notification surface.
func (app *App) announce(msg notify.Message) {
	app.logger.Info(context.Background(), "notification",
		"type", msg.Type, "name", msg.Name, "due", msg.Due)
}

// Run loads the initial snapshot and serves until the context is cancelled
// or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Store.Load(ctx); err != nil {
		return fmt.Errorf("initial load error: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.syncer.Run(ctx) })
	g.Go(func() error {
		app.sweeper.Run(ctx)
		return nil
	})
	for _, n := range app.notifiers {
		n := n
		g.Go(func() error {
			n.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return app.localDB.Close()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleVoice parses a transcribed utterance and executes the matched
// command. The reply is what a voice surface would speak back.
func (app *App) HandleVoice(ctx context.Context, text string) (string, error) {
	action, ok := voice.Parse(text)
	if !ok {
		return "", fmt.Errorf("no matching command for %q", text)
	}

	switch a := action.(type) {
	case voice.StartTimer:
		timer, err := app.Timers.Start(ctx, a.Name, a.Duration)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s set for %s", timer.Name, a.Duration), nil
	case voice.StopTimer:
		if err := app.Timers.Stop(ctx, a.Name); err != nil {
			return "", err
		}
		return "timer stopped", nil
	case voice.AddToList:
		if err := app.addToList(ctx, a.List, a.Item); err != nil {
			return "", err
		}
		return fmt.Sprintf("added %s to %s", a.Item, a.List), nil
	}
	return "", fmt.Errorf("unsupported command")
}

// addToList appends an item to the list note whose first line matches the
// list name, creating the note when no such list exists.
func (app *App) addToList(ctx context.Context, list, item string) error {
	target := app.findListNote(list)
	if target == nil {
		note, err := app.Store.CreateNote(ctx)
		if err != nil {
			return err
		}
		content := list + "\n- " + item
		return app.Store.SaveContent(ctx, note.ID, content)
	}
	content := target.Content + "\n- " + item
	return app.Store.SaveContent(ctx, target.ID, content)
}

func (app *App) findListNote(list string) *models.Note {
	for _, note := range app.Store.Notes() {
		title, _, _ := strings.Cut(note.Content, "\n")
		if strings.EqualFold(strings.TrimSpace(title), list) {
			n := note
			return &n
		}
	}
	return nil
}
