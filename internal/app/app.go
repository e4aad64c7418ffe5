package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"power-saver/internal/api"
	"power-saver/internal/config"
	"power-saver/internal/control"
	"power-saver/internal/pricing"
	"power-saver/internal/schedule"
	"power-saver/internal/scheduler"
	"power-saver/internal/service"
	"power-saver/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() pricing.Source {
	return pricing.NewNordPool(pricing.NordPoolOptions{
		BaseURL:   a.Config.Pricing.BaseURL,
		Area:      a.Config.Pricing.Area,
		Currency:  a.Config.Pricing.Currency,
		Timeout:   a.Config.Pricing.RequestTimeout,
		UserAgent: a.Config.Pricing.UserAgent,
	}, a.Logger)
}

func (a *App) newSwitch() control.Switch {
	if a.Config.Control.Enabled {
		return control.NewWebhookSwitch(
			a.Config.Control.OnURL,
			a.Config.Control.OffURL,
			a.Config.Control.RequestTimeout,
			a.Logger,
		)
	}
	return control.NopSwitch{}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running scheduling service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToSlot:  a.Config.Scheduler.AlignToSlot,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	var states storage.StateStore
	var snapshots storage.SnapshotStore
	var prices storage.PriceStore
	if store != nil {
		states = store
		snapshots = store
		prices = store
	}

	svc, err := service.New(a.Config, service.Options{
		Scheduler: sched,
		Engine:    schedule.NewEngine(a.Logger),
		Source:    a.newSource(),
		States:    states,
		Snapshots: snapshots,
		Prices:    prices,
		Switch:    a.newSwitch(),
	}, a.Logger)
	if err != nil {
		return err
	}

	if a.Config.API.Enabled {
		a.startAPI(ctx, svc)
	}

	a.Logger.Info().Str("instance", a.Config.Planner.Instance).Msg("starting scheduling service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("scheduling service stopped")
	return nil
}

func (a *App) startAPI(ctx context.Context, svc *service.Service) {
	server := &http.Server{
		Addr:              a.Config.API.Listen,
		Handler:           api.NewServer(svc, a.Logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.Logger.Info().Str("listen", a.Config.API.Listen).Msg("starting HTTP API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("HTTP API terminated")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// PlanOptions configure the offline plan command.
type PlanOptions struct {
	PricesPath string
	At         *time.Time
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	// Since also lists the snapshot history of the given trailing window.
	Since time.Duration
}

// ExportOptions hold parameters for exporting stored prices and schedules.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
