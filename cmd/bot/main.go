package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rafaello-cc/levelbot/internal/bot"
	"github.com/rafaello-cc/levelbot/internal/guildstate"
	"github.com/rafaello-cc/levelbot/internal/progression"
	"github.com/rafaello-cc/levelbot/internal/rest"
	"github.com/rafaello-cc/levelbot/internal/setup"
	"github.com/rafaello-cc/levelbot/internal/worker/core"
	"github.com/rafaello-cc/levelbot/internal/worker/levelsync"
	"github.com/rafaello-cc/levelbot/internal/worker/tenure"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	// Job interval fallbacks when the config leaves them unset.
	defaultTenureIntervalMinutes = 24 * 60
	defaultSyncIntervalMinutes   = 10
)

func main() {
	cmd := &cli.Command{
		Name:  "bot",
		Usage: "Start the levelbot gateway, scheduled jobs, and dashboard API",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return run(ctx)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	// One lock instance serializes all writers of a progression record:
	// event handlers and both scheduled jobs.
	locks := progression.NewRecordLock()
	stateCache := guildstate.NewCache(app.Logger)

	discordBot, err := bot.New(&app.Config.Bot, app.DB, stateCache, locks, app.Logger)
	if err != nil {
		return err
	}

	if err := discordBot.Start(ctx); err != nil {
		return err
	}
	defer discordBot.Close(context.Background())

	group, ctx := errgroup.WithContext(ctx)

	startJobs(ctx, group, app, discordBot, locks)

	if app.Config.Bot.API.Enabled {
		startAPIServer(ctx, group, app, stateCache)
	}

	app.Logger.Info("Bot has been started, waiting for interrupt signal")

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// startJobs launches the tenure and level sync jobs on their configured
// intervals.
func startJobs(
	ctx context.Context,
	group *errgroup.Group,
	app *setup.App,
	discordBot *bot.Bot,
	locks *progression.RecordLock,
) {
	store := app.DB.Model().Progression()
	notifier := discordBot.Notifier()

	tenureInterval := intervalOrDefault(app.Config.Bot.Jobs.TenureIntervalMinutes, defaultTenureIntervalMinutes)
	syncInterval := intervalOrDefault(app.Config.Bot.Jobs.SyncIntervalMinutes, defaultSyncIntervalMinutes)

	tenureJob := tenure.New(
		store, notifier, locks,
		core.NewStatusReporter(app.StatusClient, "tenure", app.Logger),
		tenureInterval, app.Logger,
	)
	syncJob := levelsync.New(
		store, notifier, locks,
		core.NewStatusReporter(app.StatusClient, "level_sync", app.Logger),
		syncInterval, app.Logger,
	)

	group.Go(func() error {
		tenureJob.Start(ctx)
		return nil
	})
	group.Go(func() error {
		syncJob.Start(ctx)
		return nil
	})
}

// startAPIServer launches the dashboard API and shuts it down when the
// context is canceled.
func startAPIServer(ctx context.Context, group *errgroup.Group, app *setup.App, stateCache *guildstate.Cache) {
	monitor := core.NewMonitor(app.StatusClient, app.Logger)

	srv := &http.Server{
		Addr:              app.Config.Bot.API.Addr,
		Handler:           rest.NewServer(app.DB, stateCache, monitor, app.Logger),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group.Go(func() error {
		app.Logger.Info("Starting dashboard API", zap.String("addr", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})
}

func intervalOrDefault(minutes, fallback int) time.Duration {
	if minutes <= 0 {
		minutes = fallback
	}

	return time.Duration(minutes) * time.Minute
}
