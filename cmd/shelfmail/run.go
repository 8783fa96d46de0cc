package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfmail/shelfmail/internal/database"
	"github.com/shelfmail/shelfmail/internal/handler"
	"github.com/shelfmail/shelfmail/internal/metrics"
	"github.com/shelfmail/shelfmail/internal/middleware"
	"github.com/shelfmail/shelfmail/internal/router"
	"github.com/shelfmail/shelfmail/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the overdue scan on its schedule until interrupted",
	RunE:  runRun,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one overdue scan now and exit",
	RunE:  runScan,
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		locker scheduler.Locker
		deps   = map[string]handler.Pinger{"postgres": a.db}
	)
	if a.cfg.Redis.Enabled {
		rdb, err := database.NewRedis(a.cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = rdb
		deps["redis"] = rdb
		log.Info().Msg("connected to Redis, scan lock enabled")
	}

	trigger, err := scheduler.NewTrigger(scheduler.Options{
		Interval:   a.cfg.Scheduler.Interval,
		StartAt:    a.cfg.Scheduler.StartAt,
		RunOnStart: a.cfg.Scheduler.RunOnStart,
		LockKey:    a.cfg.Scheduler.LockKey,
		LockTTL:    a.cfg.Scheduler.LockTTL,
	}, locker, log)
	if err != nil {
		return err
	}

	var srv *http.Server
	if a.cfg.Metrics.Enabled {
		srv = &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           router.New(handler.New(deps, version, log), middleware.New(log), metrics.Handler()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("ops endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("ops server error")
			}
		}()
	}

	log.Info().
		Dur("interval", a.cfg.Scheduler.Interval).
		Str("start_at", a.cfg.Scheduler.StartAt).
		Msg("starting overdue reminder scheduler")

	err = trigger.Run(ctx, func(ctx context.Context) error {
		_, err := a.reminders.Scan(ctx)
		return err
	})

	log.Info().Msg("shutting down...")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			log.Warn().Err(serr).Msg("ops server forced to shutdown")
		}
	}
	return err
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := a.reminders.Scan(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
