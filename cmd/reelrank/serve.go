package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reelrank/reelrank/internal/api"
	"github.com/reelrank/reelrank/internal/health"
	"github.com/reelrank/reelrank/internal/scheduler"
	"github.com/reelrank/reelrank/internal/scheduler/tasks"
	"github.com/reelrank/reelrank/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run scheduled recommendation passes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a, runOnStart)
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run a recommendation pass immediately")
	return cmd
}

func serve(ctx context.Context, a *app, runOnStart bool) error {
	log := a.log.Logger

	sched, err := scheduler.New(log)
	if err != nil {
		return err
	}
	if a.cfg.Schedule.Cron != "" {
		if err := tasks.RegisterRecommendTask(sched, a.svc, a.cfg.Schedule.Cron, runOnStart); err != nil {
			return err
		}
	}
	if err := tasks.RegisterHistoryCleanupTask(sched, a.history, a.cfg.Schedule.HistoryRetention); err != nil {
		return err
	}

	w, err := watcher.New(watcher.DefaultConfig(), func(ctx context.Context, _ []string) error {
		_, err := a.svc.RebuildSeen(ctx)
		return err
	}, log)
	if err != nil {
		return err
	}
	for _, p := range []string{a.cfg.Paths.RatingsCSV, a.cfg.Paths.RemoteHistory} {
		if p == "" {
			continue
		}
		if err := w.AddFile(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("History file will not be watched")
		}
	}

	srv := api.NewServer(a.cfg, api.Deps{
		Recommend: a.svc,
		History:   a.history,
		Scheduler: sched,
		Health:    health.NewService(log),
		DB:        a.db.Conn(),
	}, log)

	sched.Start()
	w.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(a.cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown")
	}
	if err := w.Stop(); err != nil {
		log.Warn().Err(err).Msg("Watcher shutdown")
	}
	if err := sched.Stop(); err != nil {
		log.Warn().Err(err).Msg("Scheduler shutdown")
	}
	return serveErr
}
