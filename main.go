package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apihttp "voip-monitor/internal/api/http"
	"voip-monitor/internal/audit"
	"voip-monitor/internal/auth"
	"voip-monitor/internal/config"
	"voip-monitor/internal/scheduler"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "voip-monitor",
		Short: "VoIP device activity tracking and alert notifications",
		Long: `voip-monitor records device availability into daily 5-minute activity
buffers, rotates them at midnight and notifies operators about critical
buildings and critical devices.

  voip-monitor serve            Run the scheduler and the admin API
  voip-monitor record           Record one activity sample for every device
  voip-monitor rotate           Rotate today's buffers into yesterday
  voip-monitor dispatch         Run one notification cycle
  voip-monitor marks            List notification marks
  voip-monitor reset [key]      Clear one or all notification marks`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default $MONITOR_CONFIG)")

	rootCmd.AddCommand(
		newServeCmd(),
		newRecordCmd(),
		newRotateCmd(),
		newDispatchCmd(),
		newActivityCmd(),
		newMarksCmd(),
		newResetCmd(),
		newThresholdsCmd(),
		newTokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled jobs and the admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	var sweeper scheduler.Sweeper
	if a.memTracker != nil {
		a.memTracker.Start(ctx, a.cfg.Schedule.SweepEvery)
	} else {
		sweeper = a.tracker
	}
	jobs, err := scheduler.New(a.loc, scheduler.Config{
		RecordEvery:   a.cfg.Schedule.RecordEvery,
		DispatchEvery: a.cfg.Schedule.DispatchEvery,
		SweepEvery:    a.cfg.Schedule.SweepEvery,
		RotateAt:      a.cfg.Schedule.RotateAt,
	}, a.activity, a.activity, a.dispatcher, sweeper, a.logger)
	if err != nil {
		return err
	}

	var auditLogger audit.Logger = audit.NewLogWriter(a.logger)
	if a.db != nil {
		auditLogger = audit.NewRepository(a.db)
	}
	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	handler, err := apihttp.NewHandler(apihttp.Deps{
		Activity:   a.activity,
		Tracker:    a.tracker,
		Dispatcher: a.dispatcher,
		Auth:       auth.NewMiddleware([]byte(a.cfg.Auth.JWTSecret), policy),
		Audit:      auditLogger,
		AccessLog:  a.logger.Writer(),
	})
	if err != nil {
		return err
	}
	if a.cfg.Auth.JWTSecret == "" {
		a.logger.Printf("AUTH_JWT_SECRET not set: admin API is unauthenticated")
	}

	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	jobs.Start()
	defer jobs.Stop()
	a.logger.Printf("jobs scheduled: %d (time zone %s)", jobs.Len(), a.loc)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Printf("http listening on %s", a.cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	a.logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// setup loads config and wires services; withInventory also builds the recorder and dispatcher.
func setup(ctx context.Context, withInventory bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if withInventory {
		if err := a.withInventory(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}
