package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	activityapp "voip-monitor/internal/activity/application"
	activity "voip-monitor/internal/activity/domain"
	activitymemory "voip-monitor/internal/activity/infrastructure/memory"
	activitypostgres "voip-monitor/internal/activity/infrastructure/postgres"
	alertapp "voip-monitor/internal/alerting/application"
	alerting "voip-monitor/internal/alerting/domain"
	alertmemory "voip-monitor/internal/alerting/infrastructure/memory"
	alertpostgres "voip-monitor/internal/alerting/infrastructure/postgres"
	"voip-monitor/internal/alerting/notify"
	"voip-monitor/internal/config"
	"voip-monitor/internal/inventory"
	"voip-monitor/internal/logging"
	"voip-monitor/internal/observability/metrics"
)

// app holds the wired services for one process.
type app struct {
	cfg        config.Config
	logger     *log.Logger
	loc        *time.Location
	db         *sql.DB
	inventory  *inventory.Repository
	activity   *activityapp.Service
	tracker    alerting.Tracker
	memTracker *alertmemory.Tracker
	dispatcher *alertapp.Dispatcher
	closers    []io.Closer
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("log setup: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, loc: loc, closers: []io.Closer{logCloser}}

	if cfg.ActivityStore == config.StorePostgres || cfg.MarkStore == config.StorePostgres {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("db open: %w", err)
		}
		a.closers = append(a.closers, db)
		if err := db.PingContext(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		a.db = db
	}
	metrics.Init(a.db, logger)

	if cfg.MarkStore == config.StorePostgres {
		a.tracker = alertpostgres.NewTracker(a.db)
	} else {
		a.memTracker = alertmemory.NewTracker(alertmemory.WithLogger(logger))
		a.tracker = a.memTracker
	}
	return a, nil
}

// withInventory opens the dashboard database and builds the recorder and dispatcher.
func (a *app) withInventory(ctx context.Context) error {
	dsn := a.cfg.Inventory.DSN
	if dsn == "" && a.cfg.Inventory.Driver == inventory.DriverPostgres {
		dsn = a.cfg.DatabaseURL
	}
	gdb, err := inventory.Open(a.cfg.Inventory.Driver, dsn)
	if err != nil {
		return fmt.Errorf("inventory open: %w", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		a.closers = append(a.closers, sqlDB)
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("inventory ping: %w", err)
		}
	}
	if a.cfg.Inventory.AutoMigrate {
		if err := inventory.Migrate(gdb); err != nil {
			return fmt.Errorf("inventory migrate: %w", err)
		}
	}
	repo, err := inventory.NewRepository(gdb)
	if err != nil {
		return err
	}
	a.inventory = repo

	var store activity.Store
	if a.cfg.ActivityStore == config.StorePostgres {
		store = activitypostgres.NewStore(a.db)
	} else {
		store = activitymemory.NewStore(nil)
	}
	a.activity, err = activityapp.NewService(store, repo,
		activityapp.WithLocation(a.loc),
		activityapp.WithGranularity(a.cfg.Schedule.GranularityMinutes),
		activityapp.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("activity service: %w", err)
	}

	channel, err := a.buildChannel()
	if err != nil {
		return err
	}
	tpl, err := a.buildTemplate()
	if err != nil {
		return err
	}
	a.dispatcher, err = alertapp.NewDispatcher(repo, repo, repo, a.tracker, channel,
		alertapp.WithMarkTTL(a.cfg.Notify.MarkTTL),
		alertapp.WithTemplate(tpl),
		alertapp.WithLocation(a.loc),
		alertapp.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	return nil
}

func (a *app) buildChannel() (notify.Channel, error) {
	var channels []notify.Channel
	if a.cfg.Notify.WebhookURL != "" {
		webhook, err := notify.NewWebhookChannel(a.cfg.Notify.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("webhook channel: %w", err)
		}
		channels = append(channels, webhook)
	}
	if a.cfg.Notify.SESRegion != "" {
		ses, err := notify.NewSESChannel(a.cfg.Notify.SESRegion, a.cfg.Notify.SESSender)
		if err != nil {
			return nil, fmt.Errorf("ses channel: %w", err)
		}
		channels = append(channels, ses)
	}
	if len(a.cfg.Notify.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafkaChannel(a.cfg.Notify.KafkaBrokers, a.cfg.Notify.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka channel: %w", err)
		}
		a.closers = append(a.closers, kafka)
		channels = append(channels, kafka)
	}
	if a.cfg.Notify.TelegramToken != "" {
		telegram, err := notify.NewTelegramChannel(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatIDs)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: %w", err)
		}
		channels = append(channels, telegram)
	}
	multi := notify.NewMultiChannel(channels...)
	if multi.Len() == 0 {
		a.logger.Printf("no notification channel configured: alerts will fail delivery")
	}
	return multi, nil
}

func (a *app) buildTemplate() (*notify.Template, error) {
	var body string
	if a.cfg.Notify.TemplateFile != "" {
		data, err := os.ReadFile(a.cfg.Notify.TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("alert template: %w", err)
		}
		body = string(data)
	}
	tpl, err := notify.NewTemplate(body, a.cfg.Notify.SubjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("alert template: %w", err)
	}
	return tpl, nil
}

// Close releases resources in reverse order.
func (a *app) Close() {
	if a == nil {
		return
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && a.logger != nil {
		a.logger.Printf("shutdown error: %v", err)
	}
}
