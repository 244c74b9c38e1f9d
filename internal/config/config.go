package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the monitor configuration.
type Config struct {
	HTTPAddr      string          `yaml:"http_addr"`
	TimeZone      string          `yaml:"time_zone"`
	DatabaseURL   string          `yaml:"database_url"`
	ActivityStore string          `yaml:"activity_store"`
	MarkStore     string          `yaml:"mark_store"`
	Inventory     InventoryConfig `yaml:"inventory"`
	Schedule      ScheduleConfig  `yaml:"schedule"`
	Notify        NotifyConfig    `yaml:"notify"`
	Auth          AuthConfig      `yaml:"auth"`
	Log           LogConfig       `yaml:"log"`
}

// InventoryConfig selects the dashboard database holding devices and settings.
type InventoryConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// ScheduleConfig defines job cadence.
type ScheduleConfig struct {
	GranularityMinutes int           `yaml:"granularity_minutes"`
	RecordEvery        time.Duration `yaml:"record_every"`
	DispatchEvery      time.Duration `yaml:"dispatch_every"`
	SweepEvery         time.Duration `yaml:"sweep_every"`
	RotateAt           string        `yaml:"rotate_at"`
}

// NotifyConfig defines delivery channels and message layout.
type NotifyConfig struct {
	MarkTTL         time.Duration `yaml:"mark_ttl"`
	WebhookURL      string        `yaml:"webhook_url"`
	SESRegion       string        `yaml:"ses_region"`
	SESSender       string        `yaml:"ses_sender"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"`
	KafkaTopic      string        `yaml:"kafka_topic"`
	TelegramToken   string        `yaml:"telegram_token"`
	TelegramChatIDs []int64       `yaml:"telegram_chat_ids"`
	TemplateFile    string        `yaml:"template_file"`
	SubjectTemplate string        `yaml:"subject_template"`
}

// AuthConfig protects the admin API. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LogConfig defines the optional rotating log file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		TimeZone:      "UTC",
		ActivityStore: StoreMemory,
		MarkStore:     StoreMemory,
		Inventory: InventoryConfig{
			Driver: "postgres",
		},
		Schedule: ScheduleConfig{
			GranularityMinutes: 5,
			RecordEvery:        5 * time.Minute,
			DispatchEvery:      5 * time.Minute,
			SweepEvery:         time.Hour,
			RotateAt:           "00:00",
		},
		Notify: NotifyConfig{
			MarkTTL:    30 * 24 * time.Hour,
			KafkaTopic: "voip.alerts",
		},
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads the yaml file at path (or $MONITOR_CONFIG) and applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("MONITOR_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("MONITOR_HTTP_ADDR", cfg.HTTPAddr)
	cfg.TimeZone = getenvDefault("MONITOR_TIME_ZONE", cfg.TimeZone)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.ActivityStore = getenvDefault("MONITOR_ACTIVITY_STORE", cfg.ActivityStore)
	cfg.MarkStore = getenvDefault("MONITOR_MARK_STORE", cfg.MarkStore)

	cfg.Inventory.Driver = getenvDefault("INVENTORY_DRIVER", cfg.Inventory.Driver)
	cfg.Inventory.DSN = getenvDefault("INVENTORY_DSN", cfg.Inventory.DSN)
	cfg.Inventory.AutoMigrate = getenvBool("INVENTORY_AUTO_MIGRATE", cfg.Inventory.AutoMigrate)

	cfg.Schedule.GranularityMinutes = getenvIntDefault("MONITOR_GRANULARITY_MINUTES", cfg.Schedule.GranularityMinutes)
	cfg.Schedule.RecordEvery = getenvDuration("MONITOR_RECORD_EVERY", cfg.Schedule.RecordEvery)
	cfg.Schedule.DispatchEvery = getenvDuration("MONITOR_DISPATCH_EVERY", cfg.Schedule.DispatchEvery)
	cfg.Schedule.SweepEvery = getenvDuration("MONITOR_SWEEP_EVERY", cfg.Schedule.SweepEvery)
	cfg.Schedule.RotateAt = getenvDefault("MONITOR_ROTATE_AT", cfg.Schedule.RotateAt)

	cfg.Notify.MarkTTL = getenvDuration("MONITOR_MARK_TTL", cfg.Notify.MarkTTL)
	cfg.Notify.WebhookURL = getenvDefault("ALERT_WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Notify.SESRegion = getenvDefault("SES_REGION", cfg.Notify.SESRegion)
	cfg.Notify.SESSender = getenvDefault("SES_SENDER", cfg.Notify.SESSender)
	if brokers := splitCSV(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Notify.KafkaBrokers = brokers
	}
	cfg.Notify.KafkaTopic = getenvDefault("KAFKA_TOPIC", cfg.Notify.KafkaTopic)
	cfg.Notify.TelegramToken = getenvDefault("TELEGRAM_BOT_TOKEN", cfg.Notify.TelegramToken)
	if ids := splitCSV(os.Getenv("TELEGRAM_CHAT_IDS")); len(ids) > 0 {
		cfg.Notify.TelegramChatIDs = cfg.Notify.TelegramChatIDs[:0]
		for _, id := range ids {
			if parsed, err := strconv.ParseInt(id, 10, 64); err == nil {
				cfg.Notify.TelegramChatIDs = append(cfg.Notify.TelegramChatIDs, parsed)
			}
		}
	}
	cfg.Notify.TemplateFile = getenvDefault("ALERT_TEMPLATE_FILE", cfg.Notify.TemplateFile)

	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Log.File = getenvDefault("LOG_FILE", cfg.Log.File)
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	for name, kind := range map[string]string{"activity_store": c.ActivityStore, "mark_store": c.MarkStore} {
		switch kind {
		case StoreMemory:
		case StorePostgres:
			if c.DatabaseURL == "" {
				errs = append(errs, fmt.Errorf("config: %s=postgres requires database_url", name))
			}
		default:
			errs = append(errs, fmt.Errorf("config: %s must be memory or postgres, got %q", name, kind))
		}
	}
	switch strings.ToLower(c.Inventory.Driver) {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported inventory driver %q", c.Inventory.Driver))
	}
	if c.Schedule.GranularityMinutes <= 0 || c.Schedule.GranularityMinutes > 1440 {
		errs = append(errs, fmt.Errorf("config: granularity_minutes must be in 1..1440, got %d", c.Schedule.GranularityMinutes))
	}
	if c.Schedule.RecordEvery <= 0 || c.Schedule.DispatchEvery <= 0 || c.Schedule.SweepEvery <= 0 {
		errs = append(errs, errors.New("config: schedule intervals must be positive"))
	}
	if _, _, err := ParseClock(c.Schedule.RotateAt); err != nil {
		errs = append(errs, err)
	}
	if c.Notify.MarkTTL <= 0 {
		errs = append(errs, errors.New("config: mark_ttl must be positive"))
	}
	if c.Notify.SESRegion != "" && c.Notify.SESSender == "" {
		errs = append(errs, errors.New("config: ses_sender required with ses_region"))
	}
	if c.Notify.TelegramToken != "" && len(c.Notify.TelegramChatIDs) == 0 {
		errs = append(errs, errors.New("config: telegram_chat_ids required with telegram_token"))
	}
	return errors.Join(errs...)
}

// Location loads the dashboard time zone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("config: time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(value string) (int, int, error) {
	hourText, minuteText, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, fmt.Errorf("config: invalid clock %q", value)
	}
	hour, err := strconv.Atoi(hourText)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("config: invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("config: invalid minute in %q", value)
	}
	return hour, minute, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
