package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONITOR_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Schedule.RecordEvery != 5*time.Minute || cfg.Notify.MarkTTL != 720*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ActivityStore != StoreMemory || cfg.Schedule.RotateAt != "00:00" {
		t.Fatalf("unexpected store defaults %+v", cfg)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeFile(t, `
http_addr: ":9090"
time_zone: "Europe/Berlin"
database_url: "postgres://localhost/monitor"
activity_store: postgres
schedule:
  dispatch_every: 10m
  rotate_at: "00:05"
notify:
  mark_ttl: 48h
  kafka_brokers: ["kafka-1:9092"]
`)
	t.Setenv("MONITOR_HTTP_ADDR", ":7070")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_IDS", "-100123, 42")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("expected env to override file, got %s", cfg.HTTPAddr)
	}
	if cfg.Schedule.DispatchEvery != 10*time.Minute || cfg.Notify.MarkTTL != 48*time.Hour {
		t.Fatalf("unexpected durations %+v", cfg.Schedule)
	}
	if len(cfg.Notify.KafkaBrokers) != 2 || cfg.Notify.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Notify.KafkaBrokers)
	}
	if len(cfg.Notify.TelegramChatIDs) != 2 || cfg.Notify.TelegramChatIDs[0] != -100123 {
		t.Fatalf("unexpected telegram chats %v", cfg.Notify.TelegramChatIDs)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Fatalf("unexpected location %v %v", loc, err)
	}
}

func TestValidateErrors(t *testing.T) {
	cfg := Default()
	cfg.ActivityStore = StorePostgres
	cfg.MarkStore = "redis"
	cfg.Schedule.RotateAt = "25:00"
	cfg.Notify.MarkTTL = 0
	cfg.Notify.TelegramToken = "123:abc"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, fragment := range []string{"database_url", "mark_store", "invalid hour", "mark_ttl", "telegram_chat_ids"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
}

func TestParseClock(t *testing.T) {
	hour, minute, err := ParseClock("23:59")
	if err != nil || hour != 23 || minute != 59 {
		t.Fatalf("unexpected parse %d:%d %v", hour, minute, err)
	}
	if _, _, err := ParseClock("noon"); err == nil {
		t.Fatalf("expected error")
	}
}
