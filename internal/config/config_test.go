package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "development")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Fatalf("expected 5s heartbeat, got %s", cfg.HeartbeatInterval)
	}
	if cfg.AlarmTimeout != time.Minute {
		t.Fatalf("expected 60s alarm timeout, got %s", cfg.AlarmTimeout)
	}
	if cfg.SuccessDelay != 1800*time.Millisecond {
		t.Fatalf("expected 1.8s success delay, got %s", cfg.SuccessDelay)
	}
	if cfg.SlotCount != 6 {
		t.Fatalf("expected 6 slots, got %d", cfg.SlotCount)
	}
	if got := cfg.Brokers(); len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %#v", got)
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error without JWT_SECRET in production")
	}
}

func TestValidate_RejectsBadSlotCount(t *testing.T) {
	cfg := &Config{
		Port:              "8080",
		Env:               "development",
		HeartbeatInterval: time.Second,
		AlarmTimeout:      time.Minute,
		SlotCount:         0,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for slot count 0")
	}
}
