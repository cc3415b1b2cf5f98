package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"curveStatApp/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := config.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	if cfg.HTTPPort != "8080" {
		t.Errorf("expected HTTP port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.TradeRetention != 1000 {
		t.Errorf("expected retention 1000, got %d", cfg.TradeRetention)
	}
	if cfg.EventSource != config.EventSourceDirect {
		t.Errorf("expected direct event source, got %s", cfg.EventSource)
	}
	if cfg.ChainPollInterval != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %s", cfg.ChainPollInterval)
	}
	if cfg.WarmStart {
		t.Error("expected warm start to be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("TRADE_RETENTION", "250")
	t.Setenv("SNAPSHOT_INTERVAL", "3s")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("EVENT_SOURCE", "KAFKA")
	t.Setenv("KAFKA_ROLE", "Consumer")

	cfg := config.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	if cfg.HTTPPort != "9090" {
		t.Errorf("expected HTTP port 9090, got %s", cfg.HTTPPort)
	}
	if cfg.TradeRetention != 250 {
		t.Errorf("expected retention 250, got %d", cfg.TradeRetention)
	}
	if cfg.SnapshotInterval != 3*time.Second {
		t.Errorf("expected 3s snapshot interval, got %s", cfg.SnapshotInterval)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Errorf("expected 2 brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.EventSource != config.EventSourceKafka {
		t.Errorf("expected kafka event source, got %s", cfg.EventSource)
	}
	if cfg.KafkaRole != config.KafkaRoleConsumer {
		t.Errorf("expected consumer role, got %s", cfg.KafkaRole)
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CURVE_STAT_TEST_ONLY=1\nDEMO=true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEMO", "")
	os.Unsetenv("DEMO")
	t.Cleanup(func() { os.Unsetenv("CURVE_STAT_TEST_ONLY") })

	cfg := config.LoadConfig(path)
	if !cfg.Demo {
		t.Error("expected DEMO=true from .env file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		return config.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
	}{
		{"valid address", func(c *config.Config) { c.CurveAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3" }, false},
		{"malformed address starts anyway", func(c *config.Config) { c.CurveAddress = "0xnot-a-curve" }, false},
		{"zero retention", func(c *config.Config) { c.TradeRetention = 0 }, true},
		{"negative buffer", func(c *config.Config) { c.EventBufferSize = -1 }, true},
		{"unknown source", func(c *config.Config) { c.EventSource = "nats" }, true},
		{"consumer role", func(c *config.Config) { c.EventSource = config.EventSourceKafka; c.KafkaRole = config.KafkaRoleConsumer }, false},
		{"unknown role", func(c *config.Config) { c.EventSource = config.EventSourceKafka; c.KafkaRole = "both" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
