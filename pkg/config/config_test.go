package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Database.Path != "crm.db" {
		t.Errorf("expected default database path, got %s", cfg.Database.Path)
	}
	if cfg.Sync.OperationTimeout != 5*time.Minute {
		t.Errorf("expected 5m operation timeout, got %s", cfg.Sync.OperationTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected info level, got %s", cfg.Logging.Level)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/crm/state.db
sync:
  operation_timeout: 2m
  zone_workers: 8
logging:
  level: debug
  format: json
metrics:
  enabled: true
  listen_address: ":9100"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.Path != "/var/lib/crm/state.db" {
		t.Errorf("expected overridden path, got %s", cfg.Database.Path)
	}
	if cfg.Sync.OperationTimeout != 2*time.Minute {
		t.Errorf("expected 2m, got %s", cfg.Sync.OperationTimeout)
	}
	if cfg.Sync.ZoneWorkers != 8 {
		t.Errorf("expected 8 zone workers, got %d", cfg.Sync.ZoneWorkers)
	}
	if cfg.Sync.SyncWorkers != 4 {
		t.Errorf("expected default sync workers kept, got %d", cfg.Sync.SyncWorkers)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json format, got %s", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddress != ":9100" {
		t.Error("expected metrics enabled on :9100")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []string{
		"database:\n  path: \"\"\n",
		"database:\n  path: crm.db\nlogging:\n  level: verbose\n",
		"database:\n  path: crm.db\ntracing:\n  sampling_rate: 2.5\n",
		"database:\n  path: crm.db\nencryption:\n  key_hex: nothex\n",
	}
	for _, content := range cases {
		path := writeConfig(t, content)
		if _, err := Load(path); err == nil {
			t.Errorf("expected validation failure for:\n%s", content)
		}
	}
}

func TestEncryptionKeyEnvOverride(t *testing.T) {
	key := "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	t.Setenv(encryptionKeyEnv, key)

	path := writeConfig(t, "database:\n  path: crm.db\nencryption:\n  key_hex: "+
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Encryption.KeyHex != key {
		t.Error("expected environment key to take precedence")
	}
}

func TestTelemetryMapping(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	cfg.Metrics.Enabled = true

	tc := cfg.Telemetry("1.2.3")
	if tc.ServiceVersion != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", tc.ServiceVersion)
	}
	if tc.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", tc.Logging.Level)
	}
	if !tc.Tracing.Enabled || tc.Tracing.Exporter != "stdout" {
		t.Error("expected tracing mapped through")
	}
	if !tc.Metrics.Enabled {
		t.Error("expected metrics mapped through")
	}
}

func TestStoreMapping(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = "/tmp/x.db"
	cfg.Database.MaxOpenConns = 10

	sc := cfg.Store()
	if sc.Path != "/tmp/x.db" || sc.MaxOpenConns != 10 {
		t.Errorf("expected database section mapped, got %+v", sc)
	}
}
