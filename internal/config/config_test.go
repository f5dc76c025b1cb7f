package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wellcore.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "session:\n  replica_id: r-123\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIPort != 8080 {
		t.Errorf("expected API port 8080, got %d", cfg.Server.APIPort)
	}
	if cfg.Session.Ceiling != "15m" {
		t.Errorf("expected 15m ceiling, got %s", cfg.Session.Ceiling)
	}
	if cfg.Session.CreateAttempts != 3 {
		t.Errorf("expected 3 create attempts, got %d", cfg.Session.CreateAttempts)
	}
	if got := ParseDuration(cfg.Session.CreateRetryDelay, 0); got != 2*time.Second {
		t.Errorf("expected 2s retry delay, got %v", got)
	}
	if cfg.Reminders.SweepSchedule != "@every 30s" {
		t.Errorf("unexpected sweep schedule %q", cfg.Reminders.SweepSchedule)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "session:\n  replica_id: r-123\n")
	t.Setenv("WELLCORE_SERVER_API_PORT", "9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.APIPort != 9999 {
		t.Errorf("expected env override 9999, got %d", cfg.Server.APIPort)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing replica", "logging:\n  level: debug\n", "replica_id"},
		{"bad ceiling", "session:\n  replica_id: r\n  ceiling: soon\n", "session.ceiling"},
		{"bad storage", "session:\n  replica_id: r\nstorage:\n  type: bolt\n", "unsupported storage type"},
		{"bad schedule", "session:\n  replica_id: r\nreminders:\n  sweep_schedule: sometimes\n", "sweep_schedule"},
		{"bad port", "session:\n  replica_id: r\nserver:\n  api_port: 70000\n", "API port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("bogus", time.Minute); got != time.Minute {
		t.Errorf("expected fallback, got %v", got)
	}
	if got := ParseDuration("90s", time.Minute); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
}

func TestLoad_EnvOnlyKey(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: warn\n")
	t.Setenv("WELLCORE_SESSION_REPLICA_ID", "r-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session.ReplicaID != "r-env" {
		t.Errorf("expected replica from env, got %q", cfg.Session.ReplicaID)
	}
}

func TestDefaultsAndKeys(t *testing.T) {
	defaults := Defaults()
	if defaults.Server.MetricsPort != 9090 || defaults.Reports.DedupeCacheSize != 1024 {
		t.Errorf("unexpected defaults: %+v", defaults)
	}

	keys := Keys()
	for _, key := range []string{"provider.api_key", "session.replica_id", "storage.redis.password", "server.rate_limit"} {
		if !keys[key] {
			t.Errorf("expected %s to be a known key", key)
		}
	}
	if keys["dns.upstream_servers"] {
		t.Error("unexpected key dns.upstream_servers")
	}
}
