package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeKeys(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Keys.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabaseName != "campaign_workflow" || cfg.ServerPort != "8080" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.EventsExchange != "campaign_revisions" || cfg.IdempotencyTTL != 24*time.Hour || cfg.StatsCacheTTL != 30*time.Second {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.LogLevel != "info" || cfg.LogPretty {
		t.Fatalf("unexpected logging defaults %#v", cfg)
	}
}

func TestLoadConfigKeysFileFallback(t *testing.T) {
	path := writeKeys(t, `{"database_name":"from_keys","mongo_uri":"mongodb://keys:27017","port":9090}`)
	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MongoURI != "mongodb://keys:27017" || cfg.DatabaseName != "from_keys" || cfg.ServerPort != "9090" {
		t.Fatalf("Keys.json values not applied: %#v", cfg)
	}
	if cfg.StoreDriver != StoreDriverMongo {
		t.Fatalf("expected mongo driver by default, got %s", cfg.StoreDriver)
	}
}

func TestLoadConfigEnvironmentWins(t *testing.T) {
	path := writeKeys(t, `{"database_name":"from_keys","mongo_uri":"mongodb://keys:27017","port":9090}`)
	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("DATABASE_NAME", "from_env")
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("STATS_CACHE_TTL", "5s")
	t.Setenv("EVENTS_SIGNING_SECRET", "s3cret")

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MongoURI != "mongodb://env:27017" || cfg.DatabaseName != "from_env" || cfg.ServerPort != "7000" {
		t.Fatalf("environment did not take priority: %#v", cfg)
	}
	if cfg.StatsCacheTTL != 5*time.Second || cfg.EventsSigningSecret != "s3cret" {
		t.Fatalf("unexpected parsed values %#v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		keys    string
		wantErr string
	}{
		{"mongo without uri", map[string]string{"STORE_DRIVER": "mongo", "MONGO_URI": ""}, `{}`, "MONGO_URI not found"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "postgres"}, `{}`, "unknown STORE_DRIVER"},
		{"bad duration", map[string]string{"STORE_DRIVER": "memory", "IDEMPOTENCY_TTL": "forever"}, `{}`, "parse env"},
		{"bad keys file", map[string]string{"STORE_DRIVER": "memory"}, `{not json`, "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfigFrom(writeKeys(t, tt.keys))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStoreDriverIsNormalized(t *testing.T) {
	t.Setenv("STORE_DRIVER", " Memory ")
	cfg, err := LoadConfigFrom(writeKeys(t, `{}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Fatalf("expected memory, got %q", cfg.StoreDriver)
	}
}
