package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers
const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	// MongoDB
	MongoURI     string `env:"MONGO_URI"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Redis (idempotency keys, statistics cache); disabled when empty
	RedisURL string `env:"REDIS_URL"`

	// RabbitMQ (revision events); disabled when empty
	RabbitMQURL         string `env:"RABBITMQ_URL"`
	EventsExchange      string `env:"EVENTS_EXCHANGE" envDefault:"campaign_revisions"`
	EventsSigningSecret string `env:"EVENTS_SIGNING_SECRET"`

	// Server
	ServerPort string `env:"SERVER_PORT"`

	StoreDriver    string        `env:"STORE_DRIVER" envDefault:"mongo"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	StatsCacheTTL  time.Duration `env:"STATS_CACHE_TTL" envDefault:"30s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// KeysJSON represents the structure of Keys.json file
type KeysJSON struct {
	DatabaseName string `json:"database_name"`
	MongoURI     string `json:"mongo_uri"`
	Port         int    `json:"port"`
}

// LoadConfig loads configuration from environment variables and Keys.json.
// Priority: Environment variables > Keys.json > defaults
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("Keys.json")
}

// LoadConfigFrom is LoadConfig with an explicit Keys.json path. A missing file
// is not an error.
func LoadConfigFrom(keysPath string) (*Config, error) {
	var keysData KeysJSON
	if data, err := os.ReadFile(keysPath); err == nil {
		if err := json.Unmarshal(data, &keysData); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", keysPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", keysPath, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.MongoURI == "" {
		cfg.MongoURI = keysData.MongoURI
	}
	if cfg.DatabaseName == "" {
		cfg.DatabaseName = keysData.DatabaseName
	}
	if cfg.DatabaseName == "" {
		cfg.DatabaseName = "campaign_workflow"
	}
	if cfg.ServerPort == "" {
		if keysData.Port > 0 {
			cfg.ServerPort = strconv.Itoa(keysData.Port)
		} else {
			cfg.ServerPort = "8080"
		}
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case StoreDriverMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI not found in environment or %s", keysPath)
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want mongo or memory)", cfg.StoreDriver)
	}

	return cfg, nil
}
