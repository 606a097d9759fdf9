// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend names accepted by HAUNT_KV_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bbolt"
	BackendRedis  = "redis"
)

// Config holds every tunable of the console server.
type Config struct {
	ListenAddr string `env:"HAUNT_LISTEN_ADDR" envDefault:":8666"`

	// Durable key-value store backing the persistence gateway.
	KVBackend  string `env:"HAUNT_KV_BACKEND" envDefault:"sqlite"`
	SQLitePath string `env:"HAUNT_SQLITE_PATH" envDefault:"haunt.db"`
	BoltPath   string `env:"HAUNT_BOLT_PATH" envDefault:"haunt.bolt"`
	RedisAddr  string `env:"HAUNT_REDIS_ADDR" envDefault:"localhost:6379"`

	CheckInterval    time.Duration `env:"HAUNT_CHECK_INTERVAL" envDefault:"2s"`
	ThinkInterval    time.Duration `env:"HAUNT_THINK_INTERVAL" envDefault:"2s"`
	AutoSaveInterval time.Duration `env:"HAUNT_AUTOSAVE_INTERVAL" envDefault:"30s"`

	// Debug hooks are cheats; disable them on anything that faces
	// real players.
	DebugHooks bool `env:"HAUNT_DEBUG_HOOKS" envDefault:"true"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.KVBackend {
	case BackendMemory, BackendSQLite, BackendBolt, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown kv backend %q", cfg.KVBackend)
	}
	return cfg, nil
}
