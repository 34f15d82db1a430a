package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config holds server configuration loaded from an optional YAML file and
// environment variables. Environment variables win.
type Config struct {
	Port         string        `yaml:"port"`
	DBPath       string        `yaml:"db_path"`
	MaxRooms     int           `yaml:"max_rooms"`
	MaxHistory   int           `yaml:"max_history"`
	MaxSaved     int           `yaml:"max_saved_messages"`
	EmptyRoomTTL time.Duration `yaml:"empty_room_ttl"`
	StoreDriver  string        `yaml:"store_driver"`
	RedisAddr    string        `yaml:"redis_addr"`
	LogLevel     string        `yaml:"log_level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:         "8080",
		DBPath:       "chatrooms.db",
		MaxRooms:     100,
		MaxHistory:   50,
		MaxSaved:     20,
		EmptyRoomTTL: 10 * time.Second,
		StoreDriver:  DriverSQLite,
		RedisAddr:    "localhost:6379",
		LogLevel:     "info",
	}
}

// Load reads configuration from the file named by CHATROOMS_CONFIG, if any,
// then from environment variables, with sensible defaults.
func Load() Config {
	cfg := Defaults()
	if path := os.Getenv("CHATROOMS_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("ignoring config file")
		}
	}

	cfg.Port = envOrDefault("PORT", cfg.Port)
	cfg.DBPath = envOrDefault("DB_PATH", cfg.DBPath)
	cfg.MaxRooms = envOrDefaultInt("MAX_ROOMS", cfg.MaxRooms)
	cfg.MaxHistory = envOrDefaultInt("MAX_HISTORY", cfg.MaxHistory)
	cfg.MaxSaved = envOrDefaultInt("MAX_SAVED_MESSAGES", cfg.MaxSaved)
	cfg.EmptyRoomTTL = envOrDefaultDuration("EMPTY_ROOM_TTL", cfg.EmptyRoomTTL)
	cfg.StoreDriver = envOrDefault("STORE_DRIVER", cfg.StoreDriver)
	cfg.RedisAddr = envOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	return cfg
}

// applyFile overlays non-zero values from a YAML file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	var fc Config
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return errors.Wrap(err, "parse config file")
	}
	if fc.Port != "" {
		c.Port = fc.Port
	}
	if fc.DBPath != "" {
		c.DBPath = fc.DBPath
	}
	if fc.MaxRooms > 0 {
		c.MaxRooms = fc.MaxRooms
	}
	if fc.MaxHistory > 0 {
		c.MaxHistory = fc.MaxHistory
	}
	if fc.MaxSaved > 0 {
		c.MaxSaved = fc.MaxSaved
	}
	if fc.EmptyRoomTTL > 0 {
		c.EmptyRoomTTL = fc.EmptyRoomTTL
	}
	if fc.StoreDriver != "" {
		c.StoreDriver = fc.StoreDriver
	}
	if fc.RedisAddr != "" {
		c.RedisAddr = fc.RedisAddr
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", fallback).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Dur("default", fallback).Msg("invalid duration, using default")
		return fallback
	}
	return d
}
