package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
)

// Config is the full server configuration. Fields are read from a TOML file
// and can be overridden by AUCTION_* environment variables.
type Config struct {
	LogLevel string        `toml:"log_level" env:"AUCTION_LOG_LEVEL"`
	Server   ServerConfig  `toml:"server"`
	Storage  StorageConfig `toml:"storage"`
	Redis    RedisConfig   `toml:"redis"`
	NATS     NATSConfig    `toml:"nats"`
	Events   EventsConfig  `toml:"events"`
	Auction  AuctionConfig `toml:"auction"`
}

type ServerConfig struct {
	HTTPAddr        string        `toml:"http_addr" env:"AUCTION_HTTP_ADDR"`
	GRPCAddr        string        `toml:"grpc_addr" env:"AUCTION_GRPC_ADDR"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"AUCTION_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `toml:"allowed_origins" env:"AUCTION_ALLOWED_ORIGINS" envSeparator:","`
}

type StorageConfig struct {
	Driver        string `toml:"driver" env:"AUCTION_STORAGE_DRIVER"`
	MySQLDSN      string `toml:"mysql_dsn" env:"AUCTION_MYSQL_DSN"`
	SQLitePath    string `toml:"sqlite_path" env:"AUCTION_SQLITE_PATH"`
	MaxRecordSize int    `toml:"max_record_size" env:"AUCTION_MAX_RECORD_SIZE"`
}

type RedisConfig struct {
	Addr     string `toml:"addr" env:"AUCTION_REDIS_ADDR"`
	Password string `toml:"password" env:"AUCTION_REDIS_PASSWORD"`
	DB       int    `toml:"db" env:"AUCTION_REDIS_DB"`
	PoolSize int    `toml:"pool_size" env:"AUCTION_REDIS_POOL_SIZE"`
}

type NATSConfig struct {
	Enabled bool   `toml:"enabled" env:"AUCTION_NATS_ENABLED"`
	URL     string `toml:"url" env:"AUCTION_NATS_URL"`
}

type EventsConfig struct {
	QueueSize   int  `toml:"queue_size" env:"AUCTION_EVENTS_QUEUE_SIZE"`
	Workers     int  `toml:"workers" env:"AUCTION_EVENTS_WORKERS"`
	RedisPubSub bool `toml:"redis_pubsub" env:"AUCTION_EVENTS_REDIS_PUBSUB"`
}

type AuctionConfig struct {
	SystemPrincipal string `toml:"system_principal" env:"AUCTION_SYSTEM_PRINCIPAL"`
}

// Defaults returns a configuration that runs entirely in memory.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":50051",
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Driver:        DriverMemory,
			MySQLDSN:      "root:root@tcp(localhost:3306)/auctions?parseTime=true",
			SQLitePath:    "auctions.db",
			MaxRecordSize: 5000,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 100,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Events: EventsConfig{
			QueueSize: 10000,
			Workers:   4,
		},
		Auction: AuctionConfig{
			SystemPrincipal: "system",
		},
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Storage.Driver == DriverRedis || c.Events.RedisPubSub
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("server: http_addr is required"))
	}
	if c.Server.GRPCAddr == "" {
		errs = append(errs, errors.New("server: grpc_addr is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server: shutdown_timeout must be positive"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage: sqlite_path is required for the sqlite driver"))
		}
	case DriverMySQL:
		if c.Storage.MySQLDSN == "" {
			errs = append(errs, errors.New("storage: mysql_dsn is required for the mysql driver"))
		}
	case DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q (valid: memory, sqlite, mysql, redis)", c.Storage.Driver))
	}
	if c.Storage.MaxRecordSize <= 0 {
		errs = append(errs, errors.New("storage: max_record_size must be positive"))
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis: addr is required"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats: url is required when enabled"))
	}

	if c.Events.QueueSize <= 0 {
		errs = append(errs, errors.New("events: queue_size must be positive"))
	}
	if c.Events.Workers <= 0 {
		errs = append(errs, errors.New("events: workers must be positive"))
	}
	if c.Auction.SystemPrincipal == "" {
		errs = append(errs, errors.New("auction: system_principal is required"))
	}

	return errors.Join(errs...)
}
