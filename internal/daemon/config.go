package daemon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xueban-network/xueban/internal/app/badges"
	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database"
)

// Environment overrides.
const (
	EnvHome = "XUEBAN_HOME"
	EnvDSN  = "XUEBAN_DATABASE_DSN"
)

// Config is the daemon configuration, stored as TOML in the home directory.
type Config struct {
	API       APIConfig             `toml:"api"`
	Database  database.Config       `toml:"database"`
	Redis     RedisConfig           `toml:"redis"`
	Log       LogConfig             `toml:"log"`
	Metrics   MetricsConfig         `toml:"metrics"`
	Rewards   domain.RewardSchedule `toml:"rewards"`
	Badges    badges.Config         `toml:"badges"`
	Community CommunityConfig       `toml:"community"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	RequestTimeout string `toml:"request_timeout"`
}

// Addr returns host:port.
func (c APIConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// RedisConfig enables the shared rate limiter. Empty Addr keeps limits in
// process memory.
type RedisConfig struct {
	Addr   string `toml:"addr"`
	Prefix string `toml:"prefix"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // console or json
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// CommunityConfig tunes community features.
type CommunityConfig struct {
	PostInterval string `toml:"post_interval"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           3000,
			RequestTimeout: "30s",
		},
		Database: database.Config{
			Driver:       database.DriverSQLite,
			Path:         filepath.Join(Home(), "xueban.db"),
			MaxOpenConns: 20,
		},
		Redis: RedisConfig{
			Prefix: "xueban:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Rewards: domain.DefaultRewardSchedule(),
		Badges:  badges.DefaultConfig(),
		Community: CommunityConfig{
			PostInterval: "10s",
		},
	}
}

// Home returns the data directory: $XUEBAN_HOME, else ~/.xueban.
func Home() string {
	if h := os.Getenv(EnvHome); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xueban"
	}
	return filepath.Join(home, ".xueban")
}

// ConfigPath returns the default config file location.
func ConfigPath() string { return filepath.Join(Home(), "config.toml") }

// LoadConfig reads path over the defaults. A missing file yields the
// defaults. Environment overrides are applied last.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = ConfigPath()
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if dsn := os.Getenv(EnvDSN); dsn != "" {
		cfg.Database.Driver = database.DriverPostgres
		cfg.Database.DSN = dsn
	}
	return cfg, cfg.Validate()
}

// Validate checks values the TOML decoder cannot.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if _, err := parseDuration(c.API.RequestTimeout, "api.request_timeout"); err != nil {
		return err
	}
	if _, err := parseDuration(c.Community.PostInterval, "community.post_interval"); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	r := c.Rewards
	if r.Upload < 0 || r.Comment < 0 || r.Rating < 0 || r.Post < 0 || r.Answer < 0 {
		return fmt.Errorf("rewards must not be negative")
	}
	return nil
}

// RequestTimeout returns api.request_timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	d, _ := parseDuration(c.API.RequestTimeout, "")
	return d
}

// PostInterval returns community.post_interval as a duration.
func (c Config) PostInterval() time.Duration {
	d, _ := parseDuration(c.Community.PostInterval, "")
	return d
}

func parseDuration(s, key string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// WriteConfig writes cfg to path as TOML, creating parent directories.
func WriteConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := EncodeConfig(f, cfg); err != nil {
		return err
	}
	return f.Close()
}

// EncodeConfig writes cfg as TOML.
func EncodeConfig(w io.Writer, cfg Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// NewLogger builds a zap logger from the log section.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if c.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = level > zapcore.DebugLevel
	return zc.Build()
}
