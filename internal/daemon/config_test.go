package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xueban-network/xueban/internal/infra/database"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 3000)
	}
	if cfg.Database.Driver != database.DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, database.DriverSQLite)
	}
	if filepath.Base(cfg.Database.Path) != "xueban.db" {
		t.Errorf("Database.Path = %q, want xueban.db under home", cfg.Database.Path)
	}
	if cfg.Rewards.Upload != 50 || cfg.Rewards.Answer != 2 {
		t.Errorf("Rewards = %+v, want upload 50 and answer 2", cfg.Rewards)
	}
	if cfg.Badges.PioneerCutoff != 100 {
		t.Errorf("Badges.PioneerCutoff = %d, want 100", cfg.Badges.PioneerCutoff)
	}
	if cfg.PostInterval() != 10*time.Second {
		t.Errorf("PostInterval() = %v, want 10s", cfg.PostInterval())
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Errorf("RequestTimeout() = %v, want 30s", cfg.RequestTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	t.Setenv(EnvDSN, "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want default 3000", cfg.API.Port)
	}
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	t.Setenv(EnvDSN, "")
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[api]
port = 8080

[rewards]
upload = 75

[community]
post_interval = "1m"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want default kept", cfg.API.Host)
	}
	if cfg.Rewards.Upload != 75 {
		t.Errorf("Rewards.Upload = %d, want 75", cfg.Rewards.Upload)
	}
	if cfg.Rewards.Comment != 5 {
		t.Errorf("Rewards.Comment = %d, want default 5", cfg.Rewards.Comment)
	}
	if cfg.PostInterval() != time.Minute {
		t.Errorf("PostInterval() = %v, want 1m", cfg.PostInterval())
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	t.Setenv(EnvDSN, "")

	tests := map[string]string{
		"syntax":   "[api\nport = 1",
		"port":     "[api]\nport = 70000",
		"duration": "[community]\npost_interval = \"soon\"",
		"level":    "[log]\nlevel = \"loud\"",
		"reward":   "[rewards]\npost = -1",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("LoadConfig() = nil error, want failure")
			}
		})
	}
}

func TestLoadConfig_DSNFromEnv(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	t.Setenv(EnvDSN, "postgres://xueban@localhost/xueban")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Database.Driver != database.DriverPostgres {
		t.Errorf("Database.Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://xueban@localhost/xueban" {
		t.Errorf("Database.DSN = %q", cfg.Database.DSN)
	}
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	t.Setenv(EnvDSN, "")
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := DefaultConfig()
	cfg.API.Port = 4321
	cfg.Redis.Addr = "localhost:6379"
	if err := WriteConfig(path, cfg); err != nil {
		t.Fatalf("WriteConfig() error: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.API.Port != 4321 || got.Redis.Addr != "localhost:6379" {
		t.Errorf("round trip = %+v / %+v", got.API, got.Redis)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := NewLogger(LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("NewLogger(%s) error: %v", format, err)
		}
		logger.Sync()
	}
	if _, err := NewLogger(LogConfig{Level: "loud"}); err == nil {
		t.Error("NewLogger(loud) = nil error, want failure")
	}
}
