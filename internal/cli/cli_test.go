package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xueban-network/xueban/internal/daemon"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("xueban %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// Commands share package-level flag state, so the whole workflow runs in
// one test.
func TestCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv(daemon.EnvHome, home)
	t.Setenv(daemon.EnvDSN, "")
	cfg := filepath.Join(home, "config.toml")

	out := mustRun(t, "--config", cfg, "config", "init")
	if !strings.Contains(out, "Wrote") {
		t.Errorf("config init output = %q", out)
	}
	if _, err := os.Stat(cfg); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := run(t, "--config", cfg, "config", "init"); err == nil {
		t.Error("second config init without --force should fail")
	}
	mustRun(t, "--config", cfg, "config", "init", "--force")

	out = mustRun(t, "--config", cfg, "config", "show")
	if !strings.Contains(out, "[rewards]") {
		t.Errorf("config show output missing [rewards]:\n%s", out)
	}

	out = mustRun(t, "--config", cfg, "migrate")
	if !strings.Contains(out, "3 migrations") {
		t.Errorf("migrate output = %q", out)
	}

	out = mustRun(t, "--config", cfg, "account", "create", "alice")
	if !strings.Contains(out, `user account "alice" (id 1)`) {
		t.Errorf("account create output = %q", out)
	}
	mustRun(t, "--config", cfg, "account", "create", "bob")
	if _, err := run(t, "--config", cfg, "account", "create", "alice"); err == nil {
		t.Error("duplicate account create should fail")
	}

	out = mustRun(t, "--config", cfg, "account", "grant", "1", "120")
	if !strings.Contains(out, "balance 120, level 2") || !strings.Contains(out, "Level up") {
		t.Errorf("grant output = %q", out)
	}
	if _, err := run(t, "--config", cfg, "account", "grant", "1", "-5"); err == nil {
		t.Error("negative grant should fail")
	}

	out = mustRun(t, "--config", cfg, "account", "show", "1")
	if !strings.Contains(out, "XP:       120") {
		t.Errorf("show output = %q", out)
	}

	out = mustRun(t, "--config", cfg, "account", "badges", "1")
	if !strings.Contains(out, "Pioneer") {
		t.Errorf("badges output = %q", out)
	}

	out = mustRun(t, "--config", cfg, "leaderboard")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.Contains(lines[1], "alice") {
		t.Errorf("leaderboard output = %q", out)
	}

	mustRun(t, "--config", cfg, "account", "ban", "2")
	out = mustRun(t, "--config", cfg, "account", "show", "2")
	if !strings.Contains(out, "banned") {
		t.Errorf("show banned output = %q", out)
	}
	mustRun(t, "--config", cfg, "account", "ban", "2", "--lift")

	if _, err := run(t, "--config", cfg, "account", "show", "99"); err == nil {
		t.Error("show unknown account should fail")
	}
	if _, err := run(t, "--config", cfg, "account", "show", "abc"); err == nil {
		t.Error("show with bad id should fail")
	}
}
