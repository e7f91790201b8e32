package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestServe_HealthAndShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "daemon.db")

	d, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer d.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/health", ln.Addr())
	resp, err := http.Get(url)
	if err != nil {
		cancel()
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after cancel", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestNew_WiresRefresher(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "daemon.db")

	d, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer d.Close()

	acct, err := d.Accounts.Create(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := d.Activity.Upload(context.Background(), acct.ID, "notes", ""); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if d.Refresher.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 queued refresh", d.Refresher.Pending())
	}
}
