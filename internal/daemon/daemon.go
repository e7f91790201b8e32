// Package daemon wires the services together and runs the HTTP server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/xueban-network/xueban/internal/api"
	"github.com/xueban-network/xueban/internal/app/accounts"
	"github.com/xueban-network/xueban/internal/app/activity"
	"github.com/xueban-network/xueban/internal/app/badges"
	"github.com/xueban-network/xueban/internal/app/escrow"
	"github.com/xueban-network/xueban/internal/app/ledger"
	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database"
	"github.com/xueban-network/xueban/internal/infra/ratelimit"
)

const shutdownTimeout = 30 * time.Second

// Daemon owns the database, services and HTTP server.
type Daemon struct {
	Config    Config
	DB        *database.DB
	Accounts  *accounts.Service
	Ledger    *ledger.Ledger
	Badges    *badges.Service
	Escrow    *escrow.Service
	Activity  *activity.Service
	Refresher *badges.Refresher

	limiter domain.RateLimiter
	closers []func() error
	logger  *zap.Logger
}

// New opens the database (applying migrations) and builds every service.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Daemon, error) {
	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		Config:  cfg,
		DB:      db,
		closers: []func() error{db.Close},
		logger:  logger,
	}

	d.Ledger = ledger.New(db, logger)
	d.Accounts = accounts.New(db, logger)
	d.Escrow = escrow.New(db, d.Ledger, cfg.Rewards, logger)
	d.Badges, err = badges.New(db, cfg.Badges, logger)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("badges: %w", err)
	}
	d.Refresher = badges.NewRefresher(d.Badges, cfg.Badges.RefreshQueue)

	if cfg.Redis.Addr != "" {
		rl, err := ratelimit.Dial(cfg.Redis.Addr, cfg.Redis.Prefix)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.limiter = rl
		d.closers = append(d.closers, func() error { rl.Close(); return nil })
		logger.Info("Using Redis rate limiter", zap.String("addr", cfg.Redis.Addr))
	} else {
		d.limiter = ratelimit.NewMemory()
	}

	d.Activity = activity.New(db, d.Ledger, cfg.Rewards, logger,
		activity.WithRateLimiter(d.limiter, cfg.PostInterval()),
		activity.WithBadgeNotifier(d.Refresher))
	return d, nil
}

// Handler returns the HTTP API.
func (d *Daemon) Handler() http.Handler {
	srv := api.NewServer(api.Services{
		Accounts: d.Accounts,
		Ledger:   d.Ledger,
		Badges:   d.Badges,
		Escrow:   d.Escrow,
		Activity: d.Activity,
	}, d.logger)
	if d.Config.Metrics.Enabled {
		srv.EnableMetrics()
	}
	srv.SetRequestTimeout(d.Config.RequestTimeout())
	return srv.Handler()
}

// Run serves HTTP and refreshes badges until ctx is cancelled, then shuts
// the server down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.Config.API.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.Config.API.Addr(), err)
	}
	return d.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	bg, stop := context.WithCancel(ctx)
	defer stop()
	var wg conc.WaitGroup
	wg.Go(func() { d.Refresher.Run(bg) })

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("API listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("Graceful shutdown incomplete", zap.Error(err))
	}
	stop()
	wg.Wait()

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	d.logger.Info("API stopped")
	return nil
}

// Close releases the database and the rate limiter.
func (d *Daemon) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
