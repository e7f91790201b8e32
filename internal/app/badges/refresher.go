package badges

import (
	"context"

	"go.uber.org/zap"

	"github.com/xueban-network/xueban/internal/infra/observability"
)

// Refresher re-evaluates badges off the request path. Notify never blocks:
// when the queue is full the request is dropped, and the next profile read
// catches the account up.
type Refresher struct {
	svc    *Service
	queue  chan int64
	logger *zap.Logger
}

// NewRefresher creates a refresher with a queue of the given size.
func NewRefresher(svc *Service, size int) *Refresher {
	if size <= 0 {
		size = DefaultConfig().RefreshQueue
	}
	return &Refresher{
		svc:    svc,
		queue:  make(chan int64, size),
		logger: svc.logger.Named("refresher"),
	}
}

// Notify queues an account for re-evaluation.
func (r *Refresher) Notify(accountID int64) {
	select {
	case r.queue <- accountID:
	default:
		observability.BadgeRefreshDropped.Inc()
	}
}

// Run processes queued accounts until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue:
			if _, err := r.svc.Refresh(ctx, id); err != nil && ctx.Err() == nil {
				r.logger.Warn("Badge refresh failed", zap.Int64("accountID", id), zap.Error(err))
			}
		}
	}
}

// Pending returns the number of queued accounts.
func (r *Refresher) Pending() int { return len(r.queue) }
