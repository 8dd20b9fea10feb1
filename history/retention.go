package history

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Retention periodically prunes sessions older than a maximum age
type Retention struct {
	store   Store
	maxAge  time.Duration
	logger  *zap.Logger
	pruned  prometheus.Counter
	now     func() time.Time
	cron    *cron.Cron
	timeout time.Duration
}

// NewRetention schedules pruning with a standard cron expression such as
// "0 3 * * *" or "@daily". pruned may be nil.
func NewRetention(logger *zap.Logger, store Store, schedule string, maxAge time.Duration, pruned prometheus.Counter) (*Retention, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", maxAge)
	}

	r := &Retention{
		store:   store,
		maxAge:  maxAge,
		logger:  logger,
		pruned:  pruned,
		now:     time.Now,
		cron:    cron.New(),
		timeout: time.Minute,
	}
	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("retention run failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return r, nil
}

// RunOnce prunes now and returns the number of removed sessions
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().Add(-r.maxAge)
	n, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if r.pruned != nil {
		r.pruned.Add(float64(n))
	}
	r.logger.Info("pruned conversation sessions", zap.Int64("removed", n), zap.Time("cutoff", cutoff))
	return n, nil
}

// Start begins the schedule in the background
func (r *Retention) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}
