package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/icheer/qwenchat2api/pkg/credential"
)

// PoolCounter is the slice of the credential manager the refresher
// reads.
type PoolCounter interface {
	Counts(ctx context.Context, kind credential.Kind) (valid, invalid int, err error)
}

// PoolRefresher keeps the credential pool gauges current by polling
// the pool counts on a cron schedule.
type PoolRefresher struct {
	collector *Collector
	counter   PoolCounter
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewPoolRefresher creates a refresher for the given schedule, in the
// standard cron syntax including "@every" descriptors.
func NewPoolRefresher(collector *Collector, counter PoolCounter, schedule string) *PoolRefresher {
	return &PoolRefresher{
		collector: collector,
		counter:   counter,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    slog.Default().With("component", "metrics.refresher"),
	}
}

// Start validates the schedule, runs one immediate refresh, and begins
// the periodic refresh. The refresher stops when ctx is cancelled.
func (r *PoolRefresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid pool refresh schedule %q: %w", r.schedule, err)
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		r.refresh(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pool refresh: %w", err)
	}

	// Gauges should not read zero until the first tick fires.
	r.refresh(ctx)

	r.cron.Start()
	r.running = true
	r.logger.Info("credential pool gauge refresh started", "schedule", r.schedule)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// Stop halts the periodic refresh. Safe to call more than once.
func (r *PoolRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
}

func (r *PoolRefresher) refresh(ctx context.Context) {
	for _, kind := range []credential.Kind{credential.KindToken, credential.KindCookie} {
		valid, invalid, err := r.counter.Counts(ctx, kind)
		if err != nil {
			r.logger.Error("failed to read pool counts",
				"kind", kind,
				"error", err,
			)
			continue
		}
		r.collector.SetPoolSize(string(kind), valid, invalid)
	}
}
