package http

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kjstillabower/weather-record-service/internal/observability"
)

// InFlightTracker counts requests being served so shutdown can drain them.
// Build one per server and hand it to NewRouter through RouterConfig.
type InFlightTracker struct {
	active atomic.Int64
}

// NewInFlightTracker returns a tracker with no active requests.
func NewInFlightTracker() *InFlightTracker {
	return &InFlightTracker{}
}

// Begin marks a request as started. The returned func marks it finished;
// calling it more than once has no further effect.
func (t *InFlightTracker) Begin() (done func()) {
	t.active.Add(1)
	observability.HTTPRequestsInFlight.Inc()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.active.Add(-1)
			observability.HTTPRequestsInFlight.Dec()
		})
	}
}

// Active returns the number of requests currently being served.
func (t *InFlightTracker) Active() int64 {
	return t.active.Load()
}

// Drain blocks until no request is active, polling every pollInterval, or
// returns ctx.Err() when ctx ends first.
func (t *InFlightTracker) Drain(ctx context.Context, pollInterval time.Duration) error {
	if t.Active() == 0 {
		return nil
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.Active() == 0 {
				return nil
			}
		}
	}
}
