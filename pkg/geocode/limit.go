package geocode

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent is the default number of simultaneous outbound calls.
const DefaultMaxConcurrent = 10

// DefaultCallTimeout bounds a single outbound call.
const DefaultCallTimeout = 10 * time.Second

// LimitedClient bounds the number of in-flight calls to the wrapped client
// and gives each call its own deadline. Acquire waits are cancelled with ctx;
// an expired call is reported as StatusException and never affects siblings.
type LimitedClient struct {
	next     Client
	sem      *semaphore.Weighted
	timeout  time.Duration
	inFlight atomic.Int64
}

// NewLimitedClient allows at most n concurrent calls, each bounded by timeout.
func NewLimitedClient(next Client, n int, timeout time.Duration) *LimitedClient {
	if n <= 0 {
		n = DefaultMaxConcurrent
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &LimitedClient{next: next, sem: semaphore.NewWeighted(int64(n)), timeout: timeout}
}

// Geocode implements Client.
func (l *LimitedClient) Geocode(ctx context.Context, query string) ([]Candidate, Status) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, StatusException
	}
	defer l.sem.Release(1)

	l.inFlight.Add(1)
	defer l.inFlight.Add(-1)

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cands, status := l.next.Geocode(callCtx, query)
	if callCtx.Err() != nil && status == StatusOK {
		// The provider answered after the deadline; treat as a timeout.
		zap.L().Debug("geocode call exceeded deadline", zap.String("query", query))
		return nil, StatusException
	}
	return cands, status
}

// InFlight returns the number of calls currently holding a permit.
func (l *LimitedClient) InFlight() int64 {
	return l.inFlight.Load()
}
