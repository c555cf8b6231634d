package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/mazen160/go-random"
	"golang.org/x/time/rate"
)

const defaultHistorySize = 200

type Options struct {
	// the minimum spacing between any two request starts, enforced
	// across every caller sharing this limiter
	MinInterval time.Duration
	// bounds for the randomized extra delay added before each request
	// so runs don't produce evenly-spaced, fingerprintable traffic
	JitterMin time.Duration
	JitterMax time.Duration
	// capacity of the request timestamp history, defaults to 200
	HistorySize int
}

// Limiter paces outbound requests for a whole run. It only ever delays,
// it never fails except when the context is cancelled.
type Limiter struct {
	opts    Options
	limiter *rate.Limiter

	mu      sync.Mutex
	history []time.Time
}

func New(opts Options) *Limiter {
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Limiter{
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (l *Limiter) jitter() time.Duration {
	if l.opts.JitterMax <= l.opts.JitterMin {
		return l.opts.JitterMin
	}
	ms, err := random.IntRange(
		int(l.opts.JitterMin.Milliseconds()),
		int(l.opts.JitterMax.Milliseconds()),
	)
	if err != nil {
		return l.opts.JitterMin
	}
	return time.Duration(ms) * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until the caller may start its request. The jitter sleep
// happens before the token wait so the spacing guarantee is never
// shortened by an unlucky jitter sample.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := sleep(ctx, l.jitter())
	if err != nil {
		return err
	}
	err = l.limiter.Wait(ctx)
	if err != nil {
		return err
	}

	l.record(time.Now())
	return nil
}

func (l *Limiter) record(t time.Time) {
	if len(l.history) == l.opts.HistorySize {
		copy(l.history, l.history[1:])
		l.history = l.history[:len(l.history)-1]
	}
	l.history = append(l.history, t)
}

// History returns a copy of the recorded request timestamps, oldest
// first. The record is bounded, older entries are silently evicted.
func (l *Limiter) History() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]time.Time, len(l.history))
	copy(out, l.history)
	return out
}

// RequestsSince counts recorded requests newer than the cutoff.
func (l *Limiter) RequestsSince(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].Before(cutoff) {
			break
		}
		count++
	}
	return count
}
