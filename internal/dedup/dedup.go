// Package dedup collapses identical concurrent requests into one call.
package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/observability/metrics"
)

const DefaultWindow = 5 * time.Second

// ErrSuperseded settles a call that outlived its window and was replaced
// by a newer call for the same key.
var ErrSuperseded = errors.New("superseded")

// Call is one in-flight or settled request shared by every caller that
// asked for the same key inside the window.
type Call[T any] struct {
	key     string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	settled atomic.Bool

	val T
	err error
}

func (c *Call[T]) settle(val T, err error) bool {
	won := false
	c.once.Do(func() {
		c.val, c.err = val, err
		c.settled.Store(true)
		close(c.done)
		won = true
	})
	return won
}

// Key returns the dedup key the call was started for.
func (c *Call[T]) Key() string { return c.key }

// Done is closed once the call settles.
func (c *Call[T]) Done() <-chan struct{} { return c.done }

// Wait blocks until the call settles or ctx ends. Giving up on ctx does not
// cancel the call for other waiters.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Group tracks calls per key. The zero value is not usable; use NewGroup.
type Group[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	clock   clock.Clock
	metrics *metrics.CoreMetrics
	entries map[string]*Call[T]
}

type Option func(*options)

type options struct {
	clock   clock.Clock
	metrics *metrics.CoreMetrics
}

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithMetrics(m *metrics.CoreMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// NewGroup returns a group sharing calls for window. A non-positive window
// falls back to DefaultWindow.
func NewGroup[T any](window time.Duration, opts ...Option) *Group[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Group[T]{
		window:  window,
		clock:   o.clock,
		metrics: o.metrics,
		entries: make(map[string]*Call[T]),
	}
}

// Do returns the pending call for key when one started inside the window.
// Otherwise it aborts any stale pending call for key and starts fn in a new
// goroutine. ctx only contributes values; cancellation comes from the group.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) *Call[T] {
	g.mu.Lock()
	now := g.clock.Now()

	if existing, ok := g.entries[key]; ok {
		if !existing.settled.Load() && now.Sub(existing.started) < g.window {
			g.mu.Unlock()
			g.metrics.IncDedup(metrics.DedupResultShared)
			return existing
		}
		delete(g.entries, key)
		g.supersede(existing)
	}
	g.purgeLocked(now)

	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	call := &Call[T]{
		key:     key,
		started: now,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	g.entries[key] = call
	g.mu.Unlock()

	g.metrics.IncDedup(metrics.DedupResultStarted)
	go g.run(callCtx, call, fn)
	return call
}

func (g *Group[T]) run(ctx context.Context, call *Call[T], fn func(context.Context) (T, error)) {
	defer call.cancel()

	var (
		val T
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		val, err = fn(ctx)
	}()
	// A superseded call already settled; its late result is dropped.
	call.settle(val, err)
}

// purgeLocked drops settled and expired entries. An expired call that is
// still pending is aborted so it cannot resolve after it stops being tracked.
func (g *Group[T]) purgeLocked(now time.Time) {
	for key, call := range g.entries {
		if call.settled.Load() {
			delete(g.entries, key)
			continue
		}
		if now.Sub(call.started) >= g.window {
			delete(g.entries, key)
			g.supersede(call)
		}
	}
}

// supersede cancels a pending call and settles it with ErrSuperseded. Its
// late result is discarded.
func (g *Group[T]) supersede(call *Call[T]) {
	if call.settled.Load() {
		return
	}
	call.cancel()
	var zero T
	if call.settle(zero, ErrSuperseded) {
		g.metrics.IncDedup(metrics.DedupResultSuperseded)
	}
}

// Len reports the number of tracked entries.
func (g *Group[T]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// PanicError reports a request function that panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "dedup: request panicked"
}
