// Package autosave coordinates debounced, version-checked saves of edited
// entities.
package autosave

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/notify"
	obscontext "github.com/smallbiznis/vendorhub/internal/observability/context"
	"github.com/smallbiznis/vendorhub/internal/observability/metrics"
)

const DefaultDebounce = 600 * time.Millisecond

// Options configures a Coordinator. Zero values fall back to defaults.
type Options struct {
	Debounce time.Duration
	Clock    clock.Clock
	Notifier notify.Notifier
	Metrics  *metrics.CoreMetrics
	Log      *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Notifier == nil {
		o.Notifier = notify.Nop{}
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// Coordinator owns the live and acknowledged values of one entity. At most
// one save is in flight at a time; edits that arrive meanwhile form the
// next save.
type Coordinator struct {
	key  string
	save SaveFunc
	opts Options
	log  *zap.Logger
	base context.Context

	mu       sync.Mutex
	live     Record
	prev     Record
	version  int64
	timer    clock.Timer
	timerSeq uint64
	inFlight bool
	done     chan struct{}
	deferred bool
	conflict *ConflictInfo
	lastErr  error
	closed   bool
}

func New(key string, initial Snapshot, save SaveFunc, opts Options) (*Coordinator, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidConfig)
	}
	if save == nil {
		return nil, fmt.Errorf("%w: nil save func", ErrInvalidConfig)
	}
	opts = opts.withDefaults()

	return &Coordinator{
		key:     key,
		save:    save,
		opts:    opts,
		log:     opts.Log.Named("autosave").With(zap.String("entity", key)),
		base:    obscontext.WithEntity(context.Background(), key),
		live:    Merge(initial.Value, nil),
		prev:    Merge(initial.Value, nil),
		version: initial.Version,
	}, nil
}

func (c *Coordinator) Key() string { return c.key }

// Apply merges changes into the live value.
func (c *Coordinator) Apply(changes Patch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	for field, value := range changes {
		c.live[field] = value
	}
	c.scheduleLocked()
	return nil
}

// Replace swaps the whole live value. Fields left out of value are saved
// as nil.
func (c *Coordinator) Replace(value Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.live = Merge(value, nil)
	c.scheduleLocked()
	return nil
}

// Refresh adopts server as the acknowledged snapshot and clears any
// conflict. With keepLocal the unsaved local edits are replayed on top of
// the server value; otherwise the live value is reset to it.
func (c *Coordinator) Refresh(ctx context.Context, server Snapshot, keepLocal bool) error {
	if err := c.lockIdle(ctx); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	local := Diff(c.live, c.prev)
	c.prev = Merge(server.Value, nil)
	c.version = server.Version
	c.conflict = nil
	c.lastErr = nil
	if keepLocal {
		c.live = Merge(server.Value, local)
	} else {
		c.live = Merge(server.Value, nil)
	}
	c.scheduleLocked()
	c.log.Debug("refreshed from server", zap.Int64("version", server.Version), zap.Bool("keep_local", keepLocal))
	return nil
}

// Flush saves pending edits now, waiting for any in-flight save first.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.flush(ctx)
}

// Close flushes pending edits and rejects further changes.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()

	return c.flush(ctx)
}

func (c *Coordinator) flush(ctx context.Context) error {
	if err := c.lockIdle(ctx); err != nil {
		return err
	}
	c.stopTimerLocked()
	if c.conflict != nil {
		info := *c.conflict
		c.mu.Unlock()
		return &ConflictError{ConflictInfo: info}
	}
	patch, expected, ok := c.beginSaveLocked()
	c.mu.Unlock()
	if !ok {
		return nil
	}

	res := c.runSave(obscontext.WithEntity(ctx, c.key), patch, expected)
	switch res.Outcome {
	case OutcomeSaved:
		return nil
	case OutcomeConflict:
		return &ConflictError{ConflictInfo: ConflictInfo{ExpectedVersion: expected, CurrentVersion: res.Version}}
	default:
		return res.Err
	}
}

// lockIdle acquires mu once no save is in flight. On error mu is not held.
func (c *Coordinator) lockIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.inFlight {
			return nil
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Coordinator) scheduleLocked() {
	if c.closed || c.conflict != nil {
		c.stopTimerLocked()
		return
	}
	if len(Diff(c.live, c.prev)) == 0 {
		c.stopTimerLocked()
		c.deferred = false
		return
	}
	c.stopTimerLocked()
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.opts.Clock.AfterFunc(c.opts.Debounce, func() { c.fire(seq) })
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

func (c *Coordinator) fire(seq uint64) {
	c.mu.Lock()
	if seq != c.timerSeq || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.conflict != nil {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.deferred = true
		c.mu.Unlock()
		return
	}
	patch, expected, ok := c.beginSaveLocked()
	c.mu.Unlock()
	if !ok {
		return
	}
	c.runSave(c.base, patch, expected)
}

func (c *Coordinator) beginSaveLocked() (Patch, int64, bool) {
	patch := Diff(c.live, c.prev)
	if len(patch) == 0 {
		return nil, 0, false
	}
	c.inFlight = true
	c.deferred = false
	c.done = make(chan struct{})
	return patch, c.version, true
}

func (c *Coordinator) runSave(ctx context.Context, patch Patch, expected int64) Result {
	started := c.opts.Clock.Now()
	res := c.callSave(ctx, clonePatch(patch), expected)
	c.opts.Metrics.ObserveSave(string(res.Outcome), c.opts.Clock.Now().Sub(started), res.Err)

	c.mu.Lock()
	c.inFlight = false
	close(c.done)
	deferred := c.deferred
	c.deferred = false

	var (
		kind    notify.Kind
		message string
	)
	switch res.Outcome {
	case OutcomeSaved:
		c.prev = Merge(c.prev, patch)
		c.version = res.Version
		c.conflict = nil
		c.lastErr = nil
		if c.timer == nil {
			c.scheduleLocked()
		}
		kind, message = notify.KindSuccess, "Changes saved"
		c.log.Debug("saved", zap.Int64("version", res.Version), zap.Int("fields", len(patch)))
	case OutcomeConflict:
		c.conflict = &ConflictInfo{ExpectedVersion: expected, CurrentVersion: res.Version}
		c.stopTimerLocked()
		kind, message = notify.KindError, "This record was changed elsewhere. Refresh to continue editing."
		c.log.Warn("version conflict", zap.Int64("expected_version", expected), zap.Int64("current_version", res.Version))
	default:
		c.lastErr = res.Err
		if deferred {
			c.scheduleLocked()
		}
		kind, message = notify.KindError, "Could not save changes. Your edits are kept."
		c.log.Warn("save failed", zap.Error(res.Err))
	}
	c.mu.Unlock()

	_ = c.opts.Notifier.Notify(ctx, kind, message)
	return res
}

func (c *Coordinator) callSave(ctx context.Context, patch Patch, expected int64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(fmt.Errorf("save panicked: %v", r))
		}
	}()
	res = c.save(ctx, patch, expected)
	switch res.Outcome {
	case OutcomeSaved, OutcomeConflict:
	default:
		res = Failed(res.Err)
	}
	return res
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	switch {
	case c.closed && !c.inFlight:
		return StateClosed
	case c.conflict != nil:
		return StateConflict
	case c.inFlight:
		return StateSaving
	case c.timer != nil:
		return StateDebouncing
	case len(Diff(c.live, c.prev)) > 0:
		return StatePending
	default:
		return StateIdle
	}
}

// Conflict returns the unresolved conflict, if any.
func (c *Coordinator) Conflict() *ConflictInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conflict == nil {
		return nil
	}
	info := *c.conflict
	return &info
}

// Value returns a copy of the live value.
func (c *Coordinator) Value() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Merge(c.live, nil)
}

// Acknowledged returns the last snapshot the store accepted.
func (c *Coordinator) Acknowledged() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Value: Merge(c.prev, nil), Version: c.version}
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Key:     c.key,
		State:   c.stateLocked(),
		Version: c.version,
		Value:   Merge(c.live, nil),
		Pending: Diff(c.live, c.prev),
	}
	if c.conflict != nil {
		info := *c.conflict
		st.Conflict = &info
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}
