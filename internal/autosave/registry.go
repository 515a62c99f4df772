package autosave

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/smallbiznis/vendorhub/internal/notify"
	"github.com/smallbiznis/vendorhub/internal/observability/metrics"
)

var Module = fx.Module("autosave",
	fx.Provide(NewRegistry),
)

// Registry keeps one coordinator per entity key.
type Registry struct {
	opts Options
	log  *zap.Logger

	mu     sync.Mutex
	coords map[string]*Coordinator
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Config    config.Config
	Clock     clock.Clock
	Notifier  notify.Notifier
	Metrics   *metrics.CoreMetrics `optional:"true"`
	Log       *zap.Logger
}

func NewRegistry(p Params) *Registry {
	r := NewRegistryWithOptions(Options{
		Debounce: p.Config.Autosave.Debounce,
		Clock:    p.Clock,
		Notifier: p.Notifier,
		Metrics:  p.Metrics,
		Log:      p.Log,
	})
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: r.CloseAll,
		})
	}
	return r
}

func NewRegistryWithOptions(opts Options) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		opts:   opts,
		log:    opts.Log.Named("autosave.registry"),
		coords: make(map[string]*Coordinator),
	}
}

// Open returns the coordinator for key, creating it from initial and save
// when none is open. An existing coordinator keeps its own state.
func (r *Registry) Open(key string, initial Snapshot, save SaveFunc) (*Coordinator, bool, error) {
	key = strings.TrimSpace(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.coords[key]; ok {
		return c, false, nil
	}
	c, err := New(key, initial, save, r.opts)
	if err != nil {
		return nil, false, err
	}
	r.coords[c.Key()] = c
	r.log.Debug("opened", zap.String("entity", c.Key()))
	return c, true, nil
}

func (r *Registry) Get(key string) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coords[key]
	return c, ok
}

// Close flushes and removes the coordinator for key.
func (r *Registry) Close(ctx context.Context, key string) error {
	r.mu.Lock()
	c, ok := r.coords[key]
	delete(r.coords, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close(ctx)
}

// CloseAll flushes and removes every coordinator.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	coords := r.coords
	r.coords = make(map[string]*Coordinator)
	r.mu.Unlock()

	var errs []error
	for key, c := range coords {
		if err := c.Close(ctx); err != nil {
			r.log.Warn("flush on close failed", zap.String("entity", key), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.coords)
}
