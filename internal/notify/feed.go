package notify

import (
	"context"
	"sync"

	"github.com/smallbiznis/vendorhub/internal/clock"
	obscontext "github.com/smallbiznis/vendorhub/internal/observability/context"
)

const DefaultFeedSize = 20

// Feed keeps the most recent notices per entity so editor clients can poll
// for toasts.
type Feed struct {
	mu      sync.Mutex
	size    int
	clock   clock.Clock
	entries map[string][]Notice
}

func NewFeed(c clock.Clock) *Feed {
	return NewFeedWithSize(c, DefaultFeedSize)
}

func NewFeedWithSize(c clock.Clock, size int) *Feed {
	if c == nil {
		c = clock.New()
	}
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{size: size, clock: c, entries: make(map[string][]Notice)}
}

// Notify records the notice under the entity carried by ctx. Notices without
// an entity are dropped.
func (f *Feed) Notify(ctx context.Context, kind Kind, message string) error {
	entity := obscontext.EntityFromContext(ctx)
	if entity == "" {
		return nil
	}
	n := Notice{Entity: entity, Kind: kind, Message: message, At: f.clock.Now()}

	f.mu.Lock()
	defer f.mu.Unlock()
	list := append(f.entries[entity], n)
	if len(list) > f.size {
		list = append([]Notice(nil), list[len(list)-f.size:]...)
	}
	f.entries[entity] = list
	return nil
}

// Recent returns a copy of the notices held for entity, oldest first.
func (f *Feed) Recent(entity string) []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.entries[entity]
	out := make([]Notice, len(list))
	copy(out, list)
	return out
}

// Drain returns and clears the notices held for entity.
func (f *Feed) Drain(entity string) []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.entries[entity]
	delete(f.entries, entity)
	if list == nil {
		return []Notice{}
	}
	return list
}

// Forget drops everything held for entity.
func (f *Feed) Forget(entity string) {
	f.mu.Lock()
	delete(f.entries, entity)
	f.mu.Unlock()
}
