package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/notify"
)

type saveCall struct {
	patch    Patch
	expected int64
}

type fakeStore struct {
	mu      sync.Mutex
	calls   []saveCall
	results []Result
	hook    func()
}

func (s *fakeStore) save(_ context.Context, patch Patch, expected int64) Result {
	s.mu.Lock()
	s.calls = append(s.calls, saveCall{patch: patch, expected: expected})
	var res Result
	if len(s.results) > 0 {
		res = s.results[0]
		s.results = s.results[1:]
	} else {
		res = Saved(expected + 1)
	}
	hook := s.hook
	s.hook = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return res
}

func (s *fakeStore) Calls() []saveCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]saveCall(nil), s.calls...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (n *recordingNotifier) Notify(_ context.Context, kind notify.Kind, _ string) error {
	n.mu.Lock()
	n.kinds = append(n.kinds, kind)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) Kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Kind(nil), n.kinds...)
}

const debounce = 600 * time.Millisecond

func newCoordinator(t *testing.T, store *fakeStore) (*Coordinator, *clock.FakeClock, *recordingNotifier) {
	t.Helper()
	fc := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	n := &recordingNotifier{}
	initial := Snapshot{
		Value:   Record{"title": "Staging", "retail_price": "$100", "description": "old"},
		Version: 1,
	}
	c, err := New("service:1", initial, store.save, Options{Debounce: debounce, Clock: fc, Notifier: n})
	require.NoError(t, err)
	return c, fc, n
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(" ", Snapshot{}, func(context.Context, Patch, int64) Result { return Saved(1) }, Options{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New("service:1", Snapshot{}, nil, Options{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestThreeEditsProduceOneSave(t *testing.T) {
	store := &fakeStore{}
	c, fc, n := newCoordinator(t, store)

	require.NoError(t, c.Apply(Patch{"title": "Staging Pro"}))
	fc.Advance(200 * time.Millisecond)
	require.NoError(t, c.Apply(Patch{"retail_price": "$120"}))
	fc.Advance(200 * time.Millisecond)
	require.NoError(t, c.Apply(Patch{"title": "Staging Premium"}))
	assert.Equal(t, StateDebouncing, c.State())

	fc.Advance(debounce)

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, Patch{"title": "Staging Premium", "retail_price": "$120"}, calls[0].patch)
	assert.Equal(t, int64(1), calls[0].expected)

	assert.Equal(t, StateIdle, c.State())
	ack := c.Acknowledged()
	assert.Equal(t, int64(2), ack.Version)
	assert.Equal(t, "Staging Premium", ack.Value["title"])
	assert.Equal(t, []notify.Kind{notify.KindSuccess}, n.Kinds())
}

func TestRevertingEditCancelsSave(t *testing.T) {
	store := &fakeStore{}
	c, fc, _ := newCoordinator(t, store)

	require.NoError(t, c.Apply(Patch{"title": "Other"}))
	require.NoError(t, c.Apply(Patch{"title": "Staging"}))
	assert.Equal(t, StateIdle, c.State())

	fc.Advance(2 * debounce)
	assert.Empty(t, store.Calls())
	assert.Zero(t, fc.Pending())
}

func TestConflictKeepsEditsUntilRefresh(t *testing.T) {
	store := &fakeStore{results: []Result{Conflicted(5)}}
	c, fc, n := newCoordinator(t, store)

	require.NoError(t, c.Apply(Patch{"title": "Mine"}))
	fc.Advance(debounce)

	assert.Equal(t, StateConflict, c.State())
	assert.Equal(t, &ConflictInfo{ExpectedVersion: 1, CurrentVersion: 5}, c.Conflict())
	assert.Equal(t, "Mine", c.Value()["title"])
	assert.Equal(t, []notify.Kind{notify.KindError}, n.Kinds())

	require.NoError(t, c.Apply(Patch{"description": "still mine"}))
	fc.Advance(2 * debounce)
	assert.Len(t, store.Calls(), 1)
	assert.Equal(t, StateConflict, c.State())
	assert.ErrorIs(t, c.Flush(context.Background()), ErrConflict)

	server := Snapshot{Value: Record{"title": "Theirs", "retail_price": "$100", "description": "old"}, Version: 5}
	require.NoError(t, c.Refresh(context.Background(), server, true))
	assert.Nil(t, c.Conflict())
	assert.Equal(t, StateDebouncing, c.State())

	fc.Advance(debounce)
	calls := store.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, int64(5), calls[1].expected)
	assert.Equal(t, Patch{"title": "Mine", "description": "still mine"}, calls[1].patch)
	assert.Equal(t, int64(6), c.Acknowledged().Version)
}

func TestRefreshDiscardingLocalEdits(t *testing.T) {
	store := &fakeStore{results: []Result{Conflicted(3)}}
	c, fc, _ := newCoordinator(t, store)

	require.NoError(t, c.Apply(Patch{"title": "Mine"}))
	fc.Advance(debounce)

	server := Snapshot{Value: Record{"title": "Theirs"}, Version: 3}
	require.NoError(t, c.Refresh(context.Background(), server, false))
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, Record{"title": "Theirs"}, c.Value())
}

func TestFailedSaveKeepsEdits(t *testing.T) {
	store := &fakeStore{results: []Result{Failed(errors.New("connection reset"))}}
	c, fc, n := newCoordinator(t, store)

	require.NoError(t, c.Apply(Patch{"title": "Retry me"}))
	fc.Advance(debounce)

	assert.Equal(t, StatePending, c.State())
	assert.Equal(t, "connection reset", c.Status().LastError)
	assert.Equal(t, int64(1), c.Acknowledged().Version)
	assert.Equal(t, []notify.Kind{notify.KindError}, n.Kinds())

	fc.Advance(2 * debounce)
	assert.Len(t, store.Calls(), 1)

	require.NoError(t, c.Flush(context.Background()))
	calls := store.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, Patch{"title": "Retry me"}, calls[1].patch)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Status().LastError)
}

func TestEditsDuringSaveFormNextCycle(t *testing.T) {
	store := &fakeStore{}
	c, fc, _ := newCoordinator(t, store)
	store.hook = func() {
		assert.Equal(t, StateSaving, c.State())
		require.NoError(t, c.Apply(Patch{"description": "typed mid-flight"}))
	}

	require.NoError(t, c.Apply(Patch{"title": "First"}))
	fc.Advance(debounce)

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, Patch{"title": "First"}, calls[0].patch)
	assert.Equal(t, Patch{"description": "typed mid-flight"}, c.Status().Pending)
	assert.Equal(t, StateDebouncing, c.State())

	fc.Advance(debounce)
	calls = store.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, Patch{"description": "typed mid-flight"}, calls[1].patch)
	assert.Equal(t, int64(2), calls[1].expected)
	assert.Equal(t, int64(3), c.Acknowledged().Version)
}

func TestCloseFlushesPendingEdits(t *testing.T) {
	store := &fakeStore{}
	c, fc, _ := newCoordinator(t, store)

	require.NoError(t, c.Apply(Patch{"title": "Leaving"}))
	require.NoError(t, c.Close(context.Background()))

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, Patch{"title": "Leaving"}, calls[0].patch)
	assert.Equal(t, StateClosed, c.State())
	assert.ErrorIs(t, c.Apply(Patch{"title": "late"}), ErrClosed)
	assert.ErrorIs(t, c.Flush(context.Background()), ErrClosed)
	assert.NoError(t, c.Close(context.Background()))

	fc.Advance(2 * debounce)
	assert.Len(t, store.Calls(), 1)
}

func TestSavePanicIsReportedAsFailure(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	c, err := New("service:2", Snapshot{Value: Record{}, Version: 1}, func(context.Context, Patch, int64) Result {
		panic("boom")
	}, Options{Clock: fc})
	require.NoError(t, err)

	require.NoError(t, c.Apply(Patch{"title": "x"}))
	err = c.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StatePending, c.State())
}

func TestReplaceSavesDroppedFieldsAsNil(t *testing.T) {
	store := &fakeStore{}
	c, fc, _ := newCoordinator(t, store)

	require.NoError(t, c.Replace(Record{"title": "Staging", "retail_price": "$100"}))
	assert.Equal(t, StateDebouncing, c.State())

	fc.Advance(debounce)

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, Patch{"description": nil}, calls[0].patch)
	assert.Equal(t, StateIdle, c.State())

	ack := c.Acknowledged()
	assert.Equal(t, int64(2), ack.Version)
	assert.Nil(t, ack.Value["description"])

	fc.Advance(2 * debounce)
	assert.Len(t, store.Calls(), 1)
}

func TestDiff(t *testing.T) {
	prev := Record{"a": 1.0, "b": "x", "tags": []any{"one"}}
	live := Record{"a": 1.0, "b": "y", "tags": []any{"one"}, "c": nil}

	assert.Equal(t, Patch{"b": "y", "c": nil}, Diff(live, prev))
	assert.Empty(t, Diff(prev, prev))
	assert.Equal(t, Patch{"b": nil}, Diff(Record{"a": 1.0, "tags": []any{"one"}}, prev))
	assert.Empty(t, Diff(Record{"a": 1.0}, Record{"a": 1.0, "gone": nil}))
	assert.Equal(t, Record{"a": 2.0, "b": "x", "tags": []any{"one"}}, Merge(prev, Patch{"a": 2.0}))
	assert.Equal(t, 1.0, prev["a"])
}
