package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/smallbiznis/vendorhub/internal/clock"
	obscontext "github.com/smallbiznis/vendorhub/internal/observability/context"
)

func TestFeedKeepsRecentNoticesPerEntity(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	feed := NewFeedWithSize(fc, 2)

	ctx := obscontext.WithEntity(context.Background(), "service:1")
	other := obscontext.WithEntity(context.Background(), "service:2")

	require.NoError(t, feed.Notify(ctx, KindInfo, "one"))
	require.NoError(t, feed.Notify(ctx, KindSuccess, "two"))
	require.NoError(t, feed.Notify(ctx, KindError, "three"))
	require.NoError(t, feed.Notify(other, KindSuccess, "elsewhere"))
	require.NoError(t, feed.Notify(context.Background(), KindInfo, "dropped"))

	recent := feed.Recent("service:1")
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Message)
	assert.Equal(t, "three", recent[1].Message)
	assert.Equal(t, KindError, recent[1].Kind)
	assert.Equal(t, fc.Now(), recent[1].At)

	drained := feed.Drain("service:2")
	require.Len(t, drained, 1)
	assert.Empty(t, feed.Recent("service:2"))
	assert.NotNil(t, feed.Drain("service:404"))
}

func TestLogNotifierWritesEntity(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core), nil)

	ctx := obscontext.WithEntity(context.Background(), "service:9")
	require.NoError(t, n.Notify(ctx, KindError, "save failed"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "service:9", entries[0].ContextMap()["entity"])
}

func TestMultiJoinsErrors(t *testing.T) {
	var delivered []string
	ok := Func(func(_ context.Context, _ Kind, msg string) error {
		delivered = append(delivered, msg)
		return nil
	})
	failing := Func(func(context.Context, Kind, string) error { return errors.New("down") })

	err := Multi(failing, nil, ok).Notify(context.Background(), KindInfo, "hello")
	require.Error(t, err)
	assert.Equal(t, []string{"hello"}, delivered)
}

func TestSafeRecoversPanics(t *testing.T) {
	panicking := Func(func(context.Context, Kind, string) error { panic("boom") })
	n := Safe(panicking, zap.NewNop())

	assert.NotPanics(t, func() {
		assert.NoError(t, n.Notify(context.Background(), KindSuccess, "saved"))
	})
	assert.NoError(t, Safe(nil, nil).Notify(context.Background(), KindInfo, "x"))
}
