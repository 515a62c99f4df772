package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastRetryer(attempts int) *Retryer {
	return New(Policy{
		MaxAttempts:     attempts,
		AttemptTimeout:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, zap.NewNop())
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastRetryer(3), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, Transient(errors.New("store unavailable"))
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 3, calls)
}

func TestDoCapsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastRetryer(2), func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, syscall.ECONNRESET
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.ECONNRESET)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	invalid := errors.New("invalid_patch")
	calls := 0
	_, err := Do(context.Background(), fastRetryer(5), func(context.Context) (int, error) {
		calls++
		return 0, invalid
	})
	assert.ErrorIs(t, err, invalid)
	assert.Equal(t, 1, calls)
}

func TestDoUsesCustomClassifier(t *testing.T) {
	busy := errors.New("busy")
	r := fastRetryer(3)
	r.policy.Classify = func(err error) bool { return errors.Is(err, busy) }

	calls := 0
	_, err := Do(context.Background(), r, func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("write: %w", busy)
	})
	assert.ErrorIs(t, err, busy)
	assert.Equal(t, 3, calls)
}

func TestDoAppliesAttemptTimeout(t *testing.T) {
	r := New(Policy{MaxAttempts: 1, AttemptTimeout: 10 * time.Millisecond}, nil)
	_, err := Do(context.Background(), r, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastRetryer(5), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, Transient(errors.New("flaky"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(Transient(errors.New("x"))))
	assert.True(t, IsTransient(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsTransient(timeoutErr{}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(errors.New("validation failed")))
}
