// Package retry runs I/O operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/vendorhub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("retry",
	fx.Provide(PolicyFrom),
	fx.Provide(New),
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts     int
	AttemptTimeout  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Classify reports whether an error is worth another attempt.
	// IsTransient is used when nil.
	Classify func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		AttemptTimeout:  5 * time.Second,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

func PolicyFrom(cfg config.Config) Policy {
	p := DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		p.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.AttemptTimeout > 0 {
		p.AttemptTimeout = cfg.Retry.AttemptTimeout
	}
	if cfg.Retry.InitialInterval > 0 {
		p.InitialInterval = cfg.Retry.InitialInterval
	}
	if cfg.Retry.MaxInterval > 0 {
		p.MaxInterval = cfg.Retry.MaxInterval
	}
	return p
}

// Retryer applies one policy and logs each backoff.
type Retryer struct {
	policy Policy
	log    *zap.Logger
}

func New(policy Policy, log *zap.Logger) *Retryer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retryer{policy: policy, log: log.Named("retry")}
}

func (r *Retryer) Policy() Policy {
	if r == nil {
		return DefaultPolicy()
	}
	return r.policy
}

// Do runs fn until it succeeds, fails permanently, or runs out of attempts.
// Each attempt gets its own timeout derived from ctx.
func Do[T any](ctx context.Context, r *Retryer, fn func(context.Context) (T, error)) (T, error) {
	policy := r.Policy()
	log := zap.NewNop()
	if r != nil {
		log = r.log
	}

	classify := policy.Classify
	if classify == nil {
		classify = IsTransient
	}

	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		attemptCtx := ctx
		cancel := func() {}
		if policy.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
		}
		defer cancel()

		value, err := fn(attemptCtx)
		if err == nil {
			return value, nil
		}
		// The caller gave up; there is nothing to retry for.
		if ctx.Err() != nil {
			return value, backoff.Permanent(err)
		}
		if errors.Is(err, context.DeadlineExceeded) && attemptCtx.Err() != nil {
			return value, err
		}
		if !classify(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug("retrying after transient error",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is a retryable I/O failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var marked *transientError
	if errors.As(err, &marked) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
