// Package notify delivers fire-and-forget user feedback about saves and
// other background work.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/vendorhub/internal/observability/metrics"
	obscontext "github.com/smallbiznis/vendorhub/internal/observability/context"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notice is one delivered notification.
type Notice struct {
	Entity  string    `json:"entity,omitempty"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives user-facing notices. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, message string) error
}

var Module = fx.Module("notify",
	fx.Provide(NewFeed),
	fx.Provide(provideNotifier),
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Feed    *Feed
	Metrics *metrics.Metrics `optional:"true"`
}

func provideNotifier(p Params) Notifier {
	return Safe(Multi(NewLogNotifier(p.Log, p.Metrics), p.Feed), p.Log)
}

type logNotifier struct {
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewLogNotifier writes notices to the structured log.
func NewLogNotifier(log *zap.Logger, m *metrics.Metrics) Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &logNotifier{log: log.Named("notify"), metrics: m}
}

func (n *logNotifier) Notify(ctx context.Context, kind Kind, message string) error {
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("message", message),
	}
	if entity := obscontext.EntityFromContext(ctx); entity != "" {
		fields = append(fields, zap.String("entity", entity))
	}
	if kind == KindError {
		n.log.Warn("notice", fields...)
	} else {
		n.log.Info("notice", fields...)
	}
	n.metrics.RecordNotification(ctx, string(kind))
	return nil
}

type multi []Notifier

// Multi fans a notice out to every notifier and joins their errors.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, kind Kind, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, kind, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type safe struct {
	next Notifier
	log  *zap.Logger
}

// Safe swallows errors and panics from next so callers never depend on
// notification delivery.
func Safe(next Notifier, log *zap.Logger) Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &safe{next: next, log: log.Named("notify")}
}

func (s *safe) Notify(ctx context.Context, kind Kind, message string) (err error) {
	if s.next == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("notifier panicked", zap.Any("panic", r), zap.String("kind", string(kind)))
			err = nil
		}
	}()
	if nerr := s.next.Notify(ctx, kind, message); nerr != nil {
		s.log.Warn("notifier failed", zap.Error(nerr), zap.String("kind", string(kind)))
	}
	return nil
}

// Nop discards every notice.
type Nop struct{}

func (Nop) Notify(context.Context, Kind, string) error { return nil }

// Func adapts a function to Notifier.
type Func func(ctx context.Context, kind Kind, message string) error

func (f Func) Notify(ctx context.Context, kind Kind, message string) error {
	if f == nil {
		return nil
	}
	return f(ctx, kind, message)
}
