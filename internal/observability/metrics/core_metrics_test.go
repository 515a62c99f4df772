package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySaveErrorReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SaveErrorReasonDeadlineExceeded},
		{name: "canceled", err: fmt.Errorf("save: %w", context.Canceled), want: SaveErrorReasonCanceled},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SaveErrorReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SaveErrorReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SaveErrorReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SaveErrorReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySaveErrorReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCoreMetricsCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewCoreMetrics(registry, Config{ServiceName: "vendorhub", Environment: "test"})

	m.ObserveSave(SaveOutcomeSaved, 20*time.Millisecond, nil)
	m.ObserveSave(SaveOutcomeFailed, 10*time.Millisecond, context.DeadlineExceeded)
	m.IncDedup(DedupResultShared)
	m.IncPricingModeDetection("fixed")

	if got := testutil.ToFloat64(m.saves.WithLabelValues(SaveOutcomeSaved)); got != 1 {
		t.Fatalf("expected 1 saved, got %v", got)
	}
	if got := testutil.ToFloat64(m.saveErrors.WithLabelValues(SaveErrorReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("expected 1 deadline error, got %v", got)
	}
	if got := testutil.ToFloat64(m.dedup.WithLabelValues(DedupResultShared)); got != 1 {
		t.Fatalf("expected 1 shared dedup, got %v", got)
	}
	if got := testutil.ToFloat64(m.detections.WithLabelValues("fixed")); got != 1 {
		t.Fatalf("expected 1 detection, got %v", got)
	}
}

func TestNilCoreMetricsIsNoop(t *testing.T) {
	var m *CoreMetrics
	m.ObserveSave(SaveOutcomeSaved, time.Second, nil)
	m.IncDedup(DedupResultStarted)
	m.IncPricingModeDetection("fixed")
}
