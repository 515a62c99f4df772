package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SaveOutcomeSaved    = "saved"
	SaveOutcomeConflict = "conflict"
	SaveOutcomeFailed   = "failed"
)

const (
	SaveErrorReasonDeadlineExceeded     = "deadline_exceeded"
	SaveErrorReasonCanceled             = "canceled"
	SaveErrorReasonDBLockTimeout        = "db_lock_timeout"
	SaveErrorReasonSerializationFailure = "serialization_failure"
	SaveErrorReasonUniqueViolation      = "unique_violation"
	SaveErrorReasonUnknown              = "unknown"
)

const (
	DedupResultShared     = "shared"
	DedupResultStarted    = "started"
	DedupResultSuperseded = "superseded"
)

// CoreMetrics captures save coordination and classification signals.
type CoreMetrics struct {
	saves        *prometheus.CounterVec
	saveDuration prometheus.Observer
	saveErrors   *prometheus.CounterVec
	dedup        *prometheus.CounterVec
	detections   *prometheus.CounterVec
}

func NewCoreMetrics(registerer prometheus.Registerer, cfg Config) *CoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "vendorhub"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "vendorhub_autosave_saves_total",
		Help:        "Autosave attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	saveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "vendorhub_autosave_save_duration_seconds",
		Help:        "Autosave round trip latency including retries.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	})
	saveErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "vendorhub_autosave_save_errors_total",
		Help:        "Failed autosaves by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	dedup := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "vendorhub_dedup_requests_total",
		Help:        "Deduplicated requests by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	detections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "vendorhub_pricing_mode_detections_total",
		Help:        "Pricing mode classifications by detected mode.",
		ConstLabels: constLabels,
	}, []string{"mode"})

	registerer.MustRegister(saves, saveDuration, saveErrors, dedup, detections)

	return &CoreMetrics{
		saves:        saves,
		saveDuration: saveDuration,
		saveErrors:   saveErrors,
		dedup:        dedup,
		detections:   detections,
	}
}

// ObserveSave records one finished save cycle.
func (m *CoreMetrics) ObserveSave(outcome string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(outcome).Inc()
	m.saveDuration.Observe(duration.Seconds())
	if outcome == SaveOutcomeFailed && err != nil {
		m.saveErrors.WithLabelValues(ClassifySaveErrorReason(err)).Inc()
	}
}

func (m *CoreMetrics) IncDedup(result string) {
	if m == nil {
		return
	}
	m.dedup.WithLabelValues(result).Inc()
}

func (m *CoreMetrics) IncPricingModeDetection(mode string) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(mode).Inc()
}

// ClassifySaveErrorReason maps a save failure to a metric label.
func ClassifySaveErrorReason(err error) string {
	if err == nil {
		return SaveErrorReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return SaveErrorReasonDeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return SaveErrorReasonCanceled
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return SaveErrorReasonUniqueViolation
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return SaveErrorReasonDBLockTimeout
		case "40001":
			return SaveErrorReasonSerializationFailure
		case "23505":
			return SaveErrorReasonUniqueViolation
		}
	}
	return SaveErrorReasonUnknown
}
