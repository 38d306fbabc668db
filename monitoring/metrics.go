package monitoring

import (
	"context"
	"log/slog"
	"time"

	"event-workflow/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lifecycleOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_operations_total",
			Help: "Request and event lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	slotLockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slot_lock_wait_seconds",
			Help:    "Time spent waiting for a location/date slot lock",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "department_notifications_total",
			Help: "Decision notifications published to departments",
		},
		[]string{"type", "status"},
	)

	eventsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "events_by_status",
			Help: "Current number of events per status",
		},
		[]string{"status"},
	)

	requestsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_requests_by_status",
			Help: "Current number of event requests per status",
		},
		[]string{"status"},
	)
)

// CountSource supplies the per-status totals exported as gauges.
type CountSource interface {
	EventCounts(ctx context.Context) (models.EventCounts, error)
	RequestCounts(ctx context.Context) (models.RequestCounts, error)
}

type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// TrackOperation counts one lifecycle operation, e.g. ("approve", "auto_rejected").
func (m *Monitor) TrackOperation(operation, outcome string) {
	lifecycleOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Monitor) TrackLockWait(operation string, d time.Duration) {
	slotLockWait.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Monitor) TrackNotification(kind, status string) {
	notifications.WithLabelValues(kind, status).Inc()
}

// CollectCounts refreshes the status gauges every interval until ctx is done.
func (m *Monitor) CollectCounts(ctx context.Context, source CountSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.collectCounts(ctx, source)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collectCounts(ctx context.Context, source CountSource) {
	if counts, err := source.EventCounts(ctx); err != nil {
		slog.Error("Failed to collect event counts", "error", err)
	} else {
		for st, n := range counts {
			eventsByStatus.WithLabelValues(string(st)).Set(float64(n))
		}
	}

	if counts, err := source.RequestCounts(ctx); err != nil {
		slog.Error("Failed to collect request counts", "error", err)
	} else {
		for st, n := range counts {
			requestsByStatus.WithLabelValues(string(st)).Set(float64(n))
		}
	}
}
