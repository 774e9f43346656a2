package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
)

// MetricsService encapsulates Prometheus instrumentation for the backend.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	drives          *prometheus.CounterVec
	reschedules     prometheus.Counter

	deliveryCount uint64
	lastDelivery  atomic.Int64
}

// MetricsSnapshot is a lightweight view served on /health.
type MetricsSnapshot struct {
	Deliveries     uint64    `json:"deliveries"`
	LastDeliveryAt *time.Time `json:"last_delivery_at,omitempty"`
	Goroutines     int       `json:"goroutines"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_deliveries_total",
		Help: "Interview deliveries by outcome",
	}, []string{"outcome"})

	drives := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_drive_entries_total",
		Help: "Delivered interview entries by result",
	}, []string{"result"})

	reschedules := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rescheduled_classes_total",
		Help: "Rescheduled classes created",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, deliveries, drives, reschedules, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		deliveries:      deliveries,
		drives:          drives,
		reschedules:     reschedules,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveDelivery counts one delivery and, when it committed, what it wrote.
func (m *MetricsService) ObserveDelivery(outcome string, summary dto.IngestionSummary) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.deliveryCount, 1)
	m.lastDelivery.Store(time.Now().UTC().UnixNano())

	m.drives.WithLabelValues("inserted").Add(float64(summary.DrivesInserted))
	m.drives.WithLabelValues("existing").Add(float64(summary.DrivesExisting))
	m.drives.WithLabelValues("skipped").Add(float64(summary.EntriesSkipped))
	m.reschedules.Add(float64(summary.ClassesRescheduled))
}

// Snapshot returns aggregated counters for the health endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	snap := MetricsSnapshot{
		Deliveries: atomic.LoadUint64(&m.deliveryCount),
		Goroutines: runtime.NumGoroutine(),
	}
	if last := m.lastDelivery.Load(); last > 0 {
		at := time.Unix(0, last).UTC()
		snap.LastDeliveryAt = &at
	}
	return snap
}
