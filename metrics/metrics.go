// metrics/metrics.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package metrics holds the Prometheus collectors for the flight plan
// service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// Notifications counts delegate notifications by event name.
	Notifications *prometheus.CounterVec
	// OpenPlans is the number of flight plans with a metrics delegate
	// attached.
	OpenPlans prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	StoreOps      *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec

	EventSubscribers prometheus.Gauge
}

// New returns a Metrics with all of its collectors registered in a
// fresh registry. If process is true, the Go runtime and process
// collectors are registered as well.
func New(process bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fms_flightplan_notifications_total", Help: "Flight plan delegate notifications by event."},
			[]string{"event"}),
		OpenPlans: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "fms_flightplans_open", Help: "Flight plans currently open."}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fms_http_requests_total", Help: "HTTP requests by method, route and status."},
			[]string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "fms_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"method", "route"}),
		StoreOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fms_store_operations_total", Help: "Flight plan store operations by backend, operation and result."},
			[]string{"backend", "op", "result"}),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "fms_store_operation_duration_seconds", Help: "Flight plan store operation latency in seconds.",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5}},
			[]string{"backend", "op"}),
		EventSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "fms_event_subscribers", Help: "Connected change-event subscribers."}),
	}

	m.registry.MustRegister(m.Notifications, m.OpenPlans, m.HTTPRequests, m.HTTPDuration,
		m.StoreOps, m.StoreDuration, m.EventSubscribers)
	if process {
		m.registry.MustRegister(collectors.NewGoCollector())
		m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveStore records the outcome of a storage backend operation.
func (m *Metrics) ObserveStore(backend, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOps.WithLabelValues(backend, op, result).Inc()
	m.StoreDuration.WithLabelValues(backend, op).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
