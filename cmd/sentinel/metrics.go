package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sentinelops/anomaly-sentinel/internal/service/detection"
)

// Metric definitions for the sentinel

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "detection",
			Name:      "cycles_total",
			Help:      "Total number of detection cycles",
		},
		[]string{"result"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "detection",
			Name:      "cycle_duration_seconds",
			Help:      "Detection cycle duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
	)

	anomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "detection",
			Name:      "anomalies_total",
			Help:      "Anomalies detected, by event type",
		},
		[]string{"event_type"},
	)

	anomaliesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "detection",
			Name:      "anomalies_suppressed_total",
			Help:      "Anomalies suppressed by fingerprint deduplication",
		},
	)

	domainFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "detection",
			Name:      "domain_fetch_failures_total",
			Help:      "Snapshot fetch failures, by domain",
		},
		[]string{"domain"},
	)

	notificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "notifier",
			Name:      "failures_total",
			Help:      "Notification delivery failures, by event type",
		},
		[]string{"event_type"},
	)

	ledgerAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "ledger",
			Name:      "appends_total",
			Help:      "Audit blocks appended",
		},
	)
)

// instrumentedDetector wraps the detection service with prometheus metrics.
type instrumentedDetector struct {
	inner detection.Service
}

func (d *instrumentedDetector) RunCycle(ctx context.Context) (*detection.CycleResult, error) {
	start := time.Now()
	result, err := d.inner.RunCycle(ctx)
	cycleDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		cyclesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	cyclesTotal.WithLabelValues("ok").Inc()

	for _, event := range result.Events {
		anomaliesDetected.WithLabelValues(string(event.Type)).Inc()
	}
	anomaliesSuppressed.Add(float64(result.Suppressed))
	for domain := range result.DomainFailures {
		domainFetchFailures.WithLabelValues(domain.String()).Inc()
	}
	for _, receipt := range result.Receipts {
		if receipt.Error != "" {
			notificationFailures.WithLabelValues(string(receipt.EventType)).Inc()
		}
	}
	if result.AuditCycleID != "" {
		ledgerAppends.Inc()
	}
	return result, nil
}
