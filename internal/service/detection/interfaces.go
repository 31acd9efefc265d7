package detection

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
	"github.com/sentinelops/anomaly-sentinel/internal/service/notification"
)

// Service runs detection cycles: one fresh snapshot per domain, every
// detector exactly once, events aggregated, persisted, dispatched and
// recorded on the audit ledger.
type Service interface {
	RunCycle(ctx context.Context) (*CycleResult, error)
}

// MetricSource provides read-only, point-in-time snapshots of each business
// data domain. A fetch failure is recovered by the cycle as insufficient data
// for that domain only.
type MetricSource interface {
	RevenueStats(ctx context.Context) (metric.Snapshot[metric.RevenueStat], error)
	Deliveries(ctx context.Context) (metric.Snapshot[metric.Delivery], error)
	PricingHistory(ctx context.Context) (metric.Snapshot[metric.PriceRecord], error)
	ReviewSentiments(ctx context.Context) (metric.Snapshot[metric.SentimentScore], error)
	FactoryPerformance(ctx context.Context) (metric.Snapshot[metric.FactoryRun], error)
	WeatherConditions(ctx context.Context) (metric.Snapshot[metric.WeatherObservation], error)
	Products(ctx context.Context) (metric.Snapshot[metric.Product], error)
}

// AnomalySink persists detected events. Append-only: no update-in-place, no
// uniqueness enforced by the sink itself.
type AnomalySink interface {
	Persist(ctx context.Context, events []*anomaly.Event) error
}

// FingerprintStore tracks recently reported anomaly fingerprints so the same
// underlying condition is not re-persisted and re-notified on every trigger
// within the cooldown window.
type FingerprintStore interface {
	// Seen marks the fingerprint and reports whether it was already marked
	// within the cooldown window.
	Seen(ctx context.Context, fingerprint string, cooldown time.Duration) (bool, error)
}

// Dispatcher sends alerts for a cycle's events, reporting per-event outcomes
// without blocking persistence.
type Dispatcher interface {
	DispatchCycle(ctx context.Context, events []*anomaly.Event) []notification.Receipt
}

// CycleLedger records a sense/think/act triple for the cycle on the
// tamper-evident audit chain.
type CycleLedger interface {
	Append(ctx context.Context, sense, think, act any) (string, error)
}

// Broadcaster fans a cycle's events out to live subscribers.
type Broadcaster interface {
	Broadcast(events []*anomaly.Event)
}

// CycleResult is the outcome of one detection cycle.
type CycleResult struct {
	CycleID        uuid.UUID                 `json:"cycle_id"`
	StartedAt      time.Time                 `json:"started_at"`
	Duration       time.Duration             `json:"duration"`
	Events         []*anomaly.Event          `json:"events"`
	Suppressed     int                       `json:"suppressed"`
	DomainFailures map[metric.Domain]string  `json:"domain_failures,omitempty"`
	DetectorCounts map[string]int            `json:"detector_counts"`
	Receipts       []notification.Receipt    `json:"receipts,omitempty"`
	AuditCycleID   string                    `json:"audit_cycle_id,omitempty"`
}

// Config carries the detectors' sensitivity thresholds as named, overridable
// settings along with the cycle's resource budget.
type Config struct {
	// Isolation-style revenue scorer
	IsolationTrees          int
	IsolationSampleSize     int
	IsolationScoreThreshold float64
	IsolationSeed           int64

	// Delivery delay robust z-score
	ModifiedZScoreThreshold float64

	// Pricing
	PriceChangeThreshold float64

	// Sentiment drift
	SentimentWindow         int
	SentimentMinSamples     int
	SentimentDriftThreshold float64

	// Factory throughput / backlog
	FactorySigma          float64
	FactoryFlatLowFactor  float64
	FactoryFlatHighFactor float64

	// Tukey fences (weather severity, inventory stock)
	TukeyMultiplier float64

	// Market share first-difference dispersion
	MarketShareSigma float64

	// Cycle resource model
	FetchTimeout  time.Duration
	CycleBudget   time.Duration
	DedupEnabled  bool
	DedupCooldown time.Duration
}

// DefaultConfig returns the engine's standard sensitivity settings.
func DefaultConfig() Config {
	return Config{
		IsolationTrees:          100,
		IsolationSampleSize:     256,
		IsolationScoreThreshold: 0.6,
		IsolationSeed:           42,
		ModifiedZScoreThreshold: 3.5,
		PriceChangeThreshold:    0.35,
		SentimentWindow:         10,
		SentimentMinSamples:     10,
		SentimentDriftThreshold: 0.25,
		FactorySigma:            2.0,
		FactoryFlatLowFactor:    0.9,
		FactoryFlatHighFactor:   1.1,
		TukeyMultiplier:         1.5,
		MarketShareSigma:        2.0,
		FetchTimeout:            10 * time.Second,
		CycleBudget:             2 * time.Minute,
		DedupEnabled:            false,
		DedupCooldown:           6 * time.Hour,
	}
}
