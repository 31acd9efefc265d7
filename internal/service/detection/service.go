package detection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/errors"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

type service struct {
	source       MetricSource
	sink         AnomalySink
	fingerprints FingerprintStore
	dispatcher   Dispatcher
	ledger       CycleLedger
	broadcaster  Broadcaster
	config       Config
	logger       *slog.Logger
}

// NewService constructs the detection service. The dispatcher, fingerprint
// store, ledger and broadcaster are optional; the source and sink are not.
func NewService(
	source MetricSource,
	sink AnomalySink,
	fingerprints FingerprintStore,
	dispatcher Dispatcher,
	ledger CycleLedger,
	broadcaster Broadcaster,
	config Config,
	logger *slog.Logger,
) (Service, error) {
	if source == nil {
		return nil, errors.NewInternalError("metric source is required")
	}
	if sink == nil {
		return nil, errors.NewInternalError("anomaly sink is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		source:       source,
		sink:         sink,
		fingerprints: fingerprints,
		dispatcher:   dispatcher,
		ledger:       ledger,
		broadcaster:  broadcaster,
		config:       config,
		logger:       logger,
	}, nil
}

// snapshots holds one cycle's fetched data. Domains that failed to fetch are
// left empty and recorded in failures.
type snapshots struct {
	revenue   metric.Snapshot[metric.RevenueStat]
	delivery  metric.Snapshot[metric.Delivery]
	pricing   metric.Snapshot[metric.PriceRecord]
	sentiment metric.Snapshot[metric.SentimentScore]
	factory   metric.Snapshot[metric.FactoryRun]
	weather   metric.Snapshot[metric.WeatherObservation]
	products  metric.Snapshot[metric.Product]
	failures  map[metric.Domain]string
}

// RunCycle executes one full detection pass. Every detector runs exactly
// once; a domain whose fetch fails is treated as insufficient data for that
// domain only and never aborts the cycle. Persistence failure is the one
// hard error.
func (s *service) RunCycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now().UTC()
	cycleID := uuid.New()
	logger := s.logger.With("cycle_id", cycleID.String())

	if s.config.CycleBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CycleBudget)
		defer cancel()
	}

	logger.InfoContext(ctx, "detection cycle started")

	snaps := s.fetchAll(ctx, logger)

	// Fixed detector order keeps event ordering stable across cycles.
	runs := []struct {
		name   string
		detect func() []*anomaly.Event
	}{
		{"revenue_outliers", func() []*anomaly.Event { return s.detectRevenueOutliers(snaps.revenue) }},
		{"delivery_delays", func() []*anomaly.Event { return s.detectDeliveryDelays(snaps.delivery) }},
		{"inventory_levels", func() []*anomaly.Event { return s.detectInventoryLevels(snaps.products) }},
		{"price_changes", func() []*anomaly.Event { return s.detectPriceChanges(snaps.pricing) }},
		{"sentiment_drift", func() []*anomaly.Event { return s.detectSentimentDrift(snaps.sentiment) }},
		{"factory_throughput", func() []*anomaly.Event { return s.detectFactoryThroughput(snaps.factory) }},
		{"weather_severity", func() []*anomaly.Event { return s.detectWeatherSeverity(snaps.weather) }},
		{"market_share_shifts", func() []*anomaly.Event { return s.detectMarketShareShifts(snaps.revenue) }},
	}

	var events []*anomaly.Event
	counts := make(map[string]int, len(runs))
	for _, run := range runs {
		found := s.runDetector(ctx, logger, run.name, run.detect)
		counts[run.name] = len(found)
		events = append(events, found...)
	}

	events, suppressed := s.dedupe(ctx, logger, events)

	if len(events) > 0 {
		if err := s.sink.Persist(ctx, events); err != nil {
			logger.ErrorContext(ctx, "failed to persist anomalies", "error", err, "count", len(events))
			return nil, errors.NewSinkWriteError(err)
		}
	}

	result := &CycleResult{
		CycleID:        cycleID,
		StartedAt:      start,
		Events:         events,
		Suppressed:     suppressed,
		DomainFailures: snaps.failures,
		DetectorCounts: counts,
	}

	if s.dispatcher != nil && len(events) > 0 {
		result.Receipts = s.dispatcher.DispatchCycle(ctx, events)
	}

	if s.broadcaster != nil && len(events) > 0 {
		s.broadcaster.Broadcast(events)
	}

	if s.ledger != nil {
		auditID, err := s.ledger.Append(ctx, s.sensePayload(snaps), s.thinkPayload(counts), s.actPayload(result))
		if err != nil {
			logger.ErrorContext(ctx, "failed to append audit block", "error", err)
		} else {
			result.AuditCycleID = auditID
		}
	}

	result.Duration = time.Since(start)
	logger.InfoContext(ctx, "detection cycle completed",
		"anomalies", len(events),
		"suppressed", suppressed,
		"domain_failures", len(snaps.failures),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// runDetector shields the cycle from a panicking detector; the detector
// reports zero findings and the cycle continues.
func (s *service) runDetector(ctx context.Context, logger *slog.Logger, name string, detect func() []*anomaly.Event) (events []*anomaly.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "detector panicked", "detector", name, "panic", fmt.Sprint(r))
			events = nil
		}
	}()
	return detect()
}

func (s *service) fetchAll(ctx context.Context, logger *slog.Logger) *snapshots {
	snaps := &snapshots{failures: make(map[metric.Domain]string)}

	fetch := func(domain metric.Domain, load func(context.Context) error) {
		fetchCtx := ctx
		if s.config.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
			defer cancel()
		}
		if err := load(fetchCtx); err != nil {
			logger.WarnContext(ctx, "domain fetch failed, treating as empty",
				"domain", domain.String(), "error", err)
			snaps.failures[domain] = err.Error()
		}
	}

	fetch(metric.DomainRevenue, func(c context.Context) (err error) {
		snaps.revenue, err = s.source.RevenueStats(c)
		return err
	})
	fetch(metric.DomainDeliveries, func(c context.Context) (err error) {
		snaps.delivery, err = s.source.Deliveries(c)
		return err
	})
	fetch(metric.DomainPricing, func(c context.Context) (err error) {
		snaps.pricing, err = s.source.PricingHistory(c)
		return err
	})
	fetch(metric.DomainSentiment, func(c context.Context) (err error) {
		snaps.sentiment, err = s.source.ReviewSentiments(c)
		return err
	})
	fetch(metric.DomainFactory, func(c context.Context) (err error) {
		snaps.factory, err = s.source.FactoryPerformance(c)
		return err
	})
	fetch(metric.DomainWeather, func(c context.Context) (err error) {
		snaps.weather, err = s.source.WeatherConditions(c)
		return err
	})
	fetch(metric.DomainInventory, func(c context.Context) (err error) {
		snaps.products, err = s.source.Products(c)
		return err
	})

	return snaps
}

// dedupe suppresses events whose fingerprint was reported within the cooldown
// window. A fingerprint store outage degrades to no deduplication: the event
// is kept, never dropped.
func (s *service) dedupe(ctx context.Context, logger *slog.Logger, events []*anomaly.Event) ([]*anomaly.Event, int) {
	if !s.config.DedupEnabled || s.fingerprints == nil || len(events) == 0 {
		return events, 0
	}

	kept := events[:0]
	suppressed := 0
	for _, event := range events {
		seen, err := s.fingerprints.Seen(ctx, event.Fingerprint(), s.config.DedupCooldown)
		if err != nil {
			logger.WarnContext(ctx, "fingerprint store unavailable, keeping event",
				"fingerprint", event.Fingerprint(), "error", err)
			kept = append(kept, event)
			continue
		}
		if seen {
			suppressed++
			continue
		}
		kept = append(kept, event)
	}
	return kept, suppressed
}

func (s *service) sensePayload(snaps *snapshots) map[string]any {
	return map[string]any{
		"domains": map[string]any{
			metric.DomainRevenue.String():     len(snaps.revenue.Records),
			metric.DomainDeliveries.String():  len(snaps.delivery.Records),
			metric.DomainPricing.String():     len(snaps.pricing.Records),
			metric.DomainSentiment.String():   len(snaps.sentiment.Records),
			metric.DomainFactory.String():     len(snaps.factory.Records),
			metric.DomainWeather.String():     len(snaps.weather.Records),
			metric.DomainInventory.String():   len(snaps.products.Records),
		},
		"failures": snaps.failures,
	}
}

func (s *service) thinkPayload(counts map[string]int) map[string]any {
	byDetector := make(map[string]any, len(counts))
	for name, n := range counts {
		byDetector[name] = n
	}
	return map[string]any{"detector_counts": byDetector}
}

func (s *service) actPayload(result *CycleResult) map[string]any {
	types := make([]string, 0, len(result.Events))
	for _, event := range result.Events {
		types = append(types, string(event.Type))
	}
	notified := 0
	for _, receipt := range result.Receipts {
		if receipt.AdminSent || receipt.CustomerSent {
			notified++
		}
	}
	return map[string]any{
		"persisted":  len(result.Events),
		"suppressed": result.Suppressed,
		"notified":   notified,
		"types":      types,
	}
}
