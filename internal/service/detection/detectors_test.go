package detection

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

func newTestService(config Config) *service {
	return &service{config: config}
}

func day(offset int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func revenueSnapshot(revenues ...float64) metric.Snapshot[metric.RevenueStat] {
	records := make([]metric.RevenueStat, len(revenues))
	for i, revenue := range revenues {
		records[i] = metric.RevenueStat{
			StatsID:       int64(i + 1),
			ProductID:     int64(i + 1),
			TotalRevenue:  decimal.NewFromFloat(revenue),
			CalculatedFor: day(0),
		}
	}
	return metric.NewSnapshot(metric.DomainRevenue, records)
}

func TestDetectRevenueOutliers(t *testing.T) {
	svc := newTestService(DefaultConfig())

	t.Run("isolated low value is a drop against the inlier center", func(t *testing.T) {
		events := svc.detectRevenueOutliers(revenueSnapshot(1000, 1020, 980, 1010, 50))

		require.Len(t, events, 1)
		event := events[0]
		assert.Equal(t, anomaly.EventRevenueDrop, event.Type)
		assert.Equal(t, "5", event.SubjectIDs["product_id"])
		assert.InDelta(t, 50, event.Metrics["total_revenue"], 1e-9)
		assert.InDelta(t, 1005, event.DerivedThresholds["reference_center"], 1e-9)
	})

	t.Run("isolated high value is a spike", func(t *testing.T) {
		events := svc.detectRevenueOutliers(revenueSnapshot(100, 102, 98, 101, 5000))

		require.Len(t, events, 1)
		assert.Equal(t, anomaly.EventRevenueSpike, events[0].Type)
	})

	t.Run("empty snapshot yields nothing", func(t *testing.T) {
		assert.Empty(t, svc.detectRevenueOutliers(revenueSnapshot()))
	})

	t.Run("constant series yields nothing", func(t *testing.T) {
		assert.Empty(t, svc.detectRevenueOutliers(revenueSnapshot(500, 500, 500, 500)))
	})
}

func TestDetectDeliveryDelays(t *testing.T) {
	svc := newTestService(DefaultConfig())

	delivery := func(id int64, status metric.DeliveryStatus, delayDays *int) metric.Delivery {
		d := metric.Delivery{DeliveryID: id, OrderID: id + 100, Status: status}
		if delayDays != nil {
			promised := day(0)
			actual := promised.AddDate(0, 0, *delayDays)
			d.PromisedAt = &promised
			d.ActualAt = &actual
		}
		return d
	}
	days := func(n int) *int { return &n }

	t.Run("explicit delayed status flags without any dates", func(t *testing.T) {
		snap := metric.NewSnapshot(metric.DomainDeliveries, []metric.Delivery{
			delivery(1, metric.DeliveryStatusDelayed, nil),
			delivery(2, metric.DeliveryStatusDelivered, days(0)),
		})

		events := svc.detectDeliveryDelays(snap)

		require.Len(t, events, 1)
		assert.Equal(t, "1", events[0].SubjectIDs["delivery_id"])
		assert.Equal(t, string(metric.DeliveryStatusDelayed), events[0].Labels["delivery_status"])
	})

	t.Run("extreme delay flags by modified z-score", func(t *testing.T) {
		// delays [0 1 2 1 0 45]: median 1, MAD 1, z(45) = 0.6745*44
		snap := metric.NewSnapshot(metric.DomainDeliveries, []metric.Delivery{
			delivery(1, metric.DeliveryStatusDelivered, days(0)),
			delivery(2, metric.DeliveryStatusDelivered, days(1)),
			delivery(3, metric.DeliveryStatusDelivered, days(2)),
			delivery(4, metric.DeliveryStatusDelivered, days(1)),
			delivery(5, metric.DeliveryStatusDelivered, days(0)),
			delivery(6, metric.DeliveryStatusDelivered, days(45)),
		})

		events := svc.detectDeliveryDelays(snap)

		require.Len(t, events, 1)
		event := events[0]
		assert.Equal(t, "6", event.SubjectIDs["delivery_id"])
		assert.InDelta(t, 45, event.Metrics["delay_days"], 1e-9)
		assert.InDelta(t, 0.6745*44, event.Metrics["modified_z_score"], 1e-9)
	})

	t.Run("zero MAD skips the z signal but keeps the status signal", func(t *testing.T) {
		snap := metric.NewSnapshot(metric.DomainDeliveries, []metric.Delivery{
			delivery(1, metric.DeliveryStatusDelivered, days(3)),
			delivery(2, metric.DeliveryStatusDelivered, days(3)),
			delivery(3, metric.DeliveryStatusDelivered, days(3)),
			delivery(4, metric.DeliveryStatusDelayed, days(9)),
		})

		// MAD of [3 3 3 9] is 0: only the delayed-status record flags.
		events := svc.detectDeliveryDelays(snap)

		require.Len(t, events, 1)
		assert.Equal(t, "4", events[0].SubjectIDs["delivery_id"])
	})

	t.Run("empty snapshot yields nothing", func(t *testing.T) {
		assert.Empty(t, svc.detectDeliveryDelays(metric.NewSnapshot(metric.DomainDeliveries, []metric.Delivery{})))
	})
}

func TestDetectPriceChanges(t *testing.T) {
	svc := newTestService(DefaultConfig())

	price := func(id, productID int64, price float64, offset int) metric.PriceRecord {
		return metric.PriceRecord{
			PricingID:   id,
			ProductID:   productID,
			Price:       decimal.NewFromFloat(price),
			EffectiveAt: day(offset),
		}
	}

	t.Run("forty percent jump flags, thirty percent does not", func(t *testing.T) {
		snap := metric.NewSnapshot(metric.DomainPricing, []metric.PriceRecord{
			price(1, 1, 10, 0),
			price(2, 1, 14, 1),
			price(3, 2, 10, 0),
			price(4, 2, 13, 1),
		})

		events := svc.detectPriceChanges(snap)

		require.Len(t, events, 1)
		event := events[0]
		assert.Equal(t, anomaly.EventPriceChange, event.Type)
		assert.Equal(t, "1", event.SubjectIDs["product_id"])
		assert.Equal(t, "increase", event.Labels["direction"])
		assert.InDelta(t, 40, event.Metrics["change_percent"], 1e-9)
	})

	t.Run("decrease direction is labeled", func(t *testing.T) {
		snap := metric.NewSnapshot(metric.DomainPricing, []metric.PriceRecord{
			price(1, 1, 20, 0),
			price(2, 1, 10, 1),
		})

		events := svc.detectPriceChanges(snap)

		require.Len(t, events, 1)
		assert.Equal(t, "decrease", events[0].Labels["direction"])
		assert.InDelta(t, -50, events[0].Metrics["change_percent"], 1e-9)
	})

	t.Run("zero previous price is skipped", func(t *testing.T) {
		snap := metric.NewSnapshot(metric.DomainPricing, []metric.PriceRecord{
			price(1, 1, 0, 0),
			price(2, 1, 99, 1),
		})

		assert.Empty(t, svc.detectPriceChanges(snap))
	})

	t.Run("history arriving out of order is sorted by effective date", func(t *testing.T) {
		snap := metric.NewSnapshot(metric.DomainPricing, []metric.PriceRecord{
			price(2, 1, 14, 1),
			price(1, 1, 10, 0),
		})

		events := svc.detectPriceChanges(snap)

		require.Len(t, events, 1)
		assert.Equal(t, "increase", events[0].Labels["direction"])
	})
}

func TestDetectSentimentDrift(t *testing.T) {
	config := DefaultConfig()
	config.SentimentDriftThreshold = 0.15
	svc := newTestService(config)

	scores := func(values ...float64) metric.Snapshot[metric.SentimentScore] {
		records := make([]metric.SentimentScore, len(values))
		for i, v := range values {
			records[i] = metric.SentimentScore{SentimentID: int64(i + 1), Score: v, RecordedAt: day(i)}
		}
		return metric.NewSnapshot(metric.DomainSentiment, records)
	}

	t.Run("sharp collapse in scores flags drift points", func(t *testing.T) {
		values := make([]float64, 20)
		for i := range values {
			if i < 10 {
				values[i] = 0.8
			} else {
				values[i] = -0.8
			}
		}

		events := svc.detectSentimentDrift(scores(values...))

		require.NotEmpty(t, events)
		for _, event := range events {
			assert.Equal(t, anomaly.EventSentimentDrift, event.Type)
			assert.Equal(t, "downward", event.Labels["direction"])
			assert.Less(t, event.Metrics["baseline_gradient"], -0.15)
		}
	})

	t.Run("stable series yields nothing", func(t *testing.T) {
		values := make([]float64, 20)
		for i := range values {
			values[i] = 0.6
		}
		assert.Empty(t, svc.detectSentimentDrift(scores(values...)))
	})

	t.Run("fewer than the minimum samples yields nothing", func(t *testing.T) {
		assert.Empty(t, svc.detectSentimentDrift(scores(0.9, -0.9, 0.9, -0.9)))
	})
}

func TestDetectFactoryThroughput(t *testing.T) {
	svc := newTestService(DefaultConfig())

	runs := func(records ...metric.FactoryRun) metric.Snapshot[metric.FactoryRun] {
		return metric.NewSnapshot(metric.DomainFactory, records)
	}

	t.Run("20 percent throughput is inside the two sigma fence", func(t *testing.T) {
		// mean 65.75, sample std ~30.51, low fence ~4.73
		snap := runs(
			metric.FactoryRun{FactoryID: 1, ThroughputPct: 80, BacklogUnits: 10},
			metric.FactoryRun{FactoryID: 2, ThroughputPct: 82, BacklogUnits: 10},
			metric.FactoryRun{FactoryID: 3, ThroughputPct: 81, BacklogUnits: 10},
			metric.FactoryRun{FactoryID: 4, ThroughputPct: 20, BacklogUnits: 10},
		)

		assert.Empty(t, svc.detectFactoryThroughput(snap))
	})

	t.Run("flat throughput falls back to the fractional fence", func(t *testing.T) {
		flat := runs(
			metric.FactoryRun{FactoryID: 1, ThroughputPct: 80, BacklogUnits: 100},
			metric.FactoryRun{FactoryID: 2, ThroughputPct: 80, BacklogUnits: 130},
		)

		events := svc.detectFactoryThroughput(flat)

		// flat throughput fence is 0.9*80=72, both runs above it;
		// backlog mean 115, sample std ~21.2, fence ~157: nothing flags
		assert.Empty(t, events)
	})

	t.Run("flat backlog falls back to the fractional fence", func(t *testing.T) {
		flat := runs(
			metric.FactoryRun{FactoryID: 1, ThroughputPct: 90, BacklogUnits: 100},
			metric.FactoryRun{FactoryID: 2, ThroughputPct: 10, BacklogUnits: 100},
		)

		events := svc.detectFactoryThroughput(flat)

		// backlog fence is 1.1*100=110, no run exceeds it; throughput
		// mean 50 with sample std ~56.6 puts the low fence below zero
		assert.Empty(t, events)
	})

	t.Run("high backlog flags with reason", func(t *testing.T) {
		snap := runs(
			metric.FactoryRun{FactoryID: 1, ThroughputPct: 80, BacklogUnits: 10},
			metric.FactoryRun{FactoryID: 2, ThroughputPct: 81, BacklogUnits: 12},
			metric.FactoryRun{FactoryID: 3, ThroughputPct: 79, BacklogUnits: 11},
			metric.FactoryRun{FactoryID: 4, ThroughputPct: 80, BacklogUnits: 500},
		)

		events := svc.detectFactoryThroughput(snap)

		require.Len(t, events, 1)
		assert.Equal(t, "4", events[0].SubjectIDs["factory_id"])
		assert.Equal(t, "high_backlog", events[0].Labels["reason"])
	})

	t.Run("empty snapshot yields nothing", func(t *testing.T) {
		assert.Empty(t, svc.detectFactoryThroughput(runs()))
	})
}

func TestDetectWeatherSeverity(t *testing.T) {
	svc := newTestService(DefaultConfig())

	observations := func(severities ...float64) metric.Snapshot[metric.WeatherObservation] {
		records := make([]metric.WeatherObservation, len(severities))
		for i, severity := range severities {
			records[i] = metric.WeatherObservation{
				WeatherID:     int64(i + 1),
				Location:      "harbor",
				SeverityLevel: severity,
				WeatherType:   "storm",
				ObservedAt:    day(i),
			}
		}
		return metric.NewSnapshot(metric.DomainWeather, records)
	}

	t.Run("tukey fence flags only the extreme severity", func(t *testing.T) {
		// Q1=2, Q3=3, IQR=1, fence=4.5
		events := svc.detectWeatherSeverity(observations(1, 2, 2, 3, 9))

		require.Len(t, events, 1)
		event := events[0]
		assert.Equal(t, "5", event.SubjectIDs["weather_id"])
		assert.InDelta(t, 9, event.Metrics["severity_level"], 1e-9)
		assert.InDelta(t, 4.5, event.DerivedThresholds["severity_threshold"], 1e-9)
	})

	t.Run("zero IQR collapses the fence to Q3", func(t *testing.T) {
		events := svc.detectWeatherSeverity(observations(3, 3, 3, 3))
		assert.Len(t, events, 4)
	})

	t.Run("empty snapshot yields nothing", func(t *testing.T) {
		assert.Empty(t, svc.detectWeatherSeverity(observations()))
	})
}

func TestDetectMarketShareShifts(t *testing.T) {
	svc := newTestService(DefaultConfig())

	stat := func(id int64, productID int64, revenueShare, unitShare float64, offset int) metric.RevenueStat {
		return metric.RevenueStat{
			StatsID:         id,
			ProductID:       productID,
			TotalRevenue:    decimal.NewFromInt(1000),
			CalculatedFor:   day(offset),
			RevenueSharePct: revenueShare,
			UnitSharePct:    unitShare,
		}
	}

	t.Run("sudden share collapse flags the shifted period", func(t *testing.T) {
		snap := metric.NewSnapshot(metric.DomainRevenue, []metric.RevenueStat{
			stat(1, 1, 50.00, 40, 0),
			stat(2, 1, 50.10, 40, 1),
			stat(3, 1, 49.90, 40, 2),
			stat(4, 1, 50.00, 40, 3),
			stat(5, 1, 50.05, 40, 4),
			stat(6, 1, 30.00, 40, 5),
		})

		events := svc.detectMarketShareShifts(snap)

		require.Len(t, events, 1)
		event := events[0]
		assert.Equal(t, anomaly.EventMarketShareShift, event.Type)
		assert.Equal(t, "6", event.SubjectIDs["stats_id"])
		assert.InDelta(t, -20.05, event.Metrics["revenue_share_diff"], 1e-9)
	})

	t.Run("groups with too few periods are skipped", func(t *testing.T) {
		snap := metric.NewSnapshot(metric.DomainRevenue, []metric.RevenueStat{
			stat(1, 1, 50, 40, 0),
			stat(2, 1, 10, 40, 1),
		})
		assert.Empty(t, svc.detectMarketShareShifts(snap))
	})

	t.Run("empty snapshot yields nothing", func(t *testing.T) {
		assert.Empty(t, svc.detectMarketShareShifts(metric.NewSnapshot[metric.RevenueStat](metric.DomainRevenue, nil)))
	})
}

func TestDetectInventoryLevels(t *testing.T) {
	svc := newTestService(DefaultConfig())

	products := func(stocks ...float64) metric.Snapshot[metric.Product] {
		records := make([]metric.Product, len(stocks))
		for i, stock := range stocks {
			records[i] = metric.Product{ProductID: int64(i + 1), Name: "widget", CurrentStock: stock}
		}
		return metric.NewSnapshot(metric.DomainInventory, records)
	}

	t.Run("negative stock always classifies first", func(t *testing.T) {
		events := svc.detectInventoryLevels(products(-5, 10, 12, 11, 9))

		require.Len(t, events, 1)
		assert.Equal(t, InventoryNegativeStock, events[0].Labels["classification"])
		assert.Equal(t, "1", events[0].SubjectIDs["product_id"])
	})

	t.Run("zero stock is a stockout", func(t *testing.T) {
		events := svc.detectInventoryLevels(products(0, 10, 12, 11, 9))

		require.Len(t, events, 1)
		assert.Equal(t, InventoryStockout, events[0].Labels["classification"])
	})

	t.Run("extreme stock beyond the fences is an iqr outlier", func(t *testing.T) {
		events := svc.detectInventoryLevels(products(10, 12, 11, 9, 500))

		require.Len(t, events, 1)
		assert.Equal(t, InventoryIQROutlier, events[0].Labels["classification"])
		assert.Equal(t, "5", events[0].SubjectIDs["product_id"])
	})

	t.Run("empty snapshot yields nothing", func(t *testing.T) {
		assert.Empty(t, svc.detectInventoryLevels(products()))
	})
}
