package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/errors"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

// MetricSource reads point-in-time snapshots of the business data domains.
// Rows that fail record validation are dropped and logged rather than
// surfacing as deep failures inside a detector.
type MetricSource struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewMetricSource(pool *pgxpool.Pool, logger *zap.Logger) *MetricSource {
	return &MetricSource{pool: pool, logger: logger}
}

func (s *MetricSource) RevenueStats(ctx context.Context) (metric.Snapshot[metric.RevenueStat], error) {
	const query = `
		SELECT stats_id, product_id, total_revenue::text, calculated_for,
		       revenue_share_percent, unit_share_percent
		FROM revenue_stats
		ORDER BY calculated_for, stats_id`

	records, err := queryDomain(ctx, s, metric.DomainRevenue, query,
		func(rows pgx.Rows) (metric.RevenueStat, error) {
			var r metric.RevenueStat
			var revenue string
			if err := rows.Scan(&r.StatsID, &r.ProductID, &revenue, &r.CalculatedFor,
				&r.RevenueSharePct, &r.UnitSharePct); err != nil {
				return r, err
			}
			var err error
			r.TotalRevenue, err = decimal.NewFromString(revenue)
			return r, err
		})
	if err != nil {
		return metric.Snapshot[metric.RevenueStat]{}, err
	}
	return metric.NewSnapshot(metric.DomainRevenue, records), nil
}

func (s *MetricSource) Deliveries(ctx context.Context) (metric.Snapshot[metric.Delivery], error) {
	const query = `
		SELECT delivery_id, order_id, delivery_status,
		       promised_delivery_date, actual_delivery_date, weather_id
		FROM deliveries
		ORDER BY delivery_id`

	records, err := queryDomain(ctx, s, metric.DomainDeliveries, query,
		func(rows pgx.Rows) (metric.Delivery, error) {
			var r metric.Delivery
			err := rows.Scan(&r.DeliveryID, &r.OrderID, &r.Status,
				&r.PromisedAt, &r.ActualAt, &r.WeatherID)
			return r, err
		})
	if err != nil {
		return metric.Snapshot[metric.Delivery]{}, err
	}
	return metric.NewSnapshot(metric.DomainDeliveries, records), nil
}

func (s *MetricSource) PricingHistory(ctx context.Context) (metric.Snapshot[metric.PriceRecord], error) {
	const query = `
		SELECT pricing_id, product_id, price::text, start_date
		FROM pricing_history
		ORDER BY product_id, start_date`

	records, err := queryDomain(ctx, s, metric.DomainPricing, query,
		func(rows pgx.Rows) (metric.PriceRecord, error) {
			var r metric.PriceRecord
			var price string
			if err := rows.Scan(&r.PricingID, &r.ProductID, &price, &r.EffectiveAt); err != nil {
				return r, err
			}
			var err error
			r.Price, err = decimal.NewFromString(price)
			return r, err
		})
	if err != nil {
		return metric.Snapshot[metric.PriceRecord]{}, err
	}
	return metric.NewSnapshot(metric.DomainPricing, records), nil
}

func (s *MetricSource) ReviewSentiments(ctx context.Context) (metric.Snapshot[metric.SentimentScore], error) {
	const query = `
		SELECT sentiment_id, sentiment_score, recorded_at
		FROM review_sentiments
		ORDER BY recorded_at, sentiment_id`

	records, err := queryDomain(ctx, s, metric.DomainSentiment, query,
		func(rows pgx.Rows) (metric.SentimentScore, error) {
			var r metric.SentimentScore
			err := rows.Scan(&r.SentimentID, &r.Score, &r.RecordedAt)
			return r, err
		})
	if err != nil {
		return metric.Snapshot[metric.SentimentScore]{}, err
	}
	return metric.NewSnapshot(metric.DomainSentiment, records), nil
}

func (s *MetricSource) FactoryPerformance(ctx context.Context) (metric.Snapshot[metric.FactoryRun], error) {
	const query = `
		SELECT factory_id, throughput_percentage, backlog_units, units_produced
		FROM factory_performance
		ORDER BY factory_id`

	records, err := queryDomain(ctx, s, metric.DomainFactory, query,
		func(rows pgx.Rows) (metric.FactoryRun, error) {
			var r metric.FactoryRun
			err := rows.Scan(&r.FactoryID, &r.ThroughputPct, &r.BacklogUnits, &r.UnitsProduced)
			return r, err
		})
	if err != nil {
		return metric.Snapshot[metric.FactoryRun]{}, err
	}
	return metric.NewSnapshot(metric.DomainFactory, records), nil
}

func (s *MetricSource) WeatherConditions(ctx context.Context) (metric.Snapshot[metric.WeatherObservation], error) {
	const query = `
		SELECT weather_id, observed_location, severity_level, weather_type, observed_at
		FROM weather_conditions
		ORDER BY observed_at, weather_id`

	records, err := queryDomain(ctx, s, metric.DomainWeather, query,
		func(rows pgx.Rows) (metric.WeatherObservation, error) {
			var r metric.WeatherObservation
			err := rows.Scan(&r.WeatherID, &r.Location, &r.SeverityLevel, &r.WeatherType, &r.ObservedAt)
			return r, err
		})
	if err != nil {
		return metric.Snapshot[metric.WeatherObservation]{}, err
	}
	return metric.NewSnapshot(metric.DomainWeather, records), nil
}

func (s *MetricSource) Products(ctx context.Context) (metric.Snapshot[metric.Product], error) {
	const query = `
		SELECT product_id, product_name, current_stock
		FROM products
		ORDER BY product_id`

	records, err := queryDomain(ctx, s, metric.DomainInventory, query,
		func(rows pgx.Rows) (metric.Product, error) {
			var r metric.Product
			err := rows.Scan(&r.ProductID, &r.Name, &r.CurrentStock)
			return r, err
		})
	if err != nil {
		return metric.Snapshot[metric.Product]{}, err
	}
	return metric.NewSnapshot(metric.DomainInventory, records), nil
}

// queryDomain runs one snapshot query and scans, validates and collects the
// rows. A scan or validation failure on a single row drops that row only.
func queryDomain[T any](ctx context.Context, s *MetricSource, domain metric.Domain, query string,
	scan func(pgx.Rows) (T, error)) ([]T, error) {

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.NewSourceUnavailableError(domain.String(), err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		record, err := scan(rows)
		if err != nil {
			s.logger.Warn("dropping unscannable row",
				zap.String("domain", domain.String()), zap.Error(err))
			continue
		}
		if err := metric.ValidateRecord(record); err != nil {
			s.logger.Warn("dropping invalid row",
				zap.String("domain", domain.String()), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewSourceUnavailableError(domain.String(), fmt.Errorf("reading rows: %w", err))
	}
	return records, nil
}
