package metric

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Domain names one business data domain scanned by the engine.
type Domain string

const (
	DomainRevenue     Domain = "revenue_stats"
	DomainDeliveries  Domain = "deliveries"
	DomainPricing     Domain = "pricing_history"
	DomainSentiment   Domain = "review_sentiments"
	DomainFactory     Domain = "factory_performance"
	DomainWeather     Domain = "weather_conditions"
	DomainMarketShare Domain = "market_share"
	DomainInventory   Domain = "products"
)

func (d Domain) String() string {
	return string(d)
}

// Snapshot is a read-only, point-in-time copy of one domain's records.
// Immutable once fetched; owned by the detection cycle that fetched it.
type Snapshot[T any] struct {
	Domain    Domain    `json:"domain"`
	Records   []T       `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewSnapshot wraps fetched records with their domain and fetch time.
func NewSnapshot[T any](domain Domain, records []T) Snapshot[T] {
	return Snapshot[T]{
		Domain:    domain,
		Records:   records,
		FetchedAt: time.Now().UTC(),
	}
}

// Empty reports whether the snapshot holds no records.
func (s Snapshot[T]) Empty() bool {
	return len(s.Records) == 0
}

// RevenueStat is one periodic revenue aggregation for a product. The same
// rows feed both the revenue outlier and the market share detectors.
type RevenueStat struct {
	StatsID         int64           `json:"stats_id" validate:"required"`
	ProductID       int64           `json:"product_id" validate:"required"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	CalculatedFor   time.Time       `json:"calculated_for" validate:"required"`
	RevenueSharePct float64         `json:"revenue_share_percent" validate:"gte=0,lte=100"`
	UnitSharePct    float64         `json:"unit_share_percent" validate:"gte=0,lte=100"`
}

// DeliveryStatus is the carrier-reported state of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusDelayed   DeliveryStatus = "delayed"
)

// Delivery is one order shipment. ActualAt is nil while undelivered.
type Delivery struct {
	DeliveryID int64          `json:"delivery_id" validate:"required"`
	OrderID    int64          `json:"order_id" validate:"required"`
	Status     DeliveryStatus `json:"delivery_status" validate:"required"`
	PromisedAt *time.Time     `json:"promised_delivery_date"`
	ActualAt   *time.Time     `json:"actual_delivery_date"`
	WeatherID  *int64         `json:"weather_id"`
}

// DelayDays returns the signed whole-day delay, or false when either
// timestamp is missing.
func (d Delivery) DelayDays() (int, bool) {
	if d.PromisedAt == nil || d.ActualAt == nil {
		return 0, false
	}
	return int(d.ActualAt.Sub(*d.PromisedAt).Hours() / 24), true
}

// PriceRecord is one entry in a product's pricing history.
type PriceRecord struct {
	PricingID   int64           `json:"pricing_id" validate:"required"`
	ProductID   int64           `json:"product_id" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	EffectiveAt time.Time       `json:"start_date" validate:"required"`
}

// SentimentScore is one review sentiment observation, ordered by RecordedAt.
type SentimentScore struct {
	SentimentID int64     `json:"sentiment_id" validate:"required"`
	Score       float64   `json:"sentiment_score" validate:"gte=-1,lte=1"`
	RecordedAt  time.Time `json:"recorded_at" validate:"required"`
}

// FactoryRun is one factory performance report.
type FactoryRun struct {
	FactoryID     int64   `json:"factory_id" validate:"required"`
	ThroughputPct float64 `json:"throughput_percentage" validate:"gte=0"`
	BacklogUnits  float64 `json:"backlog_units" validate:"gte=0"`
	UnitsProduced int64   `json:"units_produced" validate:"gte=0"`
}

// WeatherObservation is one reported weather condition.
type WeatherObservation struct {
	WeatherID     int64     `json:"weather_id" validate:"required"`
	Location      string    `json:"observed_location" validate:"required"`
	SeverityLevel float64   `json:"severity_level" validate:"gte=0"`
	WeatherType   string    `json:"weather_type" validate:"required"`
	ObservedAt    time.Time `json:"observed_at" validate:"required"`
}

// Product is the inventory view of a catalog product.
type Product struct {
	ProductID    int64   `json:"product_id" validate:"required"`
	Name         string  `json:"product_name" validate:"required"`
	CurrentStock float64 `json:"current_stock"`
}

// validate is shared; Struct() is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecord checks a record's field contract. Sources call it per row;
// rows that fail are dropped before they reach a detector.
func ValidateRecord(record any) error {
	return validate.Struct(record)
}
