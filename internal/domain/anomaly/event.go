package anomaly

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/errors"
)

// EventType identifies the condition a detector flagged.
type EventType string

const (
	EventRevenueSpike     EventType = "revenue_spike"
	EventRevenueDrop      EventType = "revenue_drop"
	EventDeliveryDelay    EventType = "delivery_anomaly"
	EventInventory        EventType = "inventory_anomaly"
	EventPriceChange      EventType = "price_change_anomaly"
	EventSentimentDrift   EventType = "sentiment_drift_anomaly"
	EventFactoryIssue     EventType = "factory_throughput_anomaly"
	EventWeatherRisk      EventType = "weather_risk_anomaly"
	EventMarketShareShift EventType = "market_share_change_anomaly"
)

// String returns the string representation of the event type
func (t EventType) String() string {
	return string(t)
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventRevenueSpike, EventRevenueDrop, EventDeliveryDelay,
		EventInventory, EventPriceChange, EventSentimentDrift,
		EventFactoryIssue, EventWeatherRisk, EventMarketShareShift:
		return true
	}
	return false
}

// Event is a single detected anomaly. Created by exactly one detector per
// cycle and never mutated after creation; the sink owns its own copy once
// persisted.
type Event struct {
	ID                uuid.UUID          `json:"id"`
	Type              EventType          `json:"type"`
	SubjectIDs        map[string]string  `json:"subject_ids"`
	Metrics           map[string]float64 `json:"metrics,omitempty"`
	DerivedThresholds map[string]float64 `json:"derived_thresholds,omitempty"`
	Labels            map[string]string  `json:"labels,omitempty"`
	Message           string             `json:"message"`
	Description       string             `json:"description"`
	DetectedAt        time.Time          `json:"detected_at"`
}

// NewEvent creates an anomaly event. SubjectIDs must carry enough identifiers
// to re-identify the originating record(s).
func NewEvent(eventType EventType, subjectIDs map[string]string) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		SubjectIDs: subjectIDs,
		DetectedAt: time.Now().UTC(),
	}
}

// WithMetric records a numeric observation on the event.
func (e *Event) WithMetric(name string, value float64) *Event {
	if e.Metrics == nil {
		e.Metrics = make(map[string]float64)
	}
	e.Metrics[name] = value
	return e
}

// WithThreshold records a data-derived threshold the detector applied.
func (e *Event) WithThreshold(name string, value float64) *Event {
	if e.DerivedThresholds == nil {
		e.DerivedThresholds = make(map[string]float64)
	}
	e.DerivedThresholds[name] = value
	return e
}

// WithLabel records a non-numeric attribute (classification reason, location,
// delivery status).
func (e *Event) WithLabel(name, value string) *Event {
	if e.Labels == nil {
		e.Labels = make(map[string]string)
	}
	e.Labels[name] = value
	return e
}

// WithMessage sets the short alert message and the longer human description.
func (e *Event) WithMessage(message, description string) *Event {
	e.Message = message
	e.Description = description
	return e
}

// Validate checks structural invariants.
func (e *Event) Validate() error {
	if !e.Type.Valid() {
		return errors.NewValidationError("INVALID_EVENT_TYPE",
			fmt.Sprintf("unknown event type %q", e.Type))
	}
	if len(e.SubjectIDs) == 0 {
		return errors.NewValidationError("MISSING_SUBJECT_IDS",
			"event must identify its originating records")
	}
	if e.Message == "" {
		return errors.NewValidationError("MISSING_MESSAGE", "event message is required")
	}
	return nil
}

// Fingerprint returns a stable deduplication key: the event type plus the
// sorted subject identifiers and the period label when present. Two detections
// of the same underlying condition produce the same fingerprint across cycles.
func (e *Event) Fingerprint() string {
	keys := make([]string, 0, len(e.SubjectIDs))
	for k := range e.SubjectIDs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(e.Type))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(e.SubjectIDs[k])
	}
	if period, ok := e.Labels["period"]; ok {
		b.WriteString("|period=")
		b.WriteString(period)
	}
	return b.String()
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	clone := *e
	clone.SubjectIDs = copyStringMap(e.SubjectIDs)
	clone.Labels = copyStringMap(e.Labels)
	clone.Metrics = copyFloatMap(e.Metrics)
	clone.DerivedThresholds = copyFloatMap(e.DerivedThresholds)
	return &clone
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
