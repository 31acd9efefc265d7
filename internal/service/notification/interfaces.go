package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
)

// Transport delivers one composed message. Implementations do not retry;
// failures surface to the dispatcher.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound alert with both plain-text and HTML renderings.
type Message struct {
	Subject    string
	TextBody   string
	HTMLBody   string
	Recipients []string
}

// Receipt reports the delivery outcome for one event. A failed send is
// recorded here and never blocks persistence or other events' notifications.
type Receipt struct {
	EventID      uuid.UUID         `json:"event_id"`
	EventType    anomaly.EventType `json:"event_type"`
	AdminSent    bool              `json:"admin_sent"`
	CustomerSent bool              `json:"customer_sent"`
	Error        string            `json:"error,omitempty"`
}

// Config controls recipients and send pacing.
type Config struct {
	AdminRecipients    []string
	CustomerRecipients []string

	// SendsPerSecond throttles outbound mail; zero disables throttling.
	SendsPerSecond float64
	SendBurst      int
	SendTimeout    time.Duration
}

// DefaultConfig returns conservative dispatch settings.
func DefaultConfig() Config {
	return Config{
		SendsPerSecond: 5,
		SendBurst:      10,
		SendTimeout:    15 * time.Second,
	}
}
