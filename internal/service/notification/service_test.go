package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func testConfig() Config {
	return Config{
		AdminRecipients:    []string{"ops@example.com"},
		CustomerRecipients: []string{"customer@example.com"},
	}
}

func TestDispatchCycle_AdminAlertForEveryEvent(t *testing.T) {
	transport := new(mockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)

	svc, err := NewService(transport, testConfig(), nil)
	require.NoError(t, err)

	events := []*anomaly.Event{
		anomaly.NewEvent(anomaly.EventInventory, map[string]string{"product_id": "1"}).
			WithLabel("classification", "stockout").
			WithMessage("Inventory anomaly", "stock is zero"),
		anomaly.NewEvent(anomaly.EventFactoryIssue, map[string]string{"factory_id": "3"}).
			WithMessage("Factory issue", "low throughput"),
	}

	receipts := svc.DispatchCycle(context.Background(), events)

	require.Len(t, receipts, 2)
	for _, receipt := range receipts {
		assert.True(t, receipt.AdminSent)
		assert.False(t, receipt.CustomerSent)
		assert.Empty(t, receipt.Error)
	}
	transport.AssertNumberOfCalls(t, "Send", 2)
}

func TestDispatchCycle_DeliveryWithWeatherAttribution(t *testing.T) {
	transport := new(mockTransport)
	var customerMsg Message
	transport.On("Send", mock.Anything, mock.MatchedBy(func(msg Message) bool {
		return msg.Subject == "Your delivery is delayed"
	})).Run(func(args mock.Arguments) {
		customerMsg = args.Get(1).(Message)
	}).Return(nil)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)

	svc, err := NewService(transport, testConfig(), nil)
	require.NoError(t, err)

	weather := anomaly.NewEvent(anomaly.EventWeatherRisk, map[string]string{"weather_id": "7"}).
		WithLabel("location", "Rotterdam").
		WithLabel("weather_type", "storm").
		WithMessage("High-risk storm conditions", "severity above fence")
	delivery := anomaly.NewEvent(anomaly.EventDeliveryDelay, map[string]string{
		"delivery_id": "11", "order_id": "42",
	}).
		WithLabel("weather_id", "7").
		WithMessage("Delivery delayed", "carrier status delayed")

	receipts := svc.DispatchCycle(context.Background(), []*anomaly.Event{weather, delivery})

	require.Len(t, receipts, 2)
	assert.True(t, receipts[1].AdminSent)
	assert.True(t, receipts[1].CustomerSent)
	assert.Contains(t, customerMsg.TextBody, "order 42")
	assert.Contains(t, customerMsg.TextBody, "storm")
	assert.Contains(t, customerMsg.TextBody, "Rotterdam")
}

func TestDispatchCycle_DeliveryWithoutMatchingWeather(t *testing.T) {
	transport := new(mockTransport)
	var customerMsg Message
	transport.On("Send", mock.Anything, mock.MatchedBy(func(msg Message) bool {
		return msg.Subject == "Your delivery is delayed"
	})).Run(func(args mock.Arguments) {
		customerMsg = args.Get(1).(Message)
	}).Return(nil)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)

	svc, err := NewService(transport, testConfig(), nil)
	require.NoError(t, err)

	delivery := anomaly.NewEvent(anomaly.EventDeliveryDelay, map[string]string{
		"delivery_id": "11", "order_id": "42",
	}).WithMessage("Delivery delayed", "carrier status delayed")

	receipts := svc.DispatchCycle(context.Background(), []*anomaly.Event{delivery})

	require.Len(t, receipts, 1)
	assert.True(t, receipts[0].CustomerSent)
	assert.NotContains(t, customerMsg.TextBody, "weather")
}

func TestDispatchCycle_PriceChangeDirectionEmphasis(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		change    float64
		wantColor string
	}{
		{"increase is red", "increase", 40.0, increaseColor},
		{"decrease is green", "decrease", -38.5, decreaseColor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(mockTransport)
			var customerMsg Message
			transport.On("Send", mock.Anything, mock.MatchedBy(func(msg Message) bool {
				return msg.Subject == "Price change on a product you follow"
			})).Run(func(args mock.Arguments) {
				customerMsg = args.Get(1).(Message)
			}).Return(nil)
			transport.On("Send", mock.Anything, mock.Anything).Return(nil)

			svc, err := NewService(transport, testConfig(), nil)
			require.NoError(t, err)

			event := anomaly.NewEvent(anomaly.EventPriceChange, map[string]string{
				"pricing_id": "5", "product_id": "2",
			}).
				WithMetric("change_percent", tt.change).
				WithMetric("current_price", 13.99).
				WithLabel("direction", tt.direction).
				WithMessage("Price change", "big move")

			receipts := svc.DispatchCycle(context.Background(), []*anomaly.Event{event})

			require.Len(t, receipts, 1)
			assert.True(t, receipts[0].CustomerSent)
			assert.Contains(t, customerMsg.HTMLBody, tt.wantColor)
			assert.Contains(t, customerMsg.HTMLBody, tt.direction)
		})
	}
}

func TestDispatchCycle_TransportFailureIsReportedNotFatal(t *testing.T) {
	transport := new(mockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(assert.AnError)

	svc, err := NewService(transport, testConfig(), nil)
	require.NoError(t, err)

	events := []*anomaly.Event{
		anomaly.NewEvent(anomaly.EventInventory, map[string]string{"product_id": "1"}).
			WithMessage("Inventory anomaly", "negative stock"),
		anomaly.NewEvent(anomaly.EventWeatherRisk, map[string]string{"weather_id": "2"}).
			WithMessage("Weather risk", "severity spike"),
	}

	receipts := svc.DispatchCycle(context.Background(), events)

	require.Len(t, receipts, 2)
	for _, receipt := range receipts {
		assert.False(t, receipt.AdminSent)
		assert.NotEmpty(t, receipt.Error)
	}
}
