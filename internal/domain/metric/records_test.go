package metric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryDelayDays(t *testing.T) {
	promised := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		actual   *time.Time
		wantDays int
		wantOK   bool
	}{
		{
			name:     "three days late",
			actual:   timePtr(promised.Add(3 * 24 * time.Hour)),
			wantDays: 3,
			wantOK:   true,
		},
		{
			name:     "early delivery is negative",
			actual:   timePtr(promised.Add(-2 * 24 * time.Hour)),
			wantDays: -2,
			wantOK:   true,
		},
		{
			name:     "partial day truncates toward zero",
			actual:   timePtr(promised.Add(36 * time.Hour)),
			wantDays: 1,
			wantOK:   true,
		},
		{
			name:   "undelivered",
			actual: nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Delivery{
				DeliveryID: 1,
				OrderID:    10,
				Status:     DeliveryStatusInTransit,
				PromisedAt: &promised,
				ActualAt:   tt.actual,
			}
			days, ok := d.DelayDays()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantDays, days)
			}
		})
	}

	t.Run("missing promised date", func(t *testing.T) {
		actual := promised.Add(24 * time.Hour)
		d := Delivery{DeliveryID: 1, OrderID: 10, Status: DeliveryStatusDelivered, ActualAt: &actual}
		_, ok := d.DelayDays()
		assert.False(t, ok)
	})
}

func TestValidateRecord(t *testing.T) {
	t.Run("valid weather observation", func(t *testing.T) {
		obs := WeatherObservation{
			WeatherID:     4,
			Location:      "Rotterdam",
			SeverityLevel: 2.5,
			WeatherType:   "storm",
			ObservedAt:    time.Now().UTC(),
		}
		require.NoError(t, ValidateRecord(obs))
	})

	t.Run("sentiment score out of range", func(t *testing.T) {
		score := SentimentScore{
			SentimentID: 1,
			Score:       1.7,
			RecordedAt:  time.Now().UTC(),
		}
		assert.Error(t, ValidateRecord(score))
	})

	t.Run("missing required fields", func(t *testing.T) {
		assert.Error(t, ValidateRecord(Product{CurrentStock: 5}))
	})
}

func TestSnapshotEmpty(t *testing.T) {
	assert.True(t, NewSnapshot[Product](DomainInventory, nil).Empty())

	snap := NewSnapshot(DomainInventory, []Product{{ProductID: 1, Name: "widget"}})
	assert.False(t, snap.Empty())
	assert.Equal(t, DomainInventory, snap.Domain)
	assert.WithinDuration(t, time.Now().UTC(), snap.FetchedAt, time.Minute)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
