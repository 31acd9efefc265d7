package detection

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

// detectPriceChanges groups the pricing history per product, orders it by
// effective date and flags period-over-period changes whose magnitude exceeds
// the configured fraction. A zero previous price has no defined percent
// change and is skipped.
func (s *service) detectPriceChanges(snap metric.Snapshot[metric.PriceRecord]) []*anomaly.Event {
	if snap.Empty() {
		return nil
	}

	byProduct := make(map[int64][]metric.PriceRecord)
	productOrder := make([]int64, 0)
	for _, row := range snap.Records {
		if _, seen := byProduct[row.ProductID]; !seen {
			productOrder = append(productOrder, row.ProductID)
		}
		byProduct[row.ProductID] = append(byProduct[row.ProductID], row)
	}
	sort.Slice(productOrder, func(i, j int) bool { return productOrder[i] < productOrder[j] })

	var events []*anomaly.Event
	for _, productID := range productOrder {
		history := byProduct[productID]
		sort.Slice(history, func(i, j int) bool {
			return history[i].EffectiveAt.Before(history[j].EffectiveAt)
		})

		for i := 1; i < len(history); i++ {
			prev, curr := history[i-1], history[i]
			if prev.Price.IsZero() {
				continue
			}
			change, _ := curr.Price.Sub(prev.Price).Div(prev.Price).Float64()
			magnitude := change
			if magnitude < 0 {
				magnitude = -magnitude
			}
			if magnitude <= s.config.PriceChangeThreshold {
				continue
			}

			direction := "increase"
			if change < 0 {
				direction = "decrease"
			}
			prevPrice, _ := prev.Price.Float64()
			currPrice, _ := curr.Price.Float64()

			events = append(events, anomaly.NewEvent(anomaly.EventPriceChange, map[string]string{
				"pricing_id": strconv.FormatInt(curr.PricingID, 10),
				"product_id": strconv.FormatInt(productID, 10),
			}).
				WithMetric("previous_price", prevPrice).
				WithMetric("current_price", currPrice).
				WithMetric("change_percent", change*100).
				WithThreshold("change_threshold_percent", s.config.PriceChangeThreshold*100).
				WithLabel("direction", direction).
				WithLabel("period", curr.EffectiveAt.UTC().Format("2006-01-02")).
				WithMessage(
					fmt.Sprintf("Price %s of %.1f%% for product %d", direction, magnitude*100, productID),
					fmt.Sprintf("Price moved from %.2f to %.2f effective %s, a %.1f%% %s",
						prevPrice, currPrice, curr.EffectiveAt.UTC().Format("2006-01-02"), magnitude*100, direction),
				))
		}
	}
	return events
}
