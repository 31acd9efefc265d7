package detection

import (
	"fmt"
	"strconv"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

// Inventory classifications, first match wins.
const (
	InventoryNegativeStock = "negative_stock"
	InventoryStockout      = "stockout"
	InventoryIQROutlier    = "iqr_outlier"
)

// detectInventoryLevels classifies each product's stock level. Negative stock
// and stockouts take precedence over the statistical fence, so they are
// flagged even when the IQR bounds would admit them.
func (s *service) detectInventoryLevels(snap metric.Snapshot[metric.Product]) []*anomaly.Event {
	if snap.Empty() {
		return nil
	}

	stocks := make([]float64, len(snap.Records))
	for i, row := range snap.Records {
		stocks[i] = row.CurrentStock
	}
	q1 := percentile(stocks, 25)
	q3 := percentile(stocks, 75)
	iqr := q3 - q1
	lowFence := q1 - s.config.TukeyMultiplier*iqr
	highFence := q3 + s.config.TukeyMultiplier*iqr

	var events []*anomaly.Event
	for _, row := range snap.Records {
		var classification string
		switch {
		case row.CurrentStock < 0:
			classification = InventoryNegativeStock
		case row.CurrentStock == 0:
			classification = InventoryStockout
		case row.CurrentStock < lowFence || row.CurrentStock > highFence:
			classification = InventoryIQROutlier
		default:
			continue
		}

		events = append(events, anomaly.NewEvent(anomaly.EventInventory, map[string]string{
			"product_id": strconv.FormatInt(row.ProductID, 10),
		}).
			WithMetric("current_stock", row.CurrentStock).
			WithThreshold("low_fence", lowFence).
			WithThreshold("high_fence", highFence).
			WithLabel("classification", classification).
			WithLabel("product_name", row.Name).
			WithMessage(
				fmt.Sprintf("Inventory anomaly for %s: %s", row.Name, classification),
				fmt.Sprintf("Stock level %.0f against IQR fences [%.1f, %.1f]",
					row.CurrentStock, lowFence, highFence),
			))
	}
	return events
}
