package detection

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

// detectMarketShareShifts computes the first difference of each product's
// revenue-share and unit-share series and flags rows whose shift exceeds two
// per-group standard deviations of the respective difference series. Groups
// with fewer than two differences have no defined dispersion and are skipped.
func (s *service) detectMarketShareShifts(snap metric.Snapshot[metric.RevenueStat]) []*anomaly.Event {
	if snap.Empty() {
		return nil
	}

	byProduct := make(map[int64][]metric.RevenueStat)
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
		group := byProduct[productID]
		sort.Slice(group, func(i, j int) bool {
			return group[i].CalculatedFor.Before(group[j].CalculatedFor)
		})
		if len(group) < 3 {
			continue
		}

		revenueDiffs := make([]float64, 0, len(group)-1)
		unitDiffs := make([]float64, 0, len(group)-1)
		for i := 1; i < len(group); i++ {
			revenueDiffs = append(revenueDiffs, group[i].RevenueSharePct-group[i-1].RevenueSharePct)
			unitDiffs = append(unitDiffs, group[i].UnitSharePct-group[i-1].UnitSharePct)
		}

		revenueFence := s.config.MarketShareSigma * sampleStdDev(revenueDiffs)
		unitFence := s.config.MarketShareSigma * sampleStdDev(unitDiffs)

		for i := 1; i < len(group); i++ {
			row := group[i]
			revenueDiff := revenueDiffs[i-1]
			unitDiff := unitDiffs[i-1]

			revenueShift := abs(revenueDiff) > revenueFence
			unitShift := abs(unitDiff) > unitFence
			if !revenueShift && !unitShift {
				continue
			}

			events = append(events, anomaly.NewEvent(anomaly.EventMarketShareShift, map[string]string{
				"stats_id":   strconv.FormatInt(row.StatsID, 10),
				"product_id": strconv.FormatInt(productID, 10),
			}).
				WithMetric("revenue_share_percent", row.RevenueSharePct).
				WithMetric("revenue_share_diff", revenueDiff).
				WithMetric("unit_share_percent", row.UnitSharePct).
				WithMetric("unit_share_diff", unitDiff).
				WithThreshold("revenue_share_fence", revenueFence).
				WithThreshold("unit_share_fence", unitFence).
				WithLabel("period", row.CalculatedFor.UTC().Format("2006-01-02")).
				WithMessage(
					fmt.Sprintf("Market share shift for product %d", productID),
					fmt.Sprintf("Revenue share moved %.2fpp (fence %.2f), unit share %.2fpp (fence %.2f) for period %s",
						revenueDiff, revenueFence, unitDiff, unitFence,
						row.CalculatedFor.UTC().Format("2006-01-02")),
				))
		}
	}
	return events
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
