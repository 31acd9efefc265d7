package detection

import (
	"fmt"
	"strconv"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

// detectRevenueOutliers scores the snapshot's revenue series with an
// isolation-style ensemble and classifies each outlier against the median of
// the points that were not flagged. All-outlier snapshots have no safe
// reference center and yield nothing.
func (s *service) detectRevenueOutliers(snap metric.Snapshot[metric.RevenueStat]) []*anomaly.Event {
	if snap.Empty() {
		return nil
	}

	values := make([]float64, len(snap.Records))
	for i, row := range snap.Records {
		values[i], _ = row.TotalRevenue.Float64()
	}

	forest := newIsolationForest(s.config.IsolationTrees, s.config.IsolationSampleSize, s.config.IsolationSeed)
	scores := forest.Scores(values)

	var inliers []float64
	for i, score := range scores {
		if score < s.config.IsolationScoreThreshold {
			inliers = append(inliers, values[i])
		}
	}
	if len(inliers) == 0 {
		return nil
	}
	center := median(inliers)

	var events []*anomaly.Event
	for i, score := range scores {
		if score < s.config.IsolationScoreThreshold {
			continue
		}
		row := snap.Records[i]

		eventType := anomaly.EventRevenueDrop
		direction := "below"
		if values[i] > center {
			eventType = anomaly.EventRevenueSpike
			direction = "above"
		}

		events = append(events, anomaly.NewEvent(eventType, map[string]string{
			"stats_id":   strconv.FormatInt(row.StatsID, 10),
			"product_id": strconv.FormatInt(row.ProductID, 10),
		}).
			WithMetric("total_revenue", values[i]).
			WithMetric("isolation_score", scores[i]).
			WithThreshold("reference_center", center).
			WithThreshold("score_threshold", s.config.IsolationScoreThreshold).
			WithLabel("period", row.CalculatedFor.UTC().Format("2006-01-02")).
			WithMessage(
				fmt.Sprintf("Revenue %s reference for product %d", direction, row.ProductID),
				fmt.Sprintf("Revenue %.2f scored %.3f against inlier center %.2f for period %s",
					values[i], score, center, row.CalculatedFor.UTC().Format("2006-01-02")),
			))
	}
	return events
}
