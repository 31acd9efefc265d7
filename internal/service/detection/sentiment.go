package detection

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

// detectSentimentDrift smooths the chronological score series with a rolling
// mean and flags points where the discrete gradient of the smoothed series
// exceeds the drift threshold. Positions where the window has not filled are
// NaN; NaN gradients never flag, so early points pass silently.
func (s *service) detectSentimentDrift(snap metric.Snapshot[metric.SentimentScore]) []*anomaly.Event {
	if len(snap.Records) < s.config.SentimentMinSamples {
		return nil
	}

	rows := make([]metric.SentimentScore, len(snap.Records))
	copy(rows, snap.Records)
	sort.Slice(rows, func(i, j int) bool { return rows[i].RecordedAt.Before(rows[j].RecordedAt) })

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = row.Score
	}

	baseline := rollingMean(scores, s.config.SentimentWindow)
	drift := gradient(baseline)

	var events []*anomaly.Event
	for i, g := range drift {
		if math.IsNaN(g) || math.Abs(g) <= s.config.SentimentDriftThreshold {
			continue
		}
		row := rows[i]
		direction := "upward"
		if g < 0 {
			direction = "downward"
		}
		events = append(events, anomaly.NewEvent(anomaly.EventSentimentDrift, map[string]string{
			"sentiment_id": strconv.FormatInt(row.SentimentID, 10),
		}).
			WithMetric("sentiment_score", row.Score).
			WithMetric("baseline", baseline[i]).
			WithMetric("baseline_gradient", g).
			WithThreshold("drift_threshold", s.config.SentimentDriftThreshold).
			WithLabel("direction", direction).
			WithMessage(
				fmt.Sprintf("Sentiment drifting %s at %.3f per observation", direction, g),
				fmt.Sprintf("Rolling baseline %.3f moved %.3f at observation recorded %s",
					baseline[i], g, row.RecordedAt.UTC().Format("2006-01-02 15:04:05")),
			))
	}
	return events
}
