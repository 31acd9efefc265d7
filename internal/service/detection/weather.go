package detection

import (
	"fmt"
	"strconv"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

// detectWeatherSeverity flags observations at or above the upper Tukey fence
// of the snapshot's severity distribution. With zero IQR the fence collapses
// to Q3 itself.
func (s *service) detectWeatherSeverity(snap metric.Snapshot[metric.WeatherObservation]) []*anomaly.Event {
	if snap.Empty() {
		return nil
	}

	severities := make([]float64, len(snap.Records))
	for i, row := range snap.Records {
		severities[i] = row.SeverityLevel
	}

	q1 := percentile(severities, 25)
	q3 := percentile(severities, 75)
	iqr := q3 - q1
	threshold := q3 + s.config.TukeyMultiplier*iqr
	if iqr == 0 {
		threshold = q3
	}

	var events []*anomaly.Event
	for _, row := range snap.Records {
		if row.SeverityLevel < threshold {
			continue
		}
		events = append(events, anomaly.NewEvent(anomaly.EventWeatherRisk, map[string]string{
			"weather_id": strconv.FormatInt(row.WeatherID, 10),
		}).
			WithMetric("severity_level", row.SeverityLevel).
			WithThreshold("severity_threshold", threshold).
			WithThreshold("q1", q1).
			WithThreshold("q3", q3).
			WithLabel("location", row.Location).
			WithLabel("weather_type", row.WeatherType).
			WithMessage(
				fmt.Sprintf("High-risk %s conditions at %s", row.WeatherType, row.Location),
				fmt.Sprintf("Severity %.1f at or above fence %.1f (Q3 %.1f + %.1f*IQR %.1f), observed %s",
					row.SeverityLevel, threshold, q3, s.config.TukeyMultiplier, iqr,
					row.ObservedAt.UTC().Format("2006-01-02 15:04:05")),
			))
	}
	return events
}
