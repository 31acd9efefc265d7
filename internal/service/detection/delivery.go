package detection

import (
	"fmt"
	"strconv"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

// detectDeliveryDelays unions two independent signals: any delivery whose
// carrier status is explicitly delayed, and any delivery whose day-level delay
// has a robust modified z-score at or beyond the threshold. The z signal is
// skipped entirely when fewer than two delay samples exist or the MAD is
// zero; the status signal still applies.
func (s *service) detectDeliveryDelays(snap metric.Snapshot[metric.Delivery]) []*anomaly.Event {
	if snap.Empty() {
		return nil
	}

	type measured struct {
		index int
		delay float64
	}
	var samples []measured
	for i, row := range snap.Records {
		if days, ok := row.DelayDays(); ok {
			samples = append(samples, measured{index: i, delay: float64(days)})
		}
	}

	zScores := make(map[int]float64)
	var delayMedian, delayMAD float64
	if len(samples) >= 2 {
		delays := make([]float64, len(samples))
		for i, m := range samples {
			delays[i] = m.delay
		}
		delayMedian = median(delays)
		delayMAD = medianAbsoluteDeviation(delays)
		if delayMAD > 0 {
			for _, m := range samples {
				z := 0.6745 * (m.delay - delayMedian) / delayMAD
				if z >= s.config.ModifiedZScoreThreshold || z <= -s.config.ModifiedZScoreThreshold {
					zScores[m.index] = z
				}
			}
		}
	}

	var events []*anomaly.Event
	for i, row := range snap.Records {
		z, outlier := zScores[i]
		statusDelayed := row.Status == metric.DeliveryStatusDelayed
		if !outlier && !statusDelayed {
			continue
		}

		event := anomaly.NewEvent(anomaly.EventDeliveryDelay, map[string]string{
			"delivery_id": strconv.FormatInt(row.DeliveryID, 10),
			"order_id":    strconv.FormatInt(row.OrderID, 10),
		}).WithLabel("delivery_status", string(row.Status))

		if row.WeatherID != nil {
			event.WithLabel("weather_id", strconv.FormatInt(*row.WeatherID, 10))
		}

		switch {
		case outlier:
			days, _ := row.DelayDays()
			event.
				WithMetric("delay_days", float64(days)).
				WithMetric("modified_z_score", z).
				WithThreshold("modified_z_threshold", s.config.ModifiedZScoreThreshold).
				WithThreshold("delay_median", delayMedian).
				WithThreshold("delay_mad", delayMAD).
				WithMessage(
					fmt.Sprintf("Delivery %d delayed %d days beyond the robust norm", row.DeliveryID, days),
					fmt.Sprintf("Delay of %d days has modified z-score %.2f against median %.1f (MAD %.1f)",
						days, z, delayMedian, delayMAD),
				)
		default:
			event.WithMessage(
				fmt.Sprintf("Delivery %d reported as delayed by carrier", row.DeliveryID),
				fmt.Sprintf("Order %d carries explicit delayed status; delay duration not yet measurable", row.OrderID),
			)
		}
		events = append(events, event)
	}
	return events
}
