package detection

import (
	"fmt"
	"strconv"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/metric"
)

// detectFactoryThroughput derives mean/sigma fences for throughput and
// backlog across the snapshot and flags any run that falls below the
// low-throughput fence or above the high-backlog fence. A flat series has
// zero sigma, so the fences fall back to fixed fractions of the mean.
func (s *service) detectFactoryThroughput(snap metric.Snapshot[metric.FactoryRun]) []*anomaly.Event {
	if snap.Empty() {
		return nil
	}

	throughputs := make([]float64, len(snap.Records))
	backlogs := make([]float64, len(snap.Records))
	for i, row := range snap.Records {
		throughputs[i] = row.ThroughputPct
		backlogs[i] = row.BacklogUnits
	}

	throughputMean := mean(throughputs)
	throughputStd := sampleStdDev(throughputs)
	lowThroughput := throughputMean - s.config.FactorySigma*throughputStd
	if throughputStd == 0 {
		lowThroughput = throughputMean * s.config.FactoryFlatLowFactor
	}

	backlogMean := mean(backlogs)
	backlogStd := sampleStdDev(backlogs)
	highBacklog := backlogMean + s.config.FactorySigma*backlogStd
	if backlogStd == 0 {
		highBacklog = backlogMean * s.config.FactoryFlatHighFactor
	}

	var events []*anomaly.Event
	for _, row := range snap.Records {
		lowTput := row.ThroughputPct < lowThroughput
		highBack := row.BacklogUnits > highBacklog
		if !lowTput && !highBack {
			continue
		}

		var reason string
		switch {
		case lowTput && highBack:
			reason = "low_throughput_high_backlog"
		case lowTput:
			reason = "low_throughput"
		default:
			reason = "high_backlog"
		}

		events = append(events, anomaly.NewEvent(anomaly.EventFactoryIssue, map[string]string{
			"factory_id": strconv.FormatInt(row.FactoryID, 10),
		}).
			WithMetric("throughput_percentage", row.ThroughputPct).
			WithMetric("backlog_units", row.BacklogUnits).
			WithMetric("units_produced", float64(row.UnitsProduced)).
			WithThreshold("low_throughput_threshold", lowThroughput).
			WithThreshold("high_backlog_threshold", highBacklog).
			WithLabel("reason", reason).
			WithMessage(
				fmt.Sprintf("Factory %d outside performance fences (%s)", row.FactoryID, reason),
				fmt.Sprintf("Throughput %.1f%% against low fence %.1f%%, backlog %.0f against high fence %.0f",
					row.ThroughputPct, lowThroughput, row.BacklogUnits, highBacklog),
			))
	}
	return events
}
