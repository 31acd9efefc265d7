package database

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/errors"
)

// AnomalyStore persists detected events. Append-only: every event becomes a
// new row, no update-in-place, no uniqueness constraint.
type AnomalyStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewAnomalyStore(pool *pgxpool.Pool, logger *zap.Logger) *AnomalyStore {
	return &AnomalyStore{pool: pool, logger: logger}
}

const insertAnomaly = `
	INSERT INTO anomaly_events
		(id, event_type, subject_ids, metrics, derived_thresholds, labels,
		 message, description, fingerprint, detected_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Persist appends every event in one batch.
func (s *AnomalyStore) Persist(ctx context.Context, events []*anomaly.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, event := range events {
		subjects, err := json.Marshal(event.SubjectIDs)
		if err != nil {
			return errors.NewInternalError("failed to serialize event subjects").WithCause(err)
		}
		metrics, err := json.Marshal(event.Metrics)
		if err != nil {
			return errors.NewInternalError("failed to serialize event metrics").WithCause(err)
		}
		thresholds, err := json.Marshal(event.DerivedThresholds)
		if err != nil {
			return errors.NewInternalError("failed to serialize event thresholds").WithCause(err)
		}
		labels, err := json.Marshal(event.Labels)
		if err != nil {
			return errors.NewInternalError("failed to serialize event labels").WithCause(err)
		}

		batch.Queue(insertAnomaly,
			event.ID, string(event.Type), subjects, metrics, thresholds, labels,
			event.Message, event.Description, event.Fingerprint(), event.DetectedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return errors.NewSinkWriteError(err)
		}
	}

	s.logger.Info("anomaly events persisted", zap.Int("count", len(events)))
	return nil
}
