package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const fingerprintKeyPrefix = "anomaly:fp:"

// FingerprintStore remembers reported anomaly fingerprints in redis so a
// condition already alerted on is suppressed for the cooldown window.
type FingerprintStore struct {
	client *redis.Client
}

func NewFingerprintStore(client *redis.Client) *FingerprintStore {
	return &FingerprintStore{client: client}
}

// Seen marks the fingerprint with the cooldown TTL and reports whether it was
// already marked. SETNX makes the check-and-mark atomic, so two overlapping
// cycles cannot both claim first sight of the same condition.
func (s *FingerprintStore) Seen(ctx context.Context, fingerprint string, cooldown time.Duration) (bool, error) {
	set, err := s.client.SetNX(ctx, fingerprintKeyPrefix+fingerprint, 1, cooldown).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}
