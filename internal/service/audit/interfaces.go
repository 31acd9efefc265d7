package audit

import (
	"context"
	"time"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/audit"
)

// BlobStore holds the full serialized chain: loaded once at startup,
// rewritten whole on every append. Simplicity over efficiency, acceptable at
// audit-log scale.
type BlobStore interface {
	Load(ctx context.Context) ([]byte, error)
	Store(ctx context.Context, data []byte) error
}

// Filters narrows a ledger search. Zero values match everything.
type Filters struct {
	Start        time.Time
	End          time.Time
	CycleID      string
	ContainsText string
}

// Report summarizes a time window of the ledger together with its current
// integrity status.
type Report struct {
	GeneratedAt     time.Time                 `json:"generated_at"`
	WindowStart     time.Time                 `json:"window_start,omitempty"`
	WindowEnd       time.Time                 `json:"window_end,omitempty"`
	TotalBlocks     int                       `json:"total_blocks"`
	BlocksInWindow  int                       `json:"blocks_in_window"`
	FirstCycleID    string                    `json:"first_cycle_id,omitempty"`
	LastCycleID     string                    `json:"last_cycle_id,omitempty"`
	Integrity       *audit.VerificationResult `json:"integrity"`
	ActionBreakdown map[string]int            `json:"action_breakdown"`
}
