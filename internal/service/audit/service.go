package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/audit"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/errors"
)

// Service is the append-only audit ledger. The chain is loaded from the blob
// store at construction and every append rewrites the full serialized chain.
// Reading the tail hash, building the block and rewriting storage is a
// critical section: a single writer guards against divergent forks.
type Service struct {
	store  BlobStore
	logger *slog.Logger

	mu    sync.Mutex
	chain []*audit.Block
}

func NewService(ctx context.Context, store BlobStore, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.NewInternalError("ledger blob store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{store: store, logger: logger}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) load(ctx context.Context) error {
	data, err := s.store.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "loading audit chain")
	}
	if len(data) == 0 {
		s.chain = nil
		return nil
	}
	var chain []*audit.Block
	if err := json.Unmarshal(data, &chain); err != nil {
		return errors.NewInternalError("audit chain storage is not valid JSON").WithCause(err)
	}
	s.chain = chain
	s.logger.InfoContext(ctx, "audit chain loaded", "blocks", len(chain))
	return nil
}

// Append seals a new block over the given sense/think/act payloads and
// persists the full chain. Returns the new block's cycle id.
func (s *Service) Append(ctx context.Context, sense, think, act any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previousHash := audit.GenesisHash
	if len(s.chain) > 0 {
		previousHash = s.chain[len(s.chain)-1].Hash
	}

	block, err := audit.NewBlock(newCycleID(), sense, think, act, previousHash)
	if err != nil {
		return "", err
	}

	s.chain = append(s.chain, block)
	if err := s.persist(ctx); err != nil {
		s.chain = s.chain[:len(s.chain)-1]
		return "", err
	}

	s.logger.InfoContext(ctx, "audit block appended",
		"cycle_id", block.CycleID, "blocks", len(s.chain))
	return block.CycleID, nil
}

func (s *Service) persist(ctx context.Context) error {
	data, err := json.MarshalIndent(s.chain, "", "  ")
	if err != nil {
		return errors.NewInternalError("failed to serialize audit chain").WithCause(err)
	}
	if err := s.store.Store(ctx, data); err != nil {
		return errors.Wrap(err, "persisting audit chain")
	}
	return nil
}

// Verify recomputes every block hash and every previous-hash link. The chain
// is only ever checked, never repaired.
func (s *Service) Verify(ctx context.Context) (*audit.VerificationResult, error) {
	s.mu.Lock()
	chain := make([]*audit.Block, len(s.chain))
	copy(chain, s.chain)
	s.mu.Unlock()

	result, err := audit.VerifyChain(chain)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		s.logger.WarnContext(ctx, "audit chain integrity violation",
			"corrupted", len(result.CorruptedBlocks), "breaks", len(result.ChainBreaks))
	}
	return result, nil
}

// Search scans the chain linearly, applying time-range, cycle-id and
// substring filters.
func (s *Service) Search(ctx context.Context, filters Filters) ([]*audit.Block, error) {
	s.mu.Lock()
	chain := make([]*audit.Block, len(s.chain))
	copy(chain, s.chain)
	s.mu.Unlock()

	var matches []*audit.Block
	for _, block := range chain {
		if filters.CycleID != "" && block.CycleID != filters.CycleID {
			continue
		}
		if !filters.Start.IsZero() || !filters.End.IsZero() {
			ts, err := block.Time()
			if err != nil {
				continue
			}
			if !filters.Start.IsZero() && ts.Before(filters.Start) {
				continue
			}
			if !filters.End.IsZero() && ts.After(filters.End) {
				continue
			}
		}
		if filters.ContainsText != "" {
			raw, err := json.Marshal(block)
			if err != nil {
				continue
			}
			if !strings.Contains(string(raw), filters.ContainsText) {
				continue
			}
		}
		matches = append(matches, block)
	}
	return matches, nil
}

// Recent returns the newest blocks, most recent first.
func (s *Service) Recent(limit int) []*audit.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.chain) {
		limit = len(s.chain)
	}
	out := make([]*audit.Block, 0, limit)
	for i := len(s.chain) - 1; i >= len(s.chain)-limit; i-- {
		out = append(out, s.chain[i])
	}
	return out
}

// Cycle returns the block for one cycle id.
func (s *Service) Cycle(cycleID string) (*audit.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, block := range s.chain {
		if block.CycleID == cycleID {
			return block, nil
		}
	}
	return nil, errors.NewNotFoundError(fmt.Sprintf("audit block %s", cycleID))
}

// Length returns the number of blocks on the chain.
func (s *Service) Length() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chain)
}

// GenerateReport summarizes the blocks in a time window and attaches the
// chain's current integrity status. Zero start/end bounds are open.
func (s *Service) GenerateReport(ctx context.Context, start, end time.Time) (*Report, error) {
	integrity, err := s.Verify(ctx)
	if err != nil {
		return nil, err
	}

	blocks, err := s.Search(ctx, Filters{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt:     time.Now().UTC(),
		WindowStart:     start,
		WindowEnd:       end,
		TotalBlocks:     s.Length(),
		BlocksInWindow:  len(blocks),
		Integrity:       integrity,
		ActionBreakdown: make(map[string]int),
	}
	if len(blocks) > 0 {
		report.FirstCycleID = blocks[0].CycleID
		report.LastCycleID = blocks[len(blocks)-1].CycleID
	}

	for _, block := range blocks {
		types, ok := block.Act["types"].([]any)
		if !ok {
			continue
		}
		for _, raw := range types {
			if name, ok := raw.(string); ok {
				report.ActionBreakdown[name]++
			}
		}
	}
	return report, nil
}

// newCycleID yields ids like cycle_20260828_120000_000123, unique at
// microsecond resolution under the append lock.
func newCycleID() string {
	now := time.Now().UTC()
	return fmt.Sprintf("cycle_%s_%06d", now.Format("20060102_150405"), now.Nanosecond()/1000)
}
