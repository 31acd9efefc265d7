package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/errors"
)

// GenesisHash is the previous-hash sentinel for the first block in a chain.
const GenesisHash = "0"

// Block is one immutable sense/think/act entry in the audit chain. Blocks are
// created by the ledger, never mutated, never deleted.
type Block struct {
	CycleID      string         `json:"cycle_id"`
	Timestamp    string         `json:"timestamp"`
	Sense        map[string]any `json:"sense"`
	Think        map[string]any `json:"think"`
	Act          map[string]any `json:"act"`
	PreviousHash string         `json:"previous_hash"`
	Hash         string         `json:"hash"`
}

// NewBlock builds a block for one cycle and seals it with its hash.
// Payloads are normalized to plain JSON maps so the canonical form survives a
// storage round trip byte for byte.
func NewBlock(cycleID string, sense, think, act any, previousHash string) (*Block, error) {
	senseMap, err := NormalizePayload(sense)
	if err != nil {
		return nil, errors.Wrap(err, "normalizing sense payload")
	}
	thinkMap, err := NormalizePayload(think)
	if err != nil {
		return nil, errors.Wrap(err, "normalizing think payload")
	}
	actMap, err := NormalizePayload(act)
	if err != nil {
		return nil, errors.Wrap(err, "normalizing act payload")
	}

	b := &Block{
		CycleID:      cycleID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Sense:        senseMap,
		Think:        thinkMap,
		Act:          actMap,
		PreviousHash: previousHash,
	}

	hash, err := b.ComputeHash()
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	return b, nil
}

// ComputeHash returns the SHA-256 over the canonical (key-sorted) JSON of all
// fields except the hash itself. encoding/json writes map keys in sorted
// order at every nesting level, which is exactly the canonical form the chain
// contract requires.
func (b *Block) ComputeHash() (string, error) {
	canonical, err := json.Marshal(map[string]any{
		"cycle_id":      b.CycleID,
		"timestamp":     b.Timestamp,
		"sense":         b.Sense,
		"think":         b.Think,
		"act":           b.Act,
		"previous_hash": b.PreviousHash,
	})
	if err != nil {
		return "", errors.NewInternalError("failed to serialize audit block").WithCause(err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the block's hash and compares it to the stored one.
func (b *Block) Verify() (bool, error) {
	computed, err := b.ComputeHash()
	if err != nil {
		return false, err
	}
	return computed == b.Hash, nil
}

// Time parses the block's timestamp.
func (b *Block) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, b.Timestamp)
}

// NormalizePayload converts an arbitrary payload into a plain JSON object.
// Struct field order is not canonical, so payloads are forced through a JSON
// round trip; the resulting map hashes identically before and after storage.
func NormalizePayload(payload any) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}
	if m, ok := payload.(map[string]any); ok && m == nil {
		return map[string]any{}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("payload must serialize to a JSON object: %w", err)
	}
	if normalized == nil {
		normalized = map[string]any{}
	}
	return normalized, nil
}
