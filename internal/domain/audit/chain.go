package audit

// FaultKind categorizes an integrity violation found during verification.
type FaultKind string

const (
	FaultHashMismatch      FaultKind = "hash_mismatch"
	FaultPreviousHashBreak FaultKind = "previous_hash_mismatch"
)

// BlockFault pinpoints one violated block.
type BlockFault struct {
	Index   int       `json:"index"`
	CycleID string    `json:"cycle_id"`
	Kind    FaultKind `json:"kind"`
	Reason  string    `json:"reason"`
}

// VerificationResult reports both fault classes from a single verification
// pass: in-place tampering (corrupted blocks) and reordering or deletion
// (chain breaks).
type VerificationResult struct {
	Valid           bool         `json:"valid"`
	TotalBlocks     int          `json:"total_blocks"`
	CorruptedBlocks []BlockFault `json:"corrupted_blocks"`
	ChainBreaks     []BlockFault `json:"chain_breaks"`
}

// VerifyChain checks every block's stored hash against a recomputation and,
// independently, every block's previous-hash linkage. Both checks run so one
// call reports both fault classes. The chain is never repaired.
func VerifyChain(blocks []*Block) (*VerificationResult, error) {
	result := &VerificationResult{
		Valid:           true,
		TotalBlocks:     len(blocks),
		CorruptedBlocks: []BlockFault{},
		ChainBreaks:     []BlockFault{},
	}

	for i, block := range blocks {
		ok, err := block.Verify()
		if err != nil {
			return nil, err
		}
		if !ok {
			result.CorruptedBlocks = append(result.CorruptedBlocks, BlockFault{
				Index:   i,
				CycleID: block.CycleID,
				Kind:    FaultHashMismatch,
				Reason:  "stored hash does not match recomputed hash",
			})
		}

		expectedPrev := GenesisHash
		if i > 0 {
			expectedPrev = blocks[i-1].Hash
		}
		if block.PreviousHash != expectedPrev {
			result.ChainBreaks = append(result.ChainBreaks, BlockFault{
				Index:   i,
				CycleID: block.CycleID,
				Kind:    FaultPreviousHashBreak,
				Reason:  "previous_hash does not match preceding block",
			})
		}
	}

	result.Valid = len(result.CorruptedBlocks) == 0 && len(result.ChainBreaks) == 0
	return result, nil
}
