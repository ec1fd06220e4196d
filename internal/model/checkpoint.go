package model

// Checkpoint is the durable (block, log index) cursor. Every log at or before
// it has been applied to the ledger and must never be reapplied.
type Checkpoint struct {
	Block    uint64 `json:"block"`
	LogIndex uint64 `json:"log_index"`
}

// Covers reports whether a log at (block, logIndex) is at or before the
// checkpoint under lexicographic order, i.e. already applied.
func (c Checkpoint) Covers(block, logIndex uint64) bool {
	if block != c.Block {
		return block < c.Block
	}
	return logIndex <= c.LogIndex
}
