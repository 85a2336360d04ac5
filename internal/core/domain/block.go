package domain

import "time"

// BlockRecord is one row of the append-only block sequence.
//
// Number is the unique ordering key. The store holds at most one logical
// record per Number; conflicting writes are resolved last-write-wins.
// Records are replaced wholesale on re-fetch, never partially updated.
type BlockRecord struct {
	Number           uint64
	Timestamp        time.Time
	GasLimit         uint64
	GasUsed          uint64
	BaseFeePerGas    *uint64 // nil before the London fork
	TransactionCount int
	Difficulty       uint64
	TotalDifficulty  *string // decimal string, exceeds uint64 range
	Size             uint64
	BlobGasUsed      *uint64 // nil before the Cancun fork
	ExcessBlobGas    *uint64
}

// Notification is the lightweight stub delivered by the live stream.
// It references a block by number; the full record is fetched separately.
type Notification struct {
	Number uint64
	Hash   string
}
