package entry

import "time"

// RecordType says which ledger the journaled instruction was bound for, or
// marks the ledger's answer to an earlier record.
type RecordType uint8

const (
	RecordBase RecordType = iota + 1
	RecordRollup
	// RecordResult settles the record with the same sequence.
	RecordResult
)

func (t RecordType) String() string {
	switch t {
	case RecordBase:
		return "base"
	case RecordRollup:
		return "rollup"
	case RecordResult:
		return "result"
	default:
		return "unknown"
	}
}

// Record is one journaled instruction payload.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
