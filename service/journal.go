package service

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	exitwal "manifest/infra/wal/exit"
)

// JournalEntry is the payload of one journal record: every instruction of a
// transaction, as it was about to be sent.
type JournalEntry struct {
	Kind         string
	Market       solana.PublicKey
	Instructions []JournalInstruction
}

type JournalInstruction struct {
	Program solana.PublicKey
	Data    []byte
}

func newJournalEntry(kind string, market solana.PublicKey, ixs []solana.Instruction) (JournalEntry, error) {
	e := JournalEntry{Kind: kind, Market: market, Instructions: make([]JournalInstruction, 0, len(ixs))}
	for i, ix := range ixs {
		data, err := ix.Data()
		if err != nil {
			return JournalEntry{}, errors.Wrapf(err, "instruction %d data", i)
		}
		e.Instructions = append(e.Instructions, JournalInstruction{Program: ix.ProgramID(), Data: data})
	}
	return e, nil
}

func (e JournalEntry) encode() ([]byte, error) {
	b, err := bin.MarshalBorsh(&e)
	return b, errors.Wrap(err, "encode journal entry")
}

// DecodeJournalEntry parses a journal record payload.
func DecodeJournalEntry(b []byte) (JournalEntry, error) {
	var e JournalEntry
	if err := bin.UnmarshalBorsh(&e, b); err != nil {
		return JournalEntry{}, errors.Wrap(err, "decode journal entry")
	}
	return e, nil
}

// JournalResult is the payload of a result record: the ledger's answer to
// the entry journaled under the same sequence.
type JournalResult struct {
	Ledger       string
	Kind         string
	Market       string
	Signature    string
	Error        string
	Instructions uint32
	Created      int64
}

func (r JournalResult) encode() ([]byte, error) {
	b, err := bin.MarshalBorsh(&r)
	return b, errors.Wrap(err, "encode journal result")
}

// DecodeJournalResult parses a result record payload.
func DecodeJournalResult(b []byte) (JournalResult, error) {
	var r JournalResult
	if err := bin.UnmarshalBorsh(&r, b); err != nil {
		return JournalResult{}, errors.Wrap(err, "decode journal result")
	}
	return r, nil
}

func (r JournalResult) submission(seq uint64) exitwal.Submission {
	return exitwal.Submission{
		Seq:          seq,
		Ledger:       r.Ledger,
		Kind:         r.Kind,
		Market:       r.Market,
		Signature:    r.Signature,
		Error:        r.Error,
		Instructions: r.Instructions,
		Created:      r.Created,
	}
}
