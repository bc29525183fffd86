package exit

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

// -------------------- State --------------------

// State tracks a submission through event publication.
type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Submission is the outcome of sending one journaled transaction.
type Submission struct {
	Seq          uint64
	Ledger       string
	Kind         string
	Market       string
	Signature    string
	Instructions uint32
	// Error is the ledger's rejection, empty when the send succeeded.
	Error string

	State       State
	Retries     uint32
	Created     int64
	LastAttempt int64
}

func (s Submission) Rejected() bool { return s.Error != "" }

// record is the Borsh layout stored under each key.
type record struct {
	Seq          uint64
	Ledger       string
	Kind         string
	Market       string
	Signature    string
	Instructions uint32
	Error        string
	State        uint8
	Retries      uint32
	Created      int64
	LastAttempt  int64
}

func encodeRecord(s Submission) ([]byte, error) {
	return bin.MarshalBorsh(&record{
		Seq:          s.Seq,
		Ledger:       s.Ledger,
		Kind:         s.Kind,
		Market:       s.Market,
		Signature:    s.Signature,
		Instructions: s.Instructions,
		Error:        s.Error,
		State:        uint8(s.State),
		Retries:      s.Retries,
		Created:      s.Created,
		LastAttempt:  s.LastAttempt,
	})
}

func decodeRecord(b []byte) (Submission, error) {
	var r record
	if err := bin.UnmarshalBorsh(&r, b); err != nil {
		return Submission{}, errors.Wrap(err, "decode outbox record")
	}
	return Submission{
		Seq:          r.Seq,
		Ledger:       r.Ledger,
		Kind:         r.Kind,
		Market:       r.Market,
		Signature:    r.Signature,
		Instructions: r.Instructions,
		Error:        r.Error,
		State:        State(r.State),
		Retries:      r.Retries,
		Created:      r.Created,
		LastAttempt:  r.LastAttempt,
	}, nil
}

// -------------------- WAL --------------------

// ExitWAL is the pebble-backed outbox between ledger submission and event
// publication.
type ExitWAL struct {
	db *pebble.DB
	// mu orders PutNew calls so the watermark only rises.
	mu sync.Mutex
}

func Open(dir string) (*ExitWAL, error) {
	return OpenWithOptions(dir, &pebble.Options{})
}

// OpenWithOptions lets tests run on an in-memory filesystem.
func OpenWithOptions(dir string, opts *pebble.Options) (*ExitWAL, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "open outbox")
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// ErrDuplicate is returned by PutNew when seq is already recorded.
var ErrDuplicate = errors.New("outbox: sequence already recorded")

// PutNew records a submission in state NEW and raises the watermark. An
// existing record for the same sequence is never replaced.
func (w *ExitWAL) PutNew(s Submission) error {
	s.State = StateNew
	s.Retries = 0
	s.LastAttempt = 0
	if s.Created == 0 {
		s.Created = time.Now().UnixNano()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, closer, err := w.db.Get(keyFor(s.Seq)); err == nil {
		_ = closer.Close()
		return errors.Wrapf(ErrDuplicate, "seq %d", s.Seq)
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return errors.Wrapf(err, "outbox get %d", s.Seq)
	}
	high, err := w.Watermark()
	if err != nil {
		return err
	}

	val, err := encodeRecord(s)
	if err != nil {
		return errors.Wrap(err, "encode outbox record")
	}
	b := w.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyFor(s.Seq), val, nil); err != nil {
		return err
	}
	if s.Seq > high {
		if err := b.Set([]byte(watermarkKey), []byte(strconv.FormatUint(s.Seq, 10)), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Watermark is the highest sequence ever recorded. Truncation does not lower
// it.
func (w *ExitWAL) Watermark() (uint64, error) {
	val, closer, err := w.db.Get([]byte(watermarkKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "outbox watermark")
	}
	defer closer.Close()
	return strconv.ParseUint(string(val), 10, 64)
}

func (w *ExitWAL) MarkSent(seq uint64) error {
	return w.update(seq, func(s *Submission) {
		s.State = StateSent
		s.LastAttempt = time.Now().UnixNano()
	})
}

func (w *ExitWAL) MarkAcked(seq uint64) error {
	return w.update(seq, func(s *Submission) {
		s.State = StateAcked
	})
}

// MarkFailed counts the attempt. Failed entries are retried until maxRetries
// is reached; after that they stay FAILED.
func (w *ExitWAL) MarkFailed(seq uint64, maxRetries uint32) error {
	return w.update(seq, func(s *Submission) {
		s.Retries++
		s.LastAttempt = time.Now().UnixNano()
		if s.Retries >= maxRetries {
			s.State = StateFailed
		} else {
			s.State = StateNew
		}
	})
}

// Get returns the current record for seq.
func (w *ExitWAL) Get(seq uint64) (Submission, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if err != nil {
		return Submission{}, errors.Wrapf(err, "outbox get %d", seq)
	}
	defer closer.Close()

	return decodeRecord(val)
}

// TruncateAckedUpTo removes ACKED records up to and including seq.
func (w *ExitWAL) TruncateAckedUpTo(seq uint64) (int, error) {
	b := w.db.NewBatch()
	defer b.Close()

	n := 0
	err := w.scan(func(s Submission) error {
		if s.Seq > seq {
			return errStopScan
		}
		if s.State != StateAcked {
			return nil
		}
		n++
		return b.Delete(keyFor(s.Seq), nil)
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, b.Commit(pebble.Sync)
}

func (w *ExitWAL) put(s Submission) error {
	val, err := encodeRecord(s)
	if err != nil {
		return errors.Wrap(err, "encode outbox record")
	}
	return w.db.Set(keyFor(s.Seq), val, pebble.Sync)
}

func (w *ExitWAL) update(seq uint64, fn func(*Submission)) error {
	s, err := w.Get(seq)
	if err != nil {
		return err
	}
	fn(&s)
	return w.put(s)
}

// -------------------- Scan --------------------

var errStopScan = errors.New("stop scan")

// ScanByState iterates records in the given state in sequence order.
func (w *ExitWAL) ScanByState(state State, fn func(Submission) error) error {
	return w.scan(func(s Submission) error {
		if s.State != state {
			return nil
		}
		return fn(s)
	})
}

// Count returns the number of records per state.
func (w *ExitWAL) Count() (map[State]int, error) {
	out := make(map[State]int)
	err := w.scan(func(s Submission) error {
		out[s.State]++
		return nil
	})
	return out, err
}

func (w *ExitWAL) scan(fn func(Submission) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		s, err := decodeRecord(iter.Value())
		if err != nil {
			return errors.Wrapf(err, "key %s", iter.Key())
		}
		if seq, err := parseKey(iter.Key()); err != nil || seq != s.Seq {
			return errors.Errorf("outbox key %s does not match record seq %d", iter.Key(), s.Seq)
		}
		if err := fn(s); err != nil {
			if err == errStopScan {
				return nil
			}
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const (
	keyPrefix    = "sub/"
	watermarkKey = "meta/watermark"
)

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(string(b), keyPrefix), 10, 64)
}
