package entry

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"manifest/infra/memory"
)

const (
	// Frame:
	// [type:1][seq:8][time:8][len:4][payload][crc:4]
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4

	// MaxPayload bounds a single frame.
	MaxPayload = 1 << 20
)

var framePool = memory.NewBufferPool(4<<10, 64<<10)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// SyncEveryWrite fsyncs after each append.
	SyncEveryWrite bool
}

// WAL is the append-only instruction journal. Every instruction is written
// here before it is sent to a ledger.
type WAL struct {
	mu sync.Mutex

	dir        string
	segSize    int64
	segDur     time.Duration
	syncWrites bool
	current    *segment
	lastRotate time.Time
}

// Open resumes appending to the newest segment in cfg.Dir.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create journal dir")
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 4 << 20
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(files) > 0 {
		index = segmentIndex(files[len(files)-1])
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, errors.Wrap(err, "open segment")
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		syncWrites: cfg.SyncEveryWrite,
		current:    seg,
		lastRotate: time.Now(),
	}, nil
}

func (w *WAL) Dir() string { return w.dir }

func (w *WAL) Append(r *Record) error {
	if len(r.Data) > MaxPayload {
		return errors.Errorf("journal: payload of %d bytes exceeds %d", len(r.Data), MaxPayload)
	}
	payloadLen := uint32(len(r.Data))
	n := headerSize + int(payloadLen) + crcSize

	bp := framePool.Get()
	defer framePool.Put(bp)
	if cap(*bp) < n {
		*bp = make([]byte, 0, n)
	}
	buf := (*bp)[:n]
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+payloadLen:], crc)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.current.append(buf); err != nil {
		return errors.Wrap(err, "journal append")
	}
	if w.syncWrites {
		if err := w.current.sync(); err != nil {
			return errors.Wrap(err, "journal sync")
		}
	}

	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) shouldRotate() bool {
	if w.current.offset >= w.segSize {
		return true
	}
	return w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return errors.Wrap(err, "journal sync")
	}
	_ = w.current.close()

	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		return errors.Wrap(err, "journal rotate")
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// TruncateBefore removes closed segments whose records all have a sequence
// at or below seq. The active segment, the newest segment on disk and the
// newest segment holding records are kept, so a later Replay still sees the
// highest sequence ever written.
func (w *WAL) TruncateBefore(seq uint64) (removed int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := listSegments(w.dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}

	highest := make([]uint64, len(files))
	keep := -1
	for i, path := range files {
		if highest[i], err = maxSeqInSegment(path); err != nil {
			highest[i] = ^uint64(0)
			continue
		}
		if highest[i] > 0 {
			keep = i
		}
	}

	for i, path := range files {
		idx := segmentIndex(path)
		if idx == w.current.index || i == len(files)-1 || i == keep {
			continue
		}
		if highest[i] <= seq {
			if err := os.Remove(path); err != nil {
				return removed, errors.Wrapf(err, "remove %s", path)
			}
			removed++
		}
	}
	return removed, nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}
