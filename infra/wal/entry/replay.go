package entry

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ErrCorrupt marks a frame whose checksum or length does not verify.
var ErrCorrupt = errors.New("journal: corrupt frame")

type ReplayHandler func(*Record) error

// Replay feeds every record to fn in sequence order and returns the last
// sequence seen. A result record may repeat the sequence of the record
// before it; any other repeat is an error. A frame cut short at the end of the newest segment is
// treated as an interrupted write and ends the replay.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := listSegments(dir)
	if err != nil {
		return 0, errors.Wrap(err, "list segments")
	}

	for i, path := range files {
		last := i == len(files)-1
		lastSeq, err = replaySegment(path, last, lastSeq, fn)
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, tail bool, lastSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			return lastSeq, nil
		}
		if err == io.ErrUnexpectedEOF && tail {
			return lastSeq, nil
		}
		if err != nil {
			return lastSeq, errors.Wrapf(err, "read %s", path)
		}

		if rec.Seq < lastSeq || (rec.Seq == lastSeq && rec.Type != RecordResult) {
			return lastSeq, errors.Errorf("%s: non-monotonic seq %d after %d", path, rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])
	if l > MaxPayload {
		return nil, errors.Wrapf(ErrCorrupt, "payload length %d", l)
	}

	data := make([]byte, int(l)+crcSize)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])
	if !CRC32Valid(append(header, payload...), crc) {
		return nil, errors.Wrapf(ErrCorrupt, "seq %d checksum", seq)
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, nil
}
