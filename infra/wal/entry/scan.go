package entry

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// maxSeqInSegment returns the highest sequence in a closed segment. Frames
// are walked by their length field only; checksums are left to Replay.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr [headerSize]byte
	var highest uint64
	for {
		_, err := io.ReadFull(r, hdr[:])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return highest, nil
		}
		if err != nil {
			return highest, errors.Wrapf(err, "scan %s", path)
		}

		highest = max(highest, binary.BigEndian.Uint64(hdr[1:9]))
		skip := int(binary.BigEndian.Uint32(hdr[17:21])) + crcSize
		if _, err := r.Discard(skip); err != nil {
			return highest, nil
		}
	}
}
