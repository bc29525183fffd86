package wire

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
)

// OptionU32Len is the encoded size of an Option<u32> for a given presence.
func OptionU32Len(v *uint32) int {
	if v == nil {
		return 1
	}
	return 5
}

// Writer is a little-endian encoder over a pre-sized buffer with a sticky error.
type Writer struct {
	op   string
	size int
	buf  *bytes.Buffer
	enc  *bin.Encoder
	err  error
}

// NewWriter allocates exactly size bytes up front. Finish fails if the
// encoded length does not match.
func NewWriter(op string, size int) *Writer {
	buf := new(bytes.Buffer)
	buf.Grow(size)
	return &Writer{op: op, size: size, buf: buf, enc: bin.NewBinEncoder(buf)}
}

func (w *Writer) fail(err error) {
	if w.err == nil && err != nil {
		w.err = Rangef(w.op, "encode: %v", err)
	}
}

func (w *Writer) U8(v uint8) {
	if w.err == nil {
		w.fail(w.enc.WriteUint8(v))
	}
}

func (w *Writer) I8(v int8) {
	if w.err == nil {
		w.fail(w.enc.WriteInt8(v))
	}
}

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

func (w *Writer) U32(v uint32) {
	if w.err == nil {
		w.fail(w.enc.WriteUint32(v, bin.LE))
	}
}

func (w *Writer) U64(v uint64) {
	if w.err == nil {
		w.fail(w.enc.WriteUint64(v, bin.LE))
	}
}

// OptionU32 writes a presence byte followed by the value when present.
func (w *Writer) OptionU32(v *uint32) {
	if v == nil {
		w.U8(0)
		return
	}
	w.U8(1)
	w.U32(*v)
}

// Finish returns the encoded bytes.
func (w *Writer) Finish() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.buf.Len() != w.size {
		return nil, Rangef(w.op, "encoded %d bytes, sized for %d", w.buf.Len(), w.size)
	}
	return w.buf.Bytes(), nil
}
