package wire

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Window returns data[off:off+n] or a layout error when the range does not fit.
func Window(op string, data []byte, off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off > len(data) || len(data)-off < n {
		return nil, Layoutf(op, "need %d bytes at offset %d, have %d", n, off, len(data))
	}
	return data[off : off+n], nil
}

// Reader is a little-endian cursor with a sticky error.
// After the first failure every read returns the zero value and Err reports it.
type Reader struct {
	op  string
	dec *bin.Decoder
	err error
}

func NewReader(op string, data []byte) *Reader {
	return &Reader{op: op, dec: bin.NewBinDecoder(data)}
}

func (r *Reader) fail(err error) {
	if r.err == nil && err != nil {
		r.err = Layoutf(r.op, "at offset %d: %v", r.dec.Position(), err)
	}
}

func (r *Reader) U8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.fail(err)
	return v
}

func (r *Reader) I8() int8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt8()
	r.fail(err)
	return v
}

// OptionU32 reads a presence byte and, when set, the value.
func (r *Reader) OptionU32() *uint32 {
	switch tag := r.U8(); tag {
	case 0:
		return nil
	case 1:
		v := r.U32()
		return &v
	default:
		if r.err == nil {
			r.err = Protocolf(r.op, "invalid option tag %d", tag)
		}
		return nil
	}
}

// Remaining reports the unread byte count.
func (r *Reader) Remaining() int {
	return r.dec.Remaining()
}

func (r *Reader) Bool() bool {
	return r.U8() != 0
}

func (r *Reader) U16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(bin.LE)
	r.fail(err)
	return v
}

func (r *Reader) U32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(bin.LE)
	r.fail(err)
	return v
}

func (r *Reader) U64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(bin.LE)
	r.fail(err)
	return v
}

func (r *Reader) I64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(bin.LE)
	r.fail(err)
	return v
}

// Key reads a 32-byte public key.
func (r *Reader) Key() solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	b, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	r.fail(err)
	if err != nil {
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}

// Skip advances over padding.
func (r *Reader) Skip(n int) {
	if r.err != nil {
		return
	}
	r.fail(r.dec.SkipBytes(uint(n)))
}

func (r *Reader) Err() error {
	return r.err
}
