package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowBounds(t *testing.T) {
	data := make([]byte, 10)

	w, err := Window("test", data, 2, 8)
	require.NoError(t, err)
	assert.Len(t, w, 8)

	_, err = Window("test", data, 3, 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLayout))
	assert.False(t, errors.Is(err, ErrRange))

	_, err = Window("test", data, -1, 1)
	assert.True(t, errors.Is(err, ErrLayout))
}

func TestReaderLittleEndianAndStickyError(t *testing.T) {
	data := []byte{
		0x01,
		0x02, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	r := NewReader("test", data)
	assert.Equal(t, uint8(1), r.U8())
	assert.Equal(t, uint32(2), r.U32())
	assert.Equal(t, uint64(3), r.U64())
	require.NoError(t, r.Err())

	assert.Zero(t, r.U32())
	require.Error(t, r.Err())
	assert.True(t, errors.Is(r.Err(), ErrLayout))

	// stays failed
	assert.Zero(t, r.U8())
}

func TestWriterOptionAndFinish(t *testing.T) {
	hint := uint32(7)
	w := NewWriter("test", 1+OptionU32Len(&hint)+OptionU32Len(nil))
	w.U8(9)
	w.OptionU32(&hint)
	w.OptionU32(nil)

	out, err := w.Finish()
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 1, 7, 0, 0, 0, 0}, out)
}

func TestWriterSizeMismatch(t *testing.T) {
	w := NewWriter("test", 4)
	w.U8(1)
	_, err := w.Finish()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRange))
}

func TestErrorString(t *testing.T) {
	err := Layoutf("parse header", "need %d bytes", 256)
	assert.Equal(t, "parse header: layout error: need 256 bytes", err.Error())
	assert.Equal(t, "traversal", KindTraversal.String())
}
