package wire

import (
	"encoding/binary"
	"math"
)

// Sizes of the fixed-width wire types.
const (
	Fixed32Size = 4
	Fixed64Size = 8
)

// FixedDecoder handles fixed-width decoding operations
type FixedDecoder struct {
	decoder *Decoder
}

// NewFixedDecoder creates a new fixed decoder
func NewFixedDecoder(d *Decoder) *FixedDecoder {
	return &FixedDecoder{decoder: d}
}

// DECODER METHODS

// DecodeFixed returns a view of the next size bytes and advances past them.
// The view aliases the decoder's buffer and is capped so that appending to it
// cannot write into the buffer.
func (fd *FixedDecoder) DecodeFixed(size int) ([]byte, error) {
	d := fd.decoder
	if size < 0 {
		return nil, newDecodeError(d.pos, ErrOutOfBounds)
	}
	if err := d.span(d.pos, uint64(size)); err != nil {
		return nil, err
	}

	view := d.buf[d.pos : d.pos+size : d.pos+size]
	d.pos += size
	return view, nil
}

// DecodeFloat32 decodes a little-endian IEEE-754 single from fixed32 data
func (fd *FixedDecoder) DecodeFloat32() (float32, error) {
	b, err := fd.DecodeFixed(Fixed32Size)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// Skip advances past size bytes without reading them.
func (fd *FixedDecoder) Skip(size int) error {
	_, err := fd.DecodeFixed(size)
	return err
}

// Convenience methods for direct access

// ReadFixed returns a little-endian view of the next size bytes.
func (d *Decoder) ReadFixed(size int) ([]byte, error) {
	return NewFixedDecoder(d).DecodeFixed(size)
}

// ReadFloat32 reads a fixed32 payload as a float.
func (d *Decoder) ReadFloat32() (float32, error) {
	return NewFixedDecoder(d).DecodeFloat32()
}
