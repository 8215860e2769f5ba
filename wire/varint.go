package wire

// MaxVarintLen is the longest encoding of a 64-bit varint.
const MaxVarintLen = 10

// VarintDecoder handles varint decoding operations
type VarintDecoder struct {
	decoder *Decoder
}

// NewVarintDecoder creates a new varint decoder
func NewVarintDecoder(d *Decoder) *VarintDecoder {
	return &VarintDecoder{decoder: d}
}

// DECODER METHODS

// DecodeVarint decodes a base-128 little-endian varint from the current
// position. Values are exact up to 64 unsigned bits. Negative int32/int64
// values encoded in two's complement come back as their raw uint64 bit
// pattern; no sign reinterpretation is attempted.
func (vd *VarintDecoder) DecodeVarint() (uint64, error) {
	d := vd.decoder
	start := d.pos

	var result uint64
	for i := 0; i < MaxVarintLen; i++ {
		if err := d.span(start, 1); err != nil {
			return 0, err
		}

		b := d.buf[d.pos]
		d.pos++

		// The tenth byte may only contribute bit 63.
		if i == MaxVarintLen-1 && b > 1 {
			return 0, newDecodeError(start, ErrVarintOverflow)
		}

		result |= uint64(b&0x7F) << (7 * uint(i))

		// If MSB is not set, we're done
		if b&0x80 == 0 {
			return result, nil
		}
	}

	return 0, newDecodeError(start, ErrVarintOverflow)
}

// DecodeZigZag decodes a zigzag-encoded signed varint
func (vd *VarintDecoder) DecodeZigZag() (int64, error) {
	v, err := vd.DecodeVarint()
	if err != nil {
		return 0, err
	}
	return DecodeZigZag(v), nil
}

// SkipVarint skips over a varint without decoding it
func (vd *VarintDecoder) SkipVarint() error {
	d := vd.decoder
	start := d.pos
	for i := 0; i < MaxVarintLen; i++ {
		if err := d.span(start, 1); err != nil {
			return err
		}

		b := d.buf[d.pos]
		d.pos++

		if b&0x80 == 0 {
			return nil
		}
	}
	return newDecodeError(start, ErrVarintOverflow)
}

// UTILITY FUNCTIONS

// DecodeZigZag maps a zigzag-encoded value back to its signed form:
// 0 → 0, 1 → -1, 2 → 1, 3 → -2, ...
func DecodeZigZag(raw uint64) int64 {
	if raw&1 == 1 {
		return -1 - int64(raw>>1)
	}
	return int64(raw >> 1)
}

// EncodeZigZag is the inverse of DecodeZigZag.
func EncodeZigZag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// VarintSize returns the number of bytes needed to encode the given varint
func VarintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// Convenience methods for direct access

// ReadVarint reads one varint at the cursor.
func (d *Decoder) ReadVarint() (uint64, error) {
	return NewVarintDecoder(d).DecodeVarint()
}

// ReadZigZag reads one zigzag-encoded varint at the cursor.
func (d *Decoder) ReadZigZag() (int64, error) {
	return NewVarintDecoder(d).DecodeZigZag()
}
