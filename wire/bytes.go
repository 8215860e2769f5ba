package wire

import "unicode/utf8"

// BytesDecoder handles length-delimited bytes decoding operations
type BytesDecoder struct {
	decoder *Decoder
}

// NewBytesDecoder creates a new bytes decoder
func NewBytesDecoder(d *Decoder) *BytesDecoder {
	return &BytesDecoder{decoder: d}
}

// DECODER METHODS

// DecodeRawBytes decodes bytes without copying (shares buffer)
func (bd *BytesDecoder) DecodeRawBytes() ([]byte, error) {
	d := bd.decoder
	start := d.pos

	length, err := NewVarintDecoder(d).DecodeVarint()
	if err != nil {
		return nil, err
	}
	if err := d.span(start, length); err != nil {
		return nil, err
	}

	n := int(length)
	data := d.buf[d.pos : d.pos+n : d.pos+n]
	d.pos += n
	return data, nil
}

// DecodeBytes decodes a length-delimited byte array
func (bd *BytesDecoder) DecodeBytes() ([]byte, error) {
	raw, err := bd.DecodeRawBytes()
	if err != nil {
		return nil, err
	}

	// Copy the data to avoid sharing the underlying buffer
	data := make([]byte, len(raw))
	copy(data, raw)
	return data, nil
}

// DecodeString decodes a length-delimited UTF-8 string. Each byte that is not
// part of a valid UTF-8 sequence becomes U+FFFD. This differs from WHATWG
// TextDecoder, which replaces a maximal invalid subpart with a single U+FFFD:
// E2 82 'a' reads here as "\uFFFD\uFFFDa", there as "\uFFFDa".
func (bd *BytesDecoder) DecodeString() (string, error) {
	raw, err := bd.DecodeRawBytes()
	if err != nil {
		return "", err
	}

	s := string(raw)
	if !utf8.ValidString(s) {
		s = string([]rune(s))
	}
	return s, nil
}

// SkipBytes skips over a length-delimited byte array
func (bd *BytesDecoder) SkipBytes() error {
	_, err := bd.DecodeRawBytes()
	return err
}

// Convenience methods for direct access

// ReadString reads a length-prefixed string at the cursor.
func (d *Decoder) ReadString() (string, error) {
	return NewBytesDecoder(d).DecodeString()
}

// ReadBytes reads a length-prefixed byte payload at the cursor.
func (d *Decoder) ReadBytes() ([]byte, error) {
	return NewBytesDecoder(d).DecodeBytes()
}
