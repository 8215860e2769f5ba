package wire

import (
	"fmt"
	"math"

	"github.com/anirudhraja/protopeek/schema"
)

// Decoder is a read cursor over an immutable protobuf buffer. The cursor only
// moves forward. Nested messages are read by the same Decoder, so a
// ReadMessage call leaves the cursor just past the message it consumed.
//
// A Decoder is not safe for concurrent use; decode independent buffers with
// independent Decoders.
type Decoder struct {
	buf    []byte
	pos    int
	limit  int // end of the message being read; len(buf) outside ReadMessage
	depth  int
	config Config
}

// NewDecoder creates a new wire format decoder positioned at the start of data
func NewDecoder(data []byte) *Decoder {
	return NewDecoderWithConfig(data, 0, DefaultConfig())
}

// NewDecoderAt creates a decoder whose cursor starts at offset. The offset is
// not validated here; an offset outside data fails the first read with
// ErrOutOfBounds.
func NewDecoderAt(data []byte, offset int) *Decoder {
	return NewDecoderWithConfig(data, offset, DefaultConfig())
}

// NewDecoderWithConfig creates a decoder at offset with explicit options
func NewDecoderWithConfig(data []byte, offset int, config Config) *Decoder {
	return &Decoder{
		buf:    data,
		pos:    offset,
		limit:  len(data),
		config: config,
	}
}

// DecodeMessage decodes the whole of data using desc - main entry point
func DecodeMessage(data []byte, desc schema.Descriptor) (Message, error) {
	return NewDecoder(data).ReadMessage(len(data), desc)
}

// DecodeMessageWithConfig is DecodeMessage with explicit options.
func DecodeMessageWithConfig(data []byte, desc schema.Descriptor, config Config) (Message, error) {
	return NewDecoderWithConfig(data, 0, config).ReadMessage(len(data), desc)
}

// Offset returns the position of the next unread byte.
func (d *Decoder) Offset() int {
	return d.pos
}

// Remaining returns how many bytes can still be read before the end of the
// current message, or of the buffer outside ReadMessage.
func (d *Decoder) Remaining() int {
	if d.pos < 0 || d.pos > d.limit {
		return 0
	}
	return d.limit - d.pos
}

// span checks that the n bytes following the cursor can be read without
// crossing the end of the current message or the buffer. Failures are
// reported at offset start.
func (d *Decoder) span(start int, n uint64) error {
	if d.pos < 0 || d.pos > len(d.buf) {
		return newDecodeError(d.pos, ErrOutOfBounds)
	}
	switch {
	case n <= uint64(d.limit-d.pos):
		return nil
	case n <= uint64(len(d.buf)-d.pos):
		return newDecodeError(start, ErrTruncatedMessage)
	default:
		return newDecodeError(start, ErrOutOfBounds)
	}
}

// ReadMessage decodes the length bytes following the cursor as a message
// described by desc. Fields missing from desc are skipped. When a field
// repeats, the last occurrence wins. On error the partial message is
// discarded.
func (d *Decoder) ReadMessage(length int, desc schema.Descriptor) (Message, error) {
	if d.pos < 0 || d.pos > len(d.buf) || length < 0 {
		return nil, newDecodeError(d.pos, ErrOutOfBounds)
	}
	if length > d.limit-d.pos {
		return nil, newDecodeError(d.pos, ErrTruncatedMessage)
	}

	outer := d.limit
	d.limit = d.pos + length
	d.depth++
	defer func() {
		d.limit = outer
		d.depth--
	}()
	if d.config.MaxDepth > 0 && d.depth > d.config.MaxDepth {
		return nil, newDecodeError(d.pos, ErrDepthExceeded)
	}

	msg := make(Message)
	for d.pos < d.limit {
		preamble, err := d.ReadVarint()
		if err != nil {
			return nil, err
		}
		fieldNumber, wireType := ParseTag(Tag(preamble))

		var field *schema.Field
		if preamble>>3 <= math.MaxInt32 {
			field, _ = desc.Lookup(int32(fieldNumber))
		}

		if field == nil {
			// Unknown field - skip it
			if err := d.SkipField(wireType); err != nil {
				return nil, withField(err, fieldNumber, wireType, "")
			}
			continue
		}

		value, err := d.readField(field, wireType)
		if err != nil {
			return nil, withField(err, fieldNumber, wireType, field.Name)
		}
		msg[field.Name] = value
	}

	return msg, nil
}

// readField routes to the reader for the declared field type
func (d *Decoder) readField(field *schema.Field, wireType WireType) (Value, error) {
	if d.config.StrictWireType {
		if want, ok := expectedWireType(field.Type); ok && want != wireType {
			return nil, newDecodeError(d.pos, fmt.Errorf("%w: %s field encoded as %s", ErrWireTypeMismatch, field.Type, wireType))
		}
	}

	switch field.Type {
	case schema.TypeUint:
		v, err := NewVarintDecoder(d).DecodeVarint()
		if err != nil {
			return nil, err
		}
		return Uint(v), nil
	case schema.TypeSint:
		v, err := NewVarintDecoder(d).DecodeZigZag()
		if err != nil {
			return nil, err
		}
		return Sint(v), nil
	case schema.TypeString:
		s, err := NewBytesDecoder(d).DecodeString()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case schema.TypeFloat:
		f, err := NewFixedDecoder(d).DecodeFloat32()
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	case schema.TypeMessage:
		start := d.pos
		length, err := NewVarintDecoder(d).DecodeVarint()
		if err != nil {
			return nil, err
		}
		if length > uint64(d.limit-d.pos) {
			return nil, newDecodeError(start, ErrTruncatedMessage)
		}
		nested, err := d.ReadMessage(int(length), field.Message)
		if err != nil {
			return nil, err
		}
		return nested, nil
	default:
		return nil, newDecodeError(d.pos, fmt.Errorf("%w: %v", ErrInvalidFieldType, field.Type))
	}
}

// SkipField advances past one value of the given wire type without
// interpreting it. Groups are not supported.
func (d *Decoder) SkipField(wireType WireType) error {
	switch wireType {
	case WireVarint:
		return NewVarintDecoder(d).SkipVarint()
	case WireFixed64:
		return NewFixedDecoder(d).Skip(Fixed64Size)
	case WireBytes:
		return NewBytesDecoder(d).SkipBytes()
	case WireFixed32:
		return NewFixedDecoder(d).Skip(Fixed32Size)
	default:
		return newDecodeError(d.pos, fmt.Errorf("%w: %s", ErrUnsupportedWireType, wireType))
	}
}

// expectedWireType returns the wire type a field of type t is encoded with.
func expectedWireType(t schema.FieldType) (WireType, bool) {
	switch t {
	case schema.TypeUint, schema.TypeSint:
		return WireVarint, true
	case schema.TypeString, schema.TypeMessage:
		return WireBytes, true
	case schema.TypeFloat:
		return WireFixed32, true
	default:
		return 0, false
	}
}
