package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/anirudhraja/protopeek/schema"
)

// Encoder appends protobuf wire format to a growing buffer. It is the
// inverse of Decoder for the field types in schema.FieldType.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new wire format encoder
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0),
	}
}

// Bytes returns the encoded bytes
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of encoded bytes
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Reset clears the encoder buffer
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// EncodeTag appends a field preamble
func (e *Encoder) EncodeTag(fieldNumber FieldNumber, wireType WireType) {
	e.buf = protowire.AppendTag(e.buf, protowire.Number(fieldNumber), protowire.Type(wireType))
}

// EncodeVarint encodes a uint64 as varint
func (e *Encoder) EncodeVarint(v uint64) {
	e.buf = protowire.AppendVarint(e.buf, v)
}

// EncodeZigZag encodes a signed integer with zigzag encoding
func (e *Encoder) EncodeZigZag(v int64) {
	e.buf = protowire.AppendVarint(e.buf, protowire.EncodeZigZag(v))
}

// EncodeBytes encodes a byte array as length-delimited
func (e *Encoder) EncodeBytes(data []byte) {
	e.buf = protowire.AppendBytes(e.buf, data)
}

// EncodeString encodes a string as length-delimited bytes
func (e *Encoder) EncodeString(s string) {
	e.buf = protowire.AppendString(e.buf, s)
}

// EncodeFixed32 encodes a 32-bit fixed-width value
func (e *Encoder) EncodeFixed32(v uint32) {
	e.buf = protowire.AppendFixed32(e.buf, v)
}

// EncodeFixed64 encodes a 64-bit fixed-width value
func (e *Encoder) EncodeFixed64(v uint64) {
	e.buf = protowire.AppendFixed64(e.buf, v)
}

// EncodeFloat32 encodes a 32-bit float as fixed32
func (e *Encoder) EncodeFloat32(v float32) {
	e.EncodeFixed32(math.Float32bits(v))
}

// Field helpers: preamble plus payload.

func (e *Encoder) UintField(n FieldNumber, v uint64) {
	e.EncodeTag(n, WireVarint)
	e.EncodeVarint(v)
}

func (e *Encoder) SintField(n FieldNumber, v int64) {
	e.EncodeTag(n, WireVarint)
	e.EncodeZigZag(v)
}

func (e *Encoder) StringField(n FieldNumber, s string) {
	e.EncodeTag(n, WireBytes)
	e.EncodeString(s)
}

func (e *Encoder) FloatField(n FieldNumber, v float32) {
	e.EncodeTag(n, WireFixed32)
	e.EncodeFloat32(v)
}

// MessageField appends an already encoded nested message.
func (e *Encoder) MessageField(n FieldNumber, nested []byte) {
	e.EncodeTag(n, WireBytes)
	e.EncodeBytes(nested)
}

// EncodeMessage encodes msg using desc - main entry point. Fields are written
// in ascending field number order.
func EncodeMessage(msg Message, desc schema.Descriptor) ([]byte, error) {
	encoder := NewEncoder()
	if err := encoder.encodeMessage(msg, desc); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

func (e *Encoder) encodeMessage(msg Message, desc schema.Descriptor) error {
	for name := range msg {
		if _, ok := desc.ByName(name); !ok {
			return fmt.Errorf("encoding field %q: not in descriptor", name)
		}
	}

	for _, number := range desc.Numbers() {
		field := desc[number]
		value, ok := msg[field.Name]
		if !ok || value == nil {
			continue
		}
		if err := e.encodeField(FieldNumber(number), field, value); err != nil {
			return fmt.Errorf("encoding field %q: %w", field.Name, err)
		}
	}
	return nil
}

func (e *Encoder) encodeField(n FieldNumber, field *schema.Field, value Value) error {
	if value.Type() != field.Type {
		return fmt.Errorf("expected %s value, got %s", field.Type, value.Type())
	}

	switch v := value.(type) {
	case Uint:
		e.UintField(n, uint64(v))
	case Sint:
		e.SintField(n, int64(v))
	case String:
		e.StringField(n, string(v))
	case Float:
		e.FloatField(n, float32(v))
	case Message:
		nested := NewEncoder()
		if err := nested.encodeMessage(v, field.Message); err != nil {
			return err
		}
		e.MessageField(n, nested.Bytes())
	default:
		return fmt.Errorf("unsupported value %T", value)
	}
	return nil
}
