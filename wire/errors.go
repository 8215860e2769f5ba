package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Structural decode failures. Every error returned by a Decoder wraps one of
// these, so callers can test with errors.Is.
var (
	ErrOutOfBounds         = errors.New("read past end of buffer")
	ErrTruncatedMessage    = errors.New("field extends past end of message")
	ErrUnsupportedWireType = errors.New("unsupported wire type")
	ErrVarintOverflow      = errors.New("varint overflows 64 bits")
	ErrWireTypeMismatch    = errors.New("wire type does not match field type")
	ErrInvalidFieldType    = errors.New("invalid field type")
	ErrDepthExceeded       = errors.New("message nesting too deep")
)

// DecodeError reports where a decode failed: the byte offset of the failing
// read, the field being decoded when known, and the path of field names
// leading to it from the outermost message.
type DecodeError struct {
	FieldPath   []string // e.g., ["user", "address", "city"]
	Offset      int
	FieldNumber FieldNumber
	WireType    WireType
	Err         error // underlying sentinel

	hasField bool
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decoding error at ")
	if len(e.FieldPath) > 0 {
		fmt.Fprintf(&b, "proto path %s, ", strings.Join(e.FieldPath, "."))
	}
	fmt.Fprintf(&b, "offset %d", e.Offset)
	if e.hasField {
		fmt.Fprintf(&b, " (field %d, wire type %s)", e.FieldNumber, e.WireType)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(offset int, err error) *DecodeError {
	return &DecodeError{Offset: offset, Err: err}
}

// withField attaches field context to err. The innermost field wins for the
// number and wire type; every named level is prefixed onto the path.
func withField(err error, number FieldNumber, wireType WireType, name string) error {
	if err == nil {
		return nil
	}

	var de *DecodeError
	if !errors.As(err, &de) {
		de = &DecodeError{Err: err}
	}
	if !de.hasField {
		de.FieldNumber = number
		de.WireType = wireType
		de.hasField = true
	}
	if name != "" {
		de.FieldPath = append([]string{name}, de.FieldPath...)
	}
	return de
}
