package wire

// DefaultMaxDepth bounds how deeply TypeMessage fields may nest.
const DefaultMaxDepth = 100

// Config controls optional decoder behaviors. The zero value dispatches on
// the declared field type alone and does not bound nesting.
type Config struct {
	// StrictWireType: when true, a known field whose wire type disagrees with
	// its declared type (e.g. a varint on the wire for a string field) fails
	// with ErrWireTypeMismatch. When false, the declared type decides how the
	// payload is read and the wire type is ignored for known fields.
	StrictWireType bool

	// MaxDepth: maximum number of nested ReadMessage calls on one cursor,
	// counting the outermost. Zero or negative disables the check.
	MaxDepth int
}

// DefaultConfig returns the configuration used by NewDecoder.
func DefaultConfig() Config {
	return Config{MaxDepth: DefaultMaxDepth}
}
