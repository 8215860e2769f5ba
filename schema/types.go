package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType is the decoded shape of a field. The set is closed: every switch
// over FieldType in this module handles each constant below.
type FieldType int

const (
	TypeUint    FieldType = iota // base-128 varint, unsigned
	TypeSint                     // zig-zag varint
	TypeString                   // length-delimited UTF-8
	TypeFloat                    // fixed32, IEEE-754 single precision
	TypeMessage                  // length-delimited nested message
)

var fieldTypeNames = map[FieldType]string{
	TypeUint:    "uint",
	TypeSint:    "sint",
	TypeString:  "string",
	TypeFloat:   "float",
	TypeMessage: "message",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// Valid reports whether t is one of the declared field types.
func (t FieldType) Valid() bool {
	_, ok := fieldTypeNames[t]
	return ok
}

// ParseFieldType parses the lower or upper case name of a field type.
func ParseFieldType(s string) (FieldType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range fieldTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// Field describes one known field of a message.
type Field struct {
	Number  int32      `json:"number"`            // 1
	Name    string     `json:"name"`              // "user_name"
	Type    FieldType  `json:"type"`              // decoded shape
	Message Descriptor `json:"message,omitempty"` // nested table when Type is TypeMessage
}

// Descriptor is a partial field table keyed by field number. Numbers that are
// missing from the table are unknown and get skipped on decode.
type Descriptor map[int32]*Field

// NewDescriptor builds a table from fields, keyed by their numbers. A later
// field with a duplicate number replaces the earlier one.
func NewDescriptor(fields ...*Field) Descriptor {
	d := make(Descriptor, len(fields))
	for _, f := range fields {
		d[f.Number] = f
	}
	return d
}

// Lookup returns the field for number, if known.
func (d Descriptor) Lookup(number int32) (*Field, bool) {
	f, ok := d[number]
	if !ok || f == nil {
		return nil, false
	}
	return f, true
}

// ByName returns the field called name, if known.
func (d Descriptor) ByName(name string) (*Field, bool) {
	for _, f := range d {
		if f != nil && f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Numbers returns the known field numbers in ascending order.
func (d Descriptor) Numbers() []int32 {
	numbers := make([]int32, 0, len(d))
	for n, f := range d {
		if f != nil {
			numbers = append(numbers, n)
		}
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers
}

// Validate checks the table and every nested table reachable from it.
// Recursive tables are walked once.
func (d Descriptor) Validate() error {
	return d.validate(make(map[*Field]struct{}))
}

func (d Descriptor) validate(seen map[*Field]struct{}) error {
	names := make(map[string]int32, len(d))
	for _, number := range d.Numbers() {
		f := d[number]
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}

		if number < 0 {
			return fmt.Errorf("field %q: negative field number %d", f.Name, number)
		}
		if f.Number != number {
			return fmt.Errorf("field %q: keyed as %d but numbered %d", f.Name, number, f.Number)
		}
		if f.Name == "" {
			return fmt.Errorf("field %d: empty name", number)
		}
		if other, ok := names[f.Name]; ok {
			return fmt.Errorf("field %q: name used by fields %d and %d", f.Name, other, number)
		}
		names[f.Name] = number
		if !f.Type.Valid() {
			return fmt.Errorf("field %q: invalid type %v", f.Name, f.Type)
		}
		if f.Type == TypeMessage {
			if err := f.Message.validate(seen); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
	}
	return nil
}
