package wire

import "github.com/anirudhraja/protopeek/schema"

// Value is a decoded field value. The implementations are exactly Uint, Sint,
// String, Float and Message, one per schema.FieldType.
type Value interface {
	// Type reports which field type produced the value.
	Type() schema.FieldType
	// Interface returns the value as a plain Go value: uint64, int64,
	// string, float32 or map[string]interface{}.
	Interface() interface{}

	isValue()
}

// Uint is a decoded schema.TypeUint field.
type Uint uint64

// Sint is a decoded schema.TypeSint field.
type Sint int64

// String is a decoded schema.TypeString field.
type String string

// Float is a decoded schema.TypeFloat field.
type Float float32

// Message maps field names to decoded values. Unknown fields never appear.
type Message map[string]Value

func (Uint) Type() schema.FieldType    { return schema.TypeUint }
func (Sint) Type() schema.FieldType    { return schema.TypeSint }
func (String) Type() schema.FieldType  { return schema.TypeString }
func (Float) Type() schema.FieldType   { return schema.TypeFloat }
func (Message) Type() schema.FieldType { return schema.TypeMessage }

func (v Uint) Interface() interface{}   { return uint64(v) }
func (v Sint) Interface() interface{}   { return int64(v) }
func (v String) Interface() interface{} { return string(v) }
func (v Float) Interface() interface{}  { return float32(v) }

// Interface converts the message and everything nested in it to
// map[string]interface{}.
func (m Message) Interface() interface{} {
	return m.Map()
}

// Map is Interface with a concrete result type.
func (m Message) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for name, v := range m {
		if v == nil {
			continue
		}
		out[name] = v.Interface()
	}
	return out
}

func (Uint) isValue()    {}
func (Sint) isValue()    {}
func (String) isValue()  {}
func (Float) isValue()   {}
func (Message) isValue() {}
