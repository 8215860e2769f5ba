package protopeek

import (
	"fmt"
	"math"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/anirudhraja/protopeek/registry"
	"github.com/anirudhraja/protopeek/schema"
	"github.com/anirudhraja/protopeek/wire"
)

// ===== SCHEMA-AWARE API =====

// Protopeek decodes protobuf payloads against partial descriptor tables,
// without generated code. Load tables first; after that a Protopeek may be
// used from many goroutines.
type Protopeek struct {
	registry *registry.Registry
	config   wire.Config
	logger   zerolog.Logger
}

// New creates a Protopeek whose registry searches protoDirectories for
// .proto files and their imports.
func New(protoDirectories ...string) *Protopeek {
	return &Protopeek{
		registry: registry.NewRegistry(protoDirectories...),
		config:   wire.DefaultConfig(),
		logger:   zerolog.Nop(),
	}
}

// SetConfig sets the decoder options used by every Decode call.
func (p *Protopeek) SetConfig(config wire.Config) {
	p.config = config
}

// SetLogger sets the logger for decode and schema load events.
func (p *Protopeek) SetLogger(logger zerolog.Logger) {
	p.logger = logger
	p.registry.SetLogger(logger)
}

// LoadProtoFile registers every message declared in a .proto file.
func (p *Protopeek) LoadProtoFile(path string) error {
	return p.registry.LoadProtoFile(path)
}

// LoadDescriptorFile registers the tables in a YAML or JSON descriptor file.
func (p *Protopeek) LoadDescriptorFile(path string) error {
	return p.registry.LoadDescriptorFile(path)
}

// Register stores desc under name, replacing any table of that name.
func (p *Protopeek) Register(name string, desc schema.Descriptor) error {
	return p.registry.Register(name, desc)
}

// Decode decodes all of data as messageType.
func (p *Protopeek) Decode(data []byte, messageType string) (wire.Message, error) {
	return p.DecodeAt(data, 0, messageType)
}

// DecodeAt decodes the bytes from offset to the end of data as messageType.
func (p *Protopeek) DecodeAt(data []byte, offset int, messageType string) (wire.Message, error) {
	desc, err := p.registry.GetDescriptor(messageType)
	if err != nil {
		return nil, err
	}
	msg, err := p.decode(data, offset, desc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", messageType, err)
	}
	p.logger.Debug().
		Str("message_type", messageType).
		Int("bytes", len(data)-offset).
		Int("fields", len(msg)).
		Msg("decoded message")
	return msg, nil
}

// DecodeWith decodes all of data against a caller-supplied table.
func (p *Protopeek) DecodeWith(data []byte, desc schema.Descriptor) (wire.Message, error) {
	return p.decode(data, 0, desc)
}

func (p *Protopeek) decode(data []byte, offset int, desc schema.Descriptor) (wire.Message, error) {
	d := wire.NewDecoderWithConfig(data, offset, p.config)
	return d.ReadMessage(len(data)-offset, desc)
}

// Encode encodes msg as messageType.
func (p *Protopeek) Encode(msg wire.Message, messageType string) ([]byte, error) {
	desc, err := p.registry.GetDescriptor(messageType)
	if err != nil {
		return nil, err
	}
	return wire.EncodeMessage(msg, desc)
}

// Unmarshal decodes data as messageType into the struct pointed to by v.
// Struct fields are matched by a `peek:"name"` tag, or by their Go name when
// untagged; a tag of "-" skips the field. Message values fill nested structs
// or struct pointers.
func (p *Protopeek) Unmarshal(data []byte, messageType string, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("unmarshal target must be a pointer to struct")
	}

	msg, err := p.Decode(data, messageType)
	if err != nil {
		return err
	}
	return messageToStruct(msg, rv.Elem())
}

// messageToStruct maps a decoded message onto struct fields
func messageToStruct(msg wire.Message, rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldValue := rv.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		name := field.Name
		if tag, ok := field.Tag.Lookup("peek"); ok {
			if tag == "-" {
				continue
			}
			name = tag
		}

		if value, ok := msg[name]; ok {
			if err := setFieldValue(fieldValue, value); err != nil {
				return fmt.Errorf("failed to set field %s: %v", field.Name, err)
			}
		}
	}
	return nil
}

// setFieldValue sets a struct field with type conversion
func setFieldValue(fieldValue reflect.Value, value wire.Value) error {
	if value == nil {
		return nil
	}

	if nested, ok := value.(wire.Message); ok {
		target := fieldValue
		if target.Kind() == reflect.Ptr && target.Type().Elem().Kind() == reflect.Struct {
			if target.IsNil() {
				target.Set(reflect.New(target.Type().Elem()))
			}
			target = target.Elem()
		}
		if target.Kind() == reflect.Struct {
			return messageToStruct(nested, target)
		}
	}

	sourceValue := reflect.ValueOf(value.Interface())
	if sourceValue.Type().AssignableTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue)
		return nil
	}

	kind := fieldValue.Kind()
	switch v := value.(type) {
	case wire.Uint:
		switch {
		case isUint(kind) && !fieldValue.OverflowUint(uint64(v)):
			fieldValue.SetUint(uint64(v))
			return nil
		case isInt(kind) && uint64(v) <= math.MaxInt64 && !fieldValue.OverflowInt(int64(v)):
			fieldValue.SetInt(int64(v))
			return nil
		}
	case wire.Sint:
		switch {
		case isInt(kind) && !fieldValue.OverflowInt(int64(v)):
			fieldValue.SetInt(int64(v))
			return nil
		case isUint(kind) && v >= 0 && !fieldValue.OverflowUint(uint64(v)):
			fieldValue.SetUint(uint64(v))
			return nil
		}
	case wire.Float:
		if kind == reflect.Float32 || kind == reflect.Float64 {
			fieldValue.SetFloat(float64(v))
			return nil
		}
	case wire.String:
		if kind == reflect.String {
			fieldValue.SetString(string(v))
			return nil
		}
	}

	return fmt.Errorf("cannot convert %s value %v to %s", value.Type(), value.Interface(), fieldValue.Type())
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

// ===== REGISTRY ACCESS =====

// GetRegistry returns the underlying registry.
func (p *Protopeek) GetRegistry() *registry.Registry { return p.registry }

// ListMessages returns the registered message names, sorted.
func (p *Protopeek) ListMessages() []string { return p.registry.ListMessages() }
