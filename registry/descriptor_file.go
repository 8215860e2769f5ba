package registry

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/protopeek/schema"
)

// descriptorFile is the on-disk form of a set of descriptor tables. JSON
// documents are accepted too, being valid YAML.
//
//	messages:
//	  scale.Reading:
//	    fields:
//	      1: {name: weight, type: uint}
//	      2: {name: unit, type: string}
//	      3: {name: device, type: message, message: scale.Device}
type descriptorFile struct {
	Messages map[string]messageSpec `yaml:"messages"`
}

type messageSpec struct {
	Fields map[string]fieldSpec `yaml:"fields"` // keyed by field number
}

type fieldSpec struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Message string `yaml:"message,omitempty"` // referenced message, for type message
}

// LoadDescriptorFile reads descriptor tables from a YAML or JSON file.
func (r *Registry) LoadDescriptorFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("descriptor load failed (%s): %w", path, err)
	}
	if err := r.LoadDescriptorData(data); err != nil {
		return fmt.Errorf("descriptor load failed (%s): %w", path, err)
	}
	return nil
}

// LoadDescriptorData registers the tables in a YAML or JSON document. A
// message reference resolves first against the same document, then against
// messages already in the registry.
func (r *Registry) LoadDescriptorData(data []byte) error {
	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("no messages defined")
	}

	names := make([]string, 0, len(file.Messages))
	tables := make(map[string]schema.Descriptor, len(file.Messages))
	for name := range file.Messages {
		names = append(names, name)
		tables[name] = make(schema.Descriptor)
	}
	sort.Strings(names)

	for _, name := range names {
		for key, spec := range file.Messages[name].Fields {
			n, err := strconv.ParseInt(key, 10, 32)
			if err != nil {
				return fmt.Errorf("message %s: invalid field number %q", name, key)
			}
			number := int32(n)
			field, err := r.buildFieldSpec(number, spec, tables)
			if err != nil {
				return fmt.Errorf("message %s: %w", name, err)
			}
			tables[name][number] = field
		}
	}

	if err := r.registerAll(names, tables); err != nil {
		return err
	}
	r.logger.Debug().Strs("messages", names).Msg("loaded descriptor file")
	return nil
}

func (r *Registry) buildFieldSpec(number int32, spec fieldSpec, local map[string]schema.Descriptor) (*schema.Field, error) {
	t, err := schema.ParseFieldType(spec.Type)
	if err != nil {
		return nil, fmt.Errorf("field %d: %w", number, err)
	}

	field := &schema.Field{Number: number, Name: spec.Name, Type: t}
	switch {
	case t == schema.TypeMessage:
		if spec.Message == "" {
			return nil, fmt.Errorf("field %d: message type needs a message reference", number)
		}
		if desc, ok := local[spec.Message]; ok {
			field.Message = desc
			break
		}
		desc, err := r.GetDescriptor(spec.Message)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", number, err)
		}
		field.Message = desc
	case spec.Message != "":
		return nil, fmt.Errorf("field %d: message reference on %s field", number, t)
	}
	return field, nil
}
