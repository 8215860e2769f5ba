package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anirudhraja/protopeek/schema"
)

// ErrMessageNotFound is returned by GetDescriptor for unknown message names.
var ErrMessageNotFound = errors.New("message not found")

// Registry stores named descriptor tables. We look these up when we need to
// decode a message by name. A Registry is not safe for concurrent loading;
// once loaded it may be read from many goroutines.
type Registry struct {
	// ProtoDirectories are searched, in order, for .proto files and imports.
	ProtoDirectories []string

	messages map[string]schema.Descriptor // fully qualified name -> table
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry. With no directories, proto paths are
// resolved relative to the working directory.
func NewRegistry(protoDirectories ...string) *Registry {
	if len(protoDirectories) == 0 {
		protoDirectories = []string{""}
	}
	return &Registry{
		ProtoDirectories: protoDirectories,
		messages:         make(map[string]schema.Descriptor),
		logger:           zerolog.Nop(),
	}
}

// SetLogger sets the logger used for load events.
func (r *Registry) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

// Register stores desc under name, replacing any previous table of that name.
func (r *Registry) Register(name string, desc schema.Descriptor) error {
	if err := validateEntry(name, desc); err != nil {
		return err
	}
	r.store(name, desc)
	return nil
}

// registerAll validates every table before storing any of them, so a failed
// load leaves the registry unchanged.
func (r *Registry) registerAll(names []string, tables map[string]schema.Descriptor) error {
	for _, name := range names {
		if err := validateEntry(name, tables[name]); err != nil {
			return err
		}
	}
	for _, name := range names {
		r.store(name, tables[name])
	}
	return nil
}

func (r *Registry) store(name string, desc schema.Descriptor) {
	if _, exists := r.messages[name]; exists {
		r.logger.Debug().Str("message", name).Msg("replacing registered descriptor")
	}
	r.messages[name] = desc
}

func validateEntry(name string, desc schema.Descriptor) error {
	if name == "" {
		return fmt.Errorf("register: empty message name")
	}
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}

// GetDescriptor retrieves a descriptor by fully qualified name, or by a name
// without its package prefix when that is unambiguous.
func (r *Registry) GetDescriptor(name string) (schema.Descriptor, error) {
	name = strings.TrimPrefix(name, ".")
	if desc, exists := r.messages[name]; exists {
		return desc, nil
	}

	// Try without package prefix
	var matches []string
	for fullName := range r.messages {
		if strings.HasSuffix(fullName, "."+name) {
			matches = append(matches, fullName)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, name)
	case 1:
		return r.messages[matches[0]], nil
	default:
		sort.Strings(matches)
		return nil, fmt.Errorf("message name %s is ambiguous: %s", name, strings.Join(matches, ", "))
	}
}

// ListMessages returns all registered message names, sorted
func (r *Registry) ListMessages() []string {
	names := make([]string, 0, len(r.messages))
	for name := range r.messages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getFullName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}
