package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/protopeek/schema"
)

// scalarTypes maps proto scalar types onto the decoder's field types.
// int32/int64 decode as raw unsigned varints; negative values are not
// reinterpreted.
var scalarTypes = map[string]schema.FieldType{
	"uint32": schema.TypeUint,
	"uint64": schema.TypeUint,
	"int32":  schema.TypeUint,
	"int64":  schema.TypeUint,
	"bool":   schema.TypeUint,
	"sint32": schema.TypeSint,
	"sint64": schema.TypeSint,
	"string": schema.TypeString,
	"bytes":  schema.TypeString,
	"float":  schema.TypeFloat,
}

// unsupportedScalars are left out of descriptor tables; on the wire they are
// skipped like unknown fields.
var unsupportedScalars = map[string]struct{}{
	"double":   {},
	"fixed32":  {},
	"fixed64":  {},
	"sfixed32": {},
	"sfixed64": {},
}

type parsedProto struct {
	path  string
	proto *protoparserparser.Proto
}

// protoMessage is a message definition waiting for its fields to be built.
type protoMessage struct {
	fullName string
	msg      *protoparserparser.Message
	desc     schema.Descriptor
}

// LoadProtoFile parses protoFile and every file it imports, and registers a
// descriptor for each message they define. Fields whose types the decoder
// cannot represent are left out of the tables.
func (r *Registry) LoadProtoFile(protoFile string) error {
	files, err := r.getAllProtoInfo(protoFile)
	if err != nil {
		return fmt.Errorf("load %s: %w", protoFile, err)
	}

	// Pass 1: Register all message and enum names
	messages := make(map[string]*protoMessage)
	entities := make(map[string]struct{})
	order := make([]*protoMessage, 0)
	for _, f := range files {
		pkg := packageName(f.proto)
		collectEntities(pkg, f.proto.ProtoBody, func(pm *protoMessage) {
			messages[pm.fullName] = pm
			order = append(order, pm)
			entities[pm.fullName] = struct{}{}
		}, func(enumName string) {
			entities[enumName] = struct{}{}
		})
	}

	// Pass 2: Build field tables, resolving message references
	for _, pm := range order {
		if err := r.buildFields(pm, messages, entities); err != nil {
			return fmt.Errorf("load %s: message %s: %w", protoFile, pm.fullName, err)
		}
	}

	names := make([]string, 0, len(order))
	tables := make(map[string]schema.Descriptor, len(order))
	for _, pm := range order {
		names = append(names, pm.fullName)
		tables[pm.fullName] = pm.desc
	}
	if err := r.registerAll(names, tables); err != nil {
		return fmt.Errorf("load %s: %w", protoFile, err)
	}

	r.logger.Debug().
		Str("file", protoFile).
		Int("files", len(files)).
		Int("messages", len(order)).
		Msg("loaded proto schema")
	return nil
}

// collectEntities walks body, reporting every message and enum with its fully
// qualified name. Nested definitions are qualified by their parent.
func collectEntities(prefix string, body []protoparserparser.Visitee, onMessage func(*protoMessage), onEnum func(string)) {
	for _, v := range body {
		switch b := v.(type) {
		case *protoparserparser.Message:
			fullName := getFullName(prefix, b.MessageName)
			onMessage(&protoMessage{
				fullName: fullName,
				msg:      b,
				desc:     make(schema.Descriptor),
			})
			collectEntities(fullName, b.MessageBody, onMessage, onEnum)
		case *protoparserparser.Enum:
			onEnum(getFullName(prefix, b.EnumName))
		}
	}
}

func (r *Registry) buildFields(pm *protoMessage, messages map[string]*protoMessage, entities map[string]struct{}) error {
	for _, v := range pm.msg.MessageBody {
		switch f := v.(type) {
		case *protoparserparser.Field:
			if err := r.addField(pm, f.FieldName, f.FieldNumber, f.Type, messages, entities); err != nil {
				return err
			}
		case *protoparserparser.Oneof:
			for _, of := range f.OneofFields {
				if err := r.addField(pm, of.FieldName, of.FieldNumber, of.Type, messages, entities); err != nil {
					return err
				}
			}
		case *protoparserparser.MapField:
			r.logger.Debug().Str("message", pm.fullName).Str("field", f.MapName).Msg("map field left out of descriptor")
		}
	}
	return nil
}

func (r *Registry) addField(pm *protoMessage, name, number, typeName string, messages map[string]*protoMessage, entities map[string]struct{}) error {
	n, err := strconv.ParseInt(strings.TrimSpace(number), 0, 32)
	if err != nil {
		return fmt.Errorf("field %s: invalid field number %q", name, number)
	}

	field := &schema.Field{Number: int32(n), Name: name}
	if t, ok := scalarTypes[typeName]; ok {
		field.Type = t
		pm.desc[field.Number] = field
		return nil
	}
	if _, ok := unsupportedScalars[typeName]; ok {
		r.logger.Debug().Str("message", pm.fullName).Str("field", name).Str("type", typeName).Msg("field type left out of descriptor")
		return nil
	}
	if strings.HasPrefix(strings.TrimPrefix(typeName, "."), "google.protobuf.") {
		r.logger.Debug().Str("message", pm.fullName).Str("field", name).Str("type", typeName).Msg("well-known type left out of descriptor")
		return nil
	}

	ref, err := getReferencedType(typeName, pm.fullName, entities)
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	if target, ok := messages[ref]; ok {
		field.Type = schema.TypeMessage
		field.Message = target.desc
	} else {
		// enums travel as varints
		field.Type = schema.TypeUint
	}
	pm.desc[field.Number] = field
	return nil
}

func packageName(proto *protoparserparser.Proto) string {
	for _, body := range proto.ProtoBody {
		if pkg, ok := body.(*protoparserparser.Package); ok {
			return pkg.Name
		}
	}
	return ""
}

// getAllProtoInfo uses DFS to parse protoFile and everything it imports, in
// dependency discovery order
func (r *Registry) getAllProtoInfo(protoFile string) ([]*parsedProto, error) {
	visited := make(map[string]struct{}) // to make sure we don't end up in a loop
	result := make([]*parsedProto, 0)

	var dfs func(protoPath string) error
	dfs = func(protoPath string) error {
		if _, ok := visited[protoPath]; ok {
			return nil
		}
		visited[protoPath] = struct{}{}

		protoBytes, err := os.ReadFile(protoPath)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		parsedBody, err := protoparser.Parse(bytes.NewBuffer(protoBytes))
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", protoPath, err)
		}
		result = append(result, &parsedProto{path: protoPath, proto: parsedBody})

		for _, body := range parsedBody.ProtoBody {
			imp, ok := body.(*protoparserparser.Import)
			if !ok {
				continue
			}
			importPath := strings.Trim(imp.Location, `"`)
			if strings.HasPrefix(importPath, "google/protobuf/") {
				continue
			}
			fullImportPath, err := r.findIfProtoExists(importPath)
			if err != nil {
				return err
			}
			if err := dfs(fullImportPath); err != nil {
				return err
			}
		}
		return nil
	}

	// run dfs on the input proto path
	protoPath, err := r.findIfProtoExists(protoFile)
	if err != nil {
		return nil, err
	}
	if err := dfs(protoPath); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Registry) findIfProtoExists(protoPath string) (string, error) {
	protoPath = strings.Trim(protoPath, `"`)
	if !strings.HasSuffix(protoPath, ".proto") {
		return "", fmt.Errorf("is not a .proto file: %s", protoPath)
	}

	candidates := []string{protoPath}
	if !filepath.IsAbs(protoPath) {
		candidates = candidates[:0]
		for _, dir := range r.ProtoDirectories {
			candidates = append(candidates, filepath.Join(dir, protoPath))
		}
	}

	var lastErr error
	for _, fullPath := range candidates {
		info, err := os.Stat(fullPath)
		if err == nil && !info.IsDir() {
			return filepath.Clean(fullPath), nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("proto file %s not found in %v: %w", protoPath, r.ProtoDirectories, lastErr)
}

/*
This helper function will return the entity for any referenced type ,
Be it top/file,nested or imported entities.If not found will return an error
Ref - https://github.com/protocolbuffers/protobuf/blob/b7a5772caf08d62a20fd1bca258f501fa4db022c/src/google/protobuf/descriptor.proto#L186-L191
*/
func getReferencedType(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, error) {
	// check if fully qualifed prefixed by dot
	if strings.HasPrefix(typeName, ".") {
		return getFullyQualifiedType(typeName, allResolvedEntities)
	}
	// try resolving from inner entities up till the parent package
	if result, ok := splitNameAndCheck(typeName, prefix, allResolvedEntities); ok {
		return result, nil
	}
	//  check if the entity is referenced to other packages via packageName
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve type name: %s", typeName)
}

// splitNameAndCheck splits the prefixName and tries to append the typeName and find the entity for resolution
// it also tries the find the entities defined using relative path
func splitNameAndCheck(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, bool) {
	prefixSplit := strings.Split(prefix, ".")

	for len(prefixSplit) > 0 && prefixSplit[0] != "" {
		entityName := strings.Join(prefixSplit, ".") + "." + typeName
		if _, ok := allResolvedEntities[entityName]; ok {
			return entityName, true
		}
		// Omit the last element in each iteration as we go level above to outer entity
		prefixSplit = prefixSplit[:len(prefixSplit)-1]
	}
	return "", false
}

func getFullyQualifiedType(typeName string, allResolvedEntities map[string]struct{}) (string, error) {
	typeName = strings.TrimPrefix(typeName, ".")
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve fully qualified type name: %s", typeName)
}
