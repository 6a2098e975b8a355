// Package mapping resolves dotted field paths against an index mapping.
//
// A mapping is a tree of properties loaded from YAML:
//
//	properties:
//	  title: {type: text}
//	  comments:
//	    type: nested
//	    properties:
//	      author: {type: keyword}
//
// Objects declared with type nested are indexed as separate documents in
// their parent's block; every other object is flattened into its enclosing
// document. A Mapping is immutable after loading and safe for concurrent use.
package mapping

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/nestq/internal/queryir"
)

// Field types understood by the mapping.
const (
	TypeNested  = "nested"
	TypeObject  = "object"
	TypeKeyword = "keyword"
	TypeText    = "text"
	TypeLong    = "long"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

var leafTypes = map[string]bool{
	TypeKeyword: true,
	TypeText:    true,
	TypeLong:    true,
	TypeInteger: true,
	TypeBoolean: true,
}

// Property is one node of the YAML mapping tree.
type Property struct {
	Type       string               `yaml:"type"`
	Properties map[string]*Property `yaml:"properties"`
}

// ObjectMapper describes an object field of the mapping.
type ObjectMapper struct {
	Path   string
	nested bool
}

// IsNested reports whether the object is indexed as nested documents.
func (m *ObjectMapper) IsNested() bool {
	return m.nested
}

// NestedTypeFilter returns the filter matching this object's nested
// documents. Only meaningful when IsNested is true.
func (m *ObjectMapper) NestedTypeFilter() queryir.Filter {
	return queryir.NestedTypeFilter{Path: m.Path}
}

// Mapping is a resolved index mapping.
type Mapping struct {
	root    map[string]*Property
	objects map[string]*ObjectMapper
	fields  map[string]string
}

// Parse decodes a YAML mapping document. Unknown keys are rejected.
func Parse(data []byte) (*Mapping, error) {
	return Load(bytes.NewReader(data))
}

// LoadFile reads and parses a YAML mapping file.
func LoadFile(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping: %w", err)
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return m, nil
}

// Load decodes a YAML mapping from r.
func Load(r io.Reader) (*Mapping, error) {
	var doc struct {
		Properties map[string]*Property `yaml:"properties"`
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}

	m := &Mapping{
		root:    doc.Properties,
		objects: make(map[string]*ObjectMapper),
		fields:  make(map[string]string),
	}
	if err := m.index("", doc.Properties); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mapping) index(prefix string, props map[string]*Property) error {
	for name, p := range props {
		if name == "" || strings.Contains(name, ".") {
			return fmt.Errorf("invalid property name %q under %q", name, prefix)
		}
		if p == nil {
			return fmt.Errorf("property %q has no definition", join(prefix, name))
		}
		path := norm.NFC.String(join(prefix, name))

		typ := p.Type
		if typ == "" {
			if len(p.Properties) == 0 {
				return fmt.Errorf("property %q needs a type", path)
			}
			typ = TypeObject
		}

		switch {
		case typ == TypeNested || typ == TypeObject:
			m.objects[path] = &ObjectMapper{Path: path, nested: typ == TypeNested}
			m.fields[path] = typ
			if err := m.index(path, p.Properties); err != nil {
				return err
			}
		case leafTypes[typ]:
			if len(p.Properties) > 0 {
				return fmt.Errorf("property %q of type %s cannot have properties", path, typ)
			}
			m.fields[path] = typ
		default:
			return fmt.Errorf("property %q has unknown type %q", path, typ)
		}
	}
	return nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Resolve returns the object mapper at path.
func (m *Mapping) Resolve(path string) (*ObjectMapper, bool) {
	om, ok := m.objects[norm.NFC.String(path)]
	return om, ok
}

// FieldType returns the declared type of the field at path.
func (m *Mapping) FieldType(path string) (string, bool) {
	t, ok := m.fields[norm.NFC.String(path)]
	return t, ok
}

// NestedPaths returns every nested path, sorted.
func (m *Mapping) NestedPaths() []string {
	var paths []string
	for p, om := range m.objects {
		if om.nested {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)
	return paths
}
