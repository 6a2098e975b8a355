package mapping

import (
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// Doc is one indexed document of a block. Path is the nested path the
// document belongs to, empty for the root document. Fields are keyed by
// full dotted path.
type Doc struct {
	Path   string
	Fields map[string]any
}

// Flatten splits a source document into its block: every nested object
// becomes its own Doc, placed before the Doc it is nested in, and the root
// Doc comes last. Non-nested objects are flattened into their enclosing Doc.
//
// Keys are visited in sorted order so the same source always yields the
// same block.
func (m *Mapping) Flatten(source map[string]any) ([]Doc, error) {
	var docs []Doc
	root := Doc{Fields: make(map[string]any)}
	if err := m.flattenObject(&docs, &root, "", source); err != nil {
		return nil, err
	}
	return append(docs, root), nil
}

func (m *Mapping) flattenObject(docs *[]Doc, cur *Doc, prefix string, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		path := norm.NFC.String(join(prefix, k))
		v := obj[k]
		if v == nil {
			continue
		}

		switch m.fields[path] {
		case TypeNested:
			elems, err := objectList(path, v)
			if err != nil {
				return err
			}
			for _, e := range elems {
				child := Doc{Path: path, Fields: make(map[string]any)}
				if err := m.flattenObject(docs, &child, path, e); err != nil {
					return err
				}
				*docs = append(*docs, child)
			}
		case TypeObject:
			elems, err := objectList(path, v)
			if err != nil {
				return err
			}
			for _, e := range elems {
				if err := m.flattenObject(docs, cur, path, e); err != nil {
					return err
				}
			}
		default:
			// Unmapped objects are flattened dynamically.
			if _, isObj := v.(map[string]any); isObj {
				elems, _ := objectList(path, v)
				for _, e := range elems {
					if err := m.flattenObject(docs, cur, path, e); err != nil {
						return err
					}
				}
				continue
			}
			addField(cur.Fields, path, v)
		}
	}
	return nil
}

// objectList accepts a single object or an array of objects.
func objectList(path string, v any) ([]map[string]any, error) {
	switch val := v.(type) {
	case map[string]any:
		return []map[string]any{val}, nil
	case []any:
		out := make([]map[string]any, 0, len(val))
		for i, e := range val {
			obj, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field %q[%d]: expected object, got %T", path, i, e)
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: expected object or array of objects, got %T", path, v)
	}
}

// addField sets or extends a multi-valued field.
func addField(fields map[string]any, key string, v any) {
	var values []any
	if existing, ok := fields[key]; ok {
		if arr, isArr := existing.([]any); isArr {
			values = arr
		} else {
			values = []any{existing}
		}
	}
	if arr, isArr := v.([]any); isArr {
		if values == nil {
			if _, ok := fields[key]; !ok {
				fields[key] = slices.Clone(arr)
				return
			}
		}
		values = append(values, arr...)
	} else {
		if values == nil {
			fields[key] = v
			return
		}
		values = append(values, v)
	}
	fields[key] = values
}
