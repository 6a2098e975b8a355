package compiler

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/nestq/internal/queryir"
)

// NestedSpec is a decoded nested query. Query and Filter are the raw
// bodies; they are compiled by NestedJoinCompiler inside the level's scope,
// so any nested query they contain sees this level as its parent.
type NestedSpec struct {
	Query     cue.Value // does not Exist() when absent
	Filter    cue.Value // does not Exist() when absent
	Path      string
	HasPath   bool
	Boost     float64
	ScoreMode queryir.ScoreMode
	Name      string
	Pos       token.Pos
}

// missingPath is reported whenever a nested query has no usable path,
// ahead of any problem with the rest of the body.
func missingPath(pos token.Pos) *CompileError {
	return &CompileError{
		Code:    CodeMissingPath,
		Field:   "path",
		Message: "[nested] requires 'path' field",
		Pos:     pos,
	}
}

// decodeNestedSpec reads the fields of a nested body. It only checks
// field names and value kinds; everything that needs the mapping or the
// scope is left to NestedJoinCompiler. Problems with fields other than
// path are held until the path is known to be present.
func decodeNestedSpec(v cue.Value) (NestedSpec, error) {
	spec := NestedSpec{
		Boost:     1.0,
		ScoreMode: queryir.DefaultScoreMode(),
		Pos:       v.Pos(),
	}

	fields, err := structFields(v, "nested")
	if err != nil {
		return spec, err
	}

	var held error
	for _, f := range fields {
		if f.name == "path" {
			path, err := stringValue(f.value, "path")
			if err != nil {
				return spec, err
			}
			spec.Path = path
			spec.HasPath = path != ""
			continue
		}
		if err := spec.decodeField(f); err != nil && held == nil {
			held = err
		}
	}

	if !spec.HasPath {
		return spec, missingPath(spec.Pos)
	}
	return spec, held
}

func (spec *NestedSpec) decodeField(f field) error {
	switch f.name {
	case "query":
		if f.value.Kind() != cue.StructKind {
			return unsupported("nested", f)
		}
		spec.Query = f.value
	case "filter":
		if f.value.Kind() != cue.StructKind {
			return unsupported("nested", f)
		}
		spec.Filter = f.value
	case "boost":
		boost, err := numberValue(f.value, "boost")
		if err != nil {
			return err
		}
		spec.Boost = boost
	case "score_mode", "scoreMode":
		raw, err := stringValue(f.value, f.name)
		if err != nil {
			return err
		}
		mode, err := queryir.ParseScoreMode(raw)
		if err != nil {
			return &CompileError{
				Code:    CodeInvalidScoreMode,
				Field:   f.name,
				Value:   raw,
				Message: "illegal score_mode for nested query",
				Pos:     f.value.Pos(),
			}
		}
		spec.ScoreMode = mode
	case "_name":
		name, err := stringValue(f.value, "_name")
		if err != nil {
			return err
		}
		spec.Name = name
	default:
		return unsupported("nested", f)
	}
	return nil
}
