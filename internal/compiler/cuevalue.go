package compiler

import (
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/nestq/internal/ir"
)

// field is one struct field, in declaration order.
type field struct {
	name  string
	value cue.Value
}

// fieldName returns the unquoted label of the current field. JSON keys
// such as "_name" are quoted in CUE and arrive as regular string labels.
func fieldName(it *cue.Iterator) string {
	sel := it.Selector()
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// structFields returns the regular fields of an object value.
func structFields(v cue.Value, at string) ([]field, error) {
	if v.Kind() != cue.StructKind {
		return nil, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   at,
			Message: "expected an object, got " + v.IncompleteKind().String(),
			Pos:     v.Pos(),
		}
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []field
	for iter.Next() {
		out = append(out, field{name: fieldName(iter), value: iter.Value()})
	}
	return out, nil
}

// objectList accepts one object or a list of objects, the two shapes a
// clause may take.
func objectList(v cue.Value, at string) ([]cue.Value, error) {
	switch v.Kind() {
	case cue.StructKind:
		return []cue.Value{v}, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var out []cue.Value
		for iter.Next() {
			out = append(out, iter.Value())
		}
		return out, nil
	default:
		return nil, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   at,
			Message: "expected an object or a list of objects",
			Pos:     v.Pos(),
		}
	}
}

func stringValue(v cue.Value, at string) (string, error) {
	if v.Kind() != cue.StringKind {
		return "", &CompileError{
			Code:    CodeMalformedSpec,
			Field:   at,
			Message: "expected a string, got " + v.IncompleteKind().String(),
			Pos:     v.Pos(),
		}
	}
	s, err := v.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// numberValue reads boosts. Integers and decimals are both accepted.
func numberValue(v cue.Value, at string) (float64, error) {
	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		return float64(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		return f, nil
	default:
		return 0, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   at,
			Message: "expected a number, got " + v.IncompleteKind().String(),
			Pos:     v.Pos(),
		}
	}
}

func intValue(v cue.Value, at string) (int64, error) {
	if v.Kind() != cue.IntKind {
		return 0, &CompileError{
			Code:    CodeInvalidValue,
			Field:   at,
			Message: "expected an integer, got " + v.IncompleteKind().String(),
			Pos:     v.Pos(),
		}
	}
	n, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// termValue converts a literal a term compares against. Floats, null and
// composite values are rejected: terms compare exactly.
func termValue(v cue.Value, at string) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Code: CodeInvalidValue, Field: at, Message: "integer out of range", Pos: v.Pos()}
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	default:
		return nil, &CompileError{
			Code:    CodeInvalidValue,
			Field:   at,
			Message: "term values must be strings, integers or booleans",
			Value:   v.IncompleteKind().String(),
			Pos:     v.Pos(),
		}
	}
}

func names(fields []field) string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.name
	}
	return strings.Join(out, ", ")
}

func unsupported(kind string, f field) error {
	return &CompileError{
		Code:    CodeUnsupportedField,
		Field:   f.name,
		Message: "[" + kind + "] query does not support [" + f.name + "]",
		Pos:     f.value.Pos(),
	}
}
