package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IRValue is a literal a query compares documents against. The set of
// implementations is closed. Floats are deliberately absent: term values
// must compare exactly.
type IRValue interface {
	irValue()
}

type (
	IRString string
	IRInt    int64
	IRBool   bool
	IRArray  []IRValue
	// IRObject iteration order is random; use SortedKeys.
	IRObject map[string]IRValue
)

func (IRString) irValue() {}
func (IRInt) irValue()    {}
func (IRBool) irValue()   {}
func (IRArray) irValue()  {}
func (IRObject) irValue() {}

// SortedKeys orders keys by UTF-16 code units as RFC 8785 requires. This
// differs from byte order for characters outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// String renders v for explain output: scalars bare, composites as
// canonical JSON.
func String(v IRValue) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case IRString:
		return string(val)
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRBool:
		return strconv.FormatBool(bool(val))
	}
	b, err := MarshalCanonical(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

var errNull = errors.New("null is not a term value")

// FromAny converts a decoded JSON value. Numbers must arrive as json.Number
// (Decoder.UseNumber) or Go integers. Floats and null are rejected.
func FromAny(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, errNull
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case json.Number:
		return numberValue(val)
	case float32, float64:
		return nil, fmt.Errorf("float values are not supported: %v", val)
	case []any:
		return arrayValue(val)
	case map[string]any:
		return objectValue(val)
	}
	return nil, fmt.Errorf("cannot use %T as a term value", v)
}

func numberValue(n json.Number) (IRValue, error) {
	if strings.ContainsAny(n.String(), ".eE") {
		return nil, fmt.Errorf("float values are not supported: %s", n)
	}
	i, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("number out of int64 range: %s", n)
	}
	return IRInt(i), nil
}

func arrayValue(elems []any) (IRArray, error) {
	out := make(IRArray, 0, len(elems))
	for i, e := range elems {
		v, err := FromAny(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func objectValue(fields map[string]any) (IRObject, error) {
	out := make(IRObject, len(fields))
	for k, e := range fields {
		v, err := FromAny(e)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// DecodeValue parses one JSON document into an IRValue.
func DecodeValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}
