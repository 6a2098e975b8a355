package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalFields encodes a document's fields as JSON TEXT.
// Map keys come out sorted, so the same document always encodes the same.
// HTML escaping is disabled so stored text matches term values byte for byte.
func marshalFields(fields map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalFields decodes stored fields, keeping numbers as json.Number to
// avoid float64 precision loss for values > 2^53.
func unmarshalFields(data string) (map[string]any, error) {
	fields := map[string]any{}
	if data == "" || data == "{}" {
		return fields, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return fields, nil
}
