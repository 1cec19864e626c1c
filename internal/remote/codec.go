package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EncodeFields converts plain JSON-ish values into Firestore's typed value
// wire format, where every scalar is tagged with its type
// (stringValue/doubleValue/integerValue/booleanValue/arrayValue/mapValue).
func EncodeFields(fields map[string]any) map[string]any {
	encoded := make(map[string]any, len(fields))
	for key, value := range fields {
		encoded[key] = encodeValue(value)
	}
	return encoded
}

func encodeValue(v any) map[string]any {
	switch value := v.(type) {
	case nil:
		return map[string]any{"nullValue": nil}
	case string:
		return map[string]any{"stringValue": value}
	case bool:
		return map[string]any{"booleanValue": value}
	case float64:
		return map[string]any{"doubleValue": value}
	case float32:
		return map[string]any{"doubleValue": float64(value)}
	case int:
		return map[string]any{"integerValue": strconv.Itoa(value)}
	case int64:
		return map[string]any{"integerValue": strconv.FormatInt(value, 10)}
	case []any:
		values := make([]any, 0, len(value))
		for _, item := range value {
			values = append(values, encodeValue(item))
		}
		return map[string]any{"arrayValue": map[string]any{"values": values}}
	case map[string]any:
		return map[string]any{"mapValue": map[string]any{"fields": EncodeFields(value)}}
	default:
		// Unknown scalars degrade to their string form rather than failing
		// the whole write.
		return map[string]any{"stringValue": fmt.Sprint(value)}
	}
}

// DecodeFields converts Firestore typed values back into plain JSON-ish Go
// values. integerValue decodes to float64 to match what a JSON round trip of
// the same number produces.
func DecodeFields(fields map[string]json.RawMessage) (map[string]any, error) {
	decoded := make(map[string]any, len(fields))
	for key, raw := range fields {
		value, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		decoded[key] = value
	}
	return decoded, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, err
	}
	for tag, inner := range tagged {
		switch tag {
		case "stringValue", "timestampValue", "referenceValue":
			var s string
			if err := json.Unmarshal(inner, &s); err != nil {
				return nil, err
			}
			return s, nil
		case "doubleValue":
			var f float64
			if err := json.Unmarshal(inner, &f); err != nil {
				return nil, err
			}
			return f, nil
		case "integerValue":
			// The wire carries integers as strings; tolerate bare numbers too.
			var s string
			if err := json.Unmarshal(inner, &s); err == nil {
				n, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, fmt.Errorf("integerValue %q: %w", s, err)
				}
				return n, nil
			}
			var f float64
			if err := json.Unmarshal(inner, &f); err != nil {
				return nil, err
			}
			return f, nil
		case "booleanValue":
			var b bool
			if err := json.Unmarshal(inner, &b); err != nil {
				return nil, err
			}
			return b, nil
		case "nullValue":
			return nil, nil
		case "arrayValue":
			var arr struct {
				Values []json.RawMessage `json:"values"`
			}
			if err := json.Unmarshal(inner, &arr); err != nil {
				return nil, err
			}
			values := make([]any, 0, len(arr.Values))
			for _, item := range arr.Values {
				value, err := decodeValue(item)
				if err != nil {
					return nil, err
				}
				values = append(values, value)
			}
			return values, nil
		case "mapValue":
			var m struct {
				Fields map[string]json.RawMessage `json:"fields"`
			}
			if err := json.Unmarshal(inner, &m); err != nil {
				return nil, err
			}
			return DecodeFields(m.Fields)
		}
	}
	return nil, fmt.Errorf("unrecognized value %s", string(raw))
}
