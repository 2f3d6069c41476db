package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoObject = errors.New("jsonutil: no JSON object found")

// MarshalNoEscape encodes v into JSON without escaping <, >, & into \u003c, etc.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ExtractObject pulls the first balanced JSON object out of model output.
// It tolerates markdown fences, leading prose and trailing commentary.
func ExtractObject(raw []byte) ([]byte, error) {
	s := strings.TrimSpace(string(raw))
	if i := strings.Index(s, "```"); i >= 0 {
		body := s[i+3:]
		// Drop the info string ("json") on the fence line.
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		s = strings.TrimSpace(body)
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, ErrNoObject
	}
	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, ErrNoObject
}

// UnescapeUnicodeString converts literal unicode escapes like "\u003e" left in
// a decoded string into the characters they name.
func UnescapeUnicodeString(s string) (string, error) {
	if !strings.Contains(s, `\u`) {
		return s, nil
	}
	esc := strings.ReplaceAll(s, `\\`, `\`)
	esc = strings.ReplaceAll(esc, `"`, `\"`)
	var out string
	if err := json.Unmarshal([]byte(`"`+esc+`"`), &out); err != nil {
		return "", err
	}
	return out, nil
}

// NormalizeJSONUnicode parses JSON bytes and recursively unescapes any remaining
// double-escaped unicode sequences (e.g. "\\u003e") inside string values.
// A payload that is itself a quoted JSON document is unwrapped first.
func NormalizeJSONUnicode(raw []byte) ([]byte, error) {
	var val any
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, err
	}
	for i := 0; i < 2; i++ {
		s, ok := val.(string)
		if !ok {
			break
		}
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			break
		}
		val = inner
	}
	return MarshalNoEscape(deepUnescape(val))
}

// UnmarshalFlex decodes model output into v with best effort: a quoted
// document is unwrapped, otherwise the embedded object is extracted, and
// leftover unicode escapes in string values are resolved.
func UnmarshalFlex(raw []byte, v any) error {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte(`"`)) {
		obj, err := ExtractObject(body)
		if err != nil {
			return err
		}
		body = obj
	}
	norm, err := NormalizeJSONUnicode(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(norm, v)
}

// deepUnescape recursively traverses maps and slices,
// unescaping unicode sequences in all string values.
func deepUnescape(v any) any {
	switch x := v.(type) {
	case string:
		if s, err := UnescapeUnicodeString(x); err == nil {
			return s
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = deepUnescape(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = deepUnescape(vv)
		}
		return out
	default:
		return v
	}
}
