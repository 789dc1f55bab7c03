package evidence

import (
	"encoding/json"
	"strings"
)

// decodeList pulls a JSON list of T out of free model output. It accepts a
// bare array, or an object holding the array under one of keys, either as the
// whole text or as the first balanced JSON block inside it.
func decodeList[T any](raw string, keys ...string) ([]T, error) {
	text := stripFences(raw)
	if out, ok := tryDecode[T](text, keys); ok {
		return out, nil
	}
	if block := firstJSONBlock(text); block != "" {
		if out, ok := tryDecode[T](block, keys); ok {
			return out, nil
		}
	}
	return nil, ErrNoJSON
}

func tryDecode[T any](text string, keys []string) ([]T, bool) {
	var list []T
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list, true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, &list); err == nil {
			return list, true
		}
	}
	return nil, false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// firstJSONBlock returns the first balanced [...] or {...} region, skipping
// brackets inside string literals.
func firstJSONBlock(s string) string {
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
