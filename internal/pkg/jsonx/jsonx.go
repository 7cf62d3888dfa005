// Package jsonx recovers JSON values from noisy command output.
package jsonx

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\n(.*?)```")

// Decode tries, in order: the whole input, fenced code blocks (last first),
// each line from the bottom up, and finally the outermost brace slice.
func Decode[T any](raw string) (T, bool) {
	var zero T
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return zero, false
	}

	var parsed T
	if json.Unmarshal([]byte(trimmed), &parsed) == nil {
		return parsed, true
	}

	fences := fencePattern.FindAllStringSubmatch(trimmed, -1)
	for i := len(fences) - 1; i >= 0; i-- {
		var candidate T
		if json.Unmarshal([]byte(strings.TrimSpace(fences[i][1])), &candidate) == nil {
			return candidate, true
		}
	}

	lines := strings.Split(trimmed, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || (line[0] != '{' && line[0] != '[') {
			continue
		}
		var candidate T
		if json.Unmarshal([]byte(line), &candidate) == nil {
			return candidate, true
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		var candidate T
		if json.Unmarshal([]byte(trimmed[start:end+1]), &candidate) == nil {
			return candidate, true
		}
	}
	return zero, false
}

// Object decodes the first recoverable JSON object in raw.
func Object(raw string) (map[string]interface{}, bool) {
	obj, ok := Decode[map[string]interface{}](raw)
	return obj, ok && obj != nil
}

// HasObject reports whether raw carries a recoverable JSON object.
func HasObject(raw string) bool {
	_, ok := Object(raw)
	return ok
}

// Lines decodes every line of raw that is a standalone JSON object, in order.
func Lines(raw string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var obj map[string]interface{}
		if json.Unmarshal([]byte(line), &obj) == nil {
			out = append(out, obj)
		}
	}
	return out
}

// String returns v when it is a non-empty string.
func String(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Float coerces JSON numbers and numeric strings such as "7", "7.5" or "7/10".
func Float(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if idx := strings.Index(s, "/"); idx > 0 {
			s = strings.TrimSpace(s[:idx])
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case map[string]interface{}:
		for _, key := range []string{"score", "value", "rating"} {
			if inner, ok := n[key]; ok {
				return Float(inner)
			}
		}
	}
	return 0, false
}

// Field returns the first present key from keys.
func Field(obj map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
