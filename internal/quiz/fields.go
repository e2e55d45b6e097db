package quiz

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// fieldTable maps a canonical field to the payload fields it may be read
// from, in precedence order. Dotted names address nested objects.
type fieldTable map[string][]string

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// EnsureList accepts a bare list, an object wrapping a list under "data", or
// anything else (which yields an empty list).
func EnsureList(payload any) []any {
	switch value := payload.(type) {
	case []any:
		return value
	case map[string]any:
		if data, ok := value["data"].([]any); ok {
			return data
		}
	}
	return []any{}
}

func asObject(payload any) map[string]any {
	obj, _ := payload.(map[string]any)
	return obj
}

func lookup(obj map[string]any, path string) (any, bool) {
	current := any(obj)
	for _, part := range strings.Split(path, ".") {
		next, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = next[part]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

func (t fieldTable) raw(obj map[string]any, field string) (any, bool) {
	for _, name := range t[field] {
		if value, ok := lookup(obj, name); ok {
			return value, true
		}
	}
	return nil, false
}

// str returns the first non-blank string candidate. Numbers are formatted.
func (t fieldTable) str(obj map[string]any, field string) (string, bool) {
	for _, name := range t[field] {
		value, ok := lookup(obj, name)
		if !ok {
			continue
		}
		var text string
		switch v := value.(type) {
		case string:
			text = v
		case json.Number:
			text = v.String()
		case float64:
			text = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			text = strconv.FormatBool(v)
		}
		if strings.TrimSpace(text) != "" {
			return text, true
		}
	}
	return "", false
}

func (t fieldTable) integer(obj map[string]any, field string) (int64, bool) {
	for _, name := range t[field] {
		value, ok := lookup(obj, name)
		if !ok {
			continue
		}
		if n, ok := toInt(value); ok {
			return n, true
		}
	}
	return 0, false
}

// positiveInteger skips zero and negative candidates, so an empty "duration"
// falls through to "timeLimit".
func (t fieldTable) positiveInteger(obj map[string]any, field string) (int64, bool) {
	for _, name := range t[field] {
		value, ok := lookup(obj, name)
		if !ok {
			continue
		}
		if n, ok := toInt(value); ok && n > 0 {
			return n, true
		}
	}
	return 0, false
}

func (t fieldTable) number(obj map[string]any, field string) (float64, bool) {
	for _, name := range t[field] {
		value, ok := lookup(obj, name)
		if !ok {
			continue
		}
		if f, ok := toFloat(value); ok {
			return f, true
		}
	}
	return 0, false
}

func (t fieldTable) flag(obj map[string]any, field string) (bool, bool) {
	for _, name := range t[field] {
		value, ok := lookup(obj, name)
		if !ok {
			continue
		}
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return parsed, true
			}
		case json.Number, float64:
			if n, ok := toInt(v); ok {
				return n != 0, true
			}
		}
	}
	return false, false
}

func (t fieldTable) timestamp(obj map[string]any, field string) (time.Time, bool) {
	for _, name := range t[field] {
		value, ok := lookup(obj, name)
		if !ok {
			continue
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		if parsed, err := ParseTime(text); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// ParseTime accepts the timestamp layouts the backend has been seen to emit.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
