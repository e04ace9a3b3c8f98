package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// lookup walks a dotted path through decoded JSON objects. Any step that is
// not an object, or a missing key, ends the walk.
func lookup(v interface{}, path string) (interface{}, bool) {
	cur := v
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// number accepts JSON numbers and numeric strings, and only finite values.
func number(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func firstNumber(v interface{}, paths []string) (float64, bool) {
	for _, p := range paths {
		if raw, ok := lookup(v, p); ok {
			if f, ok := number(raw); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func firstString(v interface{}, paths []string) (string, bool) {
	for _, p := range paths {
		if raw, ok := lookup(v, p); ok {
			if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
				return s, true
			}
		}
	}
	return "", false
}

func truthy(v interface{}, paths []string) bool {
	for _, p := range paths {
		raw, ok := lookup(v, p)
		if !ok {
			continue
		}
		switch b := raw.(type) {
		case bool:
			if b {
				return true
			}
		case map[string]interface{}, []interface{}:
			return true
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil && parsed {
				return true
			}
		}
	}
	return false
}

func objectAt(v interface{}, path string) (map[string]interface{}, bool) {
	raw, ok := lookup(v, path)
	if !ok {
		return nil, false
	}
	obj, ok := raw.(map[string]interface{})
	return obj, ok
}

func listAt(v interface{}, path string) []interface{} {
	raw, ok := lookup(v, path)
	if !ok {
		return nil
	}
	list, _ := raw.([]interface{})
	return list
}
