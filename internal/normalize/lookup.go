// Package normalize resolves the raw, loosely-typed invoice record produced
// by upstream extraction into the typed domain model. Upstream output schemas
// have drifted across versions, so every logical field resolves through an
// ordered list of candidate key paths; the first path that yields a value
// wins. New upstream shapes are added by extending a path list, not by
// touching the mapping logic.
package normalize

import (
	"strconv"
	"strings"
)

// lookup is one field strategy: candidate dot paths, tried in order.
// Numeric path segments index into arrays ("orders.0.date").
type lookup struct {
	paths []string
}

func paths(p ...string) lookup {
	return lookup{paths: p}
}

// resolve returns the first value found under any candidate path.
func (l lookup) resolve(raw map[string]any) (any, bool) {
	for _, p := range l.paths {
		if v, ok := valueAt(raw, p); ok {
			return v, true
		}
	}
	return nil, false
}

// first returns the first candidate path, used for error reporting.
func (l lookup) first() string {
	if len(l.paths) == 0 {
		return ""
	}
	return l.paths[0]
}

// valueAt walks a dot path through nested maps and arrays. Missing keys, nil
// values and absent-marker strings ("", "null", "n/a") count as absent: the
// upstream emits these for fields it could not extract, and they must not
// shadow later candidates or end up as literal element text.
func valueAt(raw map[string]any, path string) (any, bool) {
	var current any = raw
	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	if s, ok := current.(string); ok && IsAbsent(s) {
		return nil, false
	}
	return current, true
}

// section returns a nested map, or nil when absent.
func section(raw map[string]any, path string) map[string]any {
	v, ok := valueAt(raw, path)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// list returns a nested array, or nil when absent.
func list(raw map[string]any, path string) []any {
	v, ok := valueAt(raw, path)
	if !ok {
		return nil
	}
	a, _ := v.([]any)
	return a
}
