// ABOUTME: Typed access to the free-form parameter map of a request
// ABOUTME: JSON numbers arrive as float64 and are coerced explicitly
package dispatch

import (
	"github.com/florinutz/narra/internal/narraerr"
)

type params map[string]any

func (p params) str(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok && v != ""
}

// requireStr errors with a validation kind when the key is missing
func (p params) requireStr(key string) (string, error) {
	v, ok := p.str(key)
	if !ok {
		return "", narraerr.Validation("missing required parameter %q", key)
	}
	return v, nil
}

func (p params) strOr(key, fallback string) string {
	if v, ok := p.str(key); ok {
		return v
	}
	return fallback
}

func (p params) intOr(key string, fallback int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func (p params) intPtr(key string) *int {
	switch v := p[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	default:
		return nil
	}
}

func (p params) floatOr(key string, fallback float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func (p params) boolOr(key string, fallback bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return fallback
}

func (p params) strs(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// strMap reads a map of string -> list of strings (character profiles)
func (p params) strMap(key string) map[string][]string {
	raw, ok := p[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		switch items := v.(type) {
		case string:
			out[k] = []string{items}
		case []any:
			for _, item := range items {
				if s, ok := item.(string); ok {
					out[k] = append(out[k], s)
				}
			}
		case []string:
			out[k] = items
		}
	}
	return out
}

func (p params) sub(key string) params {
	if v, ok := p[key].(map[string]any); ok {
		return params(v)
	}
	return nil
}

// subs reads a list of nested parameter maps (batch item specs)
func (p params) subs(key string) []params {
	raw, ok := p[key].([]any)
	if !ok {
		return nil
	}
	out := make([]params, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, params(m))
		}
	}
	return out
}
