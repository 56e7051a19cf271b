package tools

import (
	"fmt"
	"math"
	"strings"
)

// Args is the decoded JSON argument object of a tool call. Getters enforce
// shape: a present key with the wrong type is a caller error.
type Args map[string]any

// String returns a trimmed string argument, or "" when absent or null.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", badArgument("argument %q must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

// RequiredString returns a non-empty string argument.
func (a Args) RequiredString(key string) (string, error) {
	s, err := a.String(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", badArgument("argument %q is required", key)
	}
	return s, nil
}

// Int returns an integer argument, def when absent. JSON numbers must be
// integral.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, badArgument("argument %q must be an integer", key)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	}
	return 0, badArgument("argument %q must be an integer", key)
}

// CentsPtr returns an optional integer-cents argument.
func (a Args) CentsPtr(key string) (*int64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return nil, badArgument("argument %q must be integer cents", key)
		}
		cents := int64(n)
		return &cents, nil
	case int:
		cents := int64(n)
		return &cents, nil
	case int64:
		cents := n
		return &cents, nil
	}
	return nil, badArgument("argument %q must be integer cents", key)
}

// Bool returns a boolean argument, def when absent.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, badArgument("argument %q must be a boolean", key)
	}
	return b, nil
}

// StringSlice returns a list-of-strings argument.
func (a Args) StringSlice(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, badArgument("argument %q must be a list of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, badArgument("argument %q must be a list of strings", key)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// OptionMap returns a {name: value} string map argument.
func (a Args) OptionMap(key string) (map[string]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, badArgument("argument %q must be an object of option name to value", key)
	}
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		s, ok := value.(string)
		if !ok {
			s = fmt.Sprint(value)
		}
		out[name] = s
	}
	return out, nil
}

// ObjectSlice returns a list-of-objects argument.
func (a Args) ObjectSlice(key string) ([]map[string]any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, badArgument("argument %q must be a list of objects", key)
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, badArgument("argument %q must be a list of objects", key)
		}
		out = append(out, m)
	}
	return out, nil
}
