// Package payload normalizes tool responses to the wire-canonical shape:
// prices are integer cents, availability-like fields are booleans, keys with
// nil values are omitted, and array-like keys are never null.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// arrayKeyHints are keys that must always serialize as arrays, even when the
// underlying value is nil. Callers can extend the set per call.
var arrayKeyHints = map[string]struct{}{
	"products":      {},
	"results":       {},
	"variants":      {},
	"tags":          {},
	"images":        {},
	"top_tags":      {},
	"product_types": {},
	"options":       {},
	"values":        {},
}

type omitType struct{}

var omit = omitType{}

// Format walks a JSON-like tree (maps, slices, scalars, time.Time, pointers)
// and applies the normalization rules. extraArrayKeys supplements the built-in
// array-key hint set for this call.
func Format(value any, extraArrayKeys ...string) any {
	keys := arrayKeyHints
	if len(extraArrayKeys) > 0 {
		keys = make(map[string]struct{}, len(arrayKeyHints)+len(extraArrayKeys))
		for k := range arrayKeyHints {
			keys[k] = struct{}{}
		}
		for _, k := range extraArrayKeys {
			keys[k] = struct{}{}
		}
	}

	normalized := normalize(value, "", keys)
	if normalized == omit {
		return map[string]any{}
	}
	return normalized
}

// DeepCopy clones a normalized payload via a JSON round trip. Used when
// returning cached responses so callers cannot mutate shared state. Numbers
// decode as json.Number so integer cents stay integral and a second Format
// pass leaves the tree unchanged.
func DeepCopy(value any) any {
	raw, err := json.Marshal(value)
	if err != nil {
		return value
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return value
	}
	return out
}

func normalize(value any, key string, arrayKeys map[string]struct{}) any {
	value = toPlain(value)

	if value == nil {
		if key != "" {
			if _, ok := arrayKeys[key]; ok {
				return []any{}
			}
		}
		return omit
	}

	if key != "" {
		lowered := strings.ToLower(key)
		if strings.Contains(lowered, "price") {
			value = priceToCents(value, lowered)
		}
		if strings.Contains(lowered, "available") || strings.Contains(lowered, "availability") {
			value = ToBool(value, false)
		}
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for childKey, childValue := range v {
			normalized := normalize(childValue, childKey, arrayKeys)
			if normalized == omit {
				if _, ok := arrayKeys[childKey]; ok {
					out[childKey] = []any{}
				}
				continue
			}
			out[childKey] = normalized
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			normalized := normalize(item, "", arrayKeys)
			if normalized == omit {
				continue
			}
			out = append(out, normalized)
		}
		return out
	}

	return value
}

// toPlain coerces structured values to plain JSON-friendly forms: pointers
// are dereferenced, time.Time becomes ISO-8601, typed slices and maps become
// []any / map[string]any.
func toPlain(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return v
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	case []string:
		out := make([]any, 0, len(v))
		for _, s := range v {
			out = append(out, s)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(v))
		for _, m := range v {
			out = append(out, m)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return toPlain(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for _, mk := range rv.MapKeys() {
			out[fmt.Sprint(mk.Interface())] = rv.MapIndex(mk).Interface()
		}
		return out
	}

	return value
}

// priceToCents coerces a value under a price-like key to integer cents. Keys
// containing "cents" are treated as already denominated in cents.
func priceToCents(value any, loweredKey string) any {
	keyIsCents := strings.Contains(loweredKey, "cents")

	switch v := value.(type) {
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return floatToCents(float64(v), keyIsCents)
	case float64:
		return floatToCents(v, keyIsCents)
	case json.Number:
		return priceToCents(numberToValue(v), loweredKey)
	case string:
		stripped := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if stripped == "" {
			return v
		}
		cents, ok := ParseDecimalCents(stripped, keyIsCents)
		if !ok {
			return v
		}
		return cents
	}

	return value
}

func floatToCents(v float64, keyIsCents bool) int64 {
	if keyIsCents {
		return roundHalfUp(v)
	}
	return roundHalfUp(v * 100)
}

// roundHalfUp rounds half away from zero, matching decimal half-up semantics.
func roundHalfUp(v float64) int64 {
	if v >= 0 {
		return int64(math.Floor(v + 0.5))
	}
	return -int64(math.Floor(-v + 0.5))
}

func numberToValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// ParseDecimalCents converts a decimal string to integer cents using exact
// digit arithmetic (no float round trip). Strings without a decimal point are
// passed through as integer values already in cents, unless keyIsCents forces
// plain integral rounding.
func ParseDecimalCents(s string, keyIsCents bool) (int64, bool) {
	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}

	intPart := s
	fracPart := ""
	hasDot := false
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		hasDot = true
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, false
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	whole := int64(0)
	for _, r := range intPart {
		whole = whole*10 + int64(r-'0')
	}

	var cents int64
	switch {
	case keyIsCents || !hasDot:
		// Already cents (or an integral count of cents): round to integer.
		cents = whole
		if keyIsCents && hasDot && len(fracPart) > 0 && fracPart[0] >= '5' {
			cents++
		}
	default:
		// Major units with a decimal point: shift two places, half-up.
		frac := fracPart + "00"
		cents = whole*100 + int64(frac[0]-'0')*10 + int64(frac[1]-'0')
		if len(fracPart) > 2 && fracPart[2] >= '5' {
			cents++
		}
	}

	if negative {
		cents = -cents
	}
	return cents, true
}

// ToCents coerces an arbitrary value to integer cents. assumeCentsForInt
// controls whether bare integers are read as cents (catalog columns) or major
// units (raw variant prices). Returns nil when the value has no numeric
// reading.
func ToCents(value any, assumeCentsForInt bool) *int64 {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		n := int64(0)
		if v {
			n = 1
		}
		return &n
	case int:
		return intCents(int64(v), assumeCentsForInt)
	case int32:
		return intCents(int64(v), assumeCentsForInt)
	case int64:
		return intCents(v, assumeCentsForInt)
	case float32:
		n := roundHalfUp(float64(v) * 100)
		return &n
	case float64:
		// jsonb numbers arrive as float64; integral values follow the int rule.
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return intCents(int64(v), assumeCentsForInt)
		}
		n := roundHalfUp(v * 100)
		return &n
	case json.Number:
		return ToCents(numberToValue(v), assumeCentsForInt)
	case string:
		stripped := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if stripped == "" {
			return nil
		}
		if strings.Contains(stripped, ".") {
			cents, ok := ParseDecimalCents(stripped, false)
			if !ok {
				return nil
			}
			return &cents
		}
		cents, ok := ParseDecimalCents(stripped, false)
		if !ok {
			return nil
		}
		if !assumeCentsForInt {
			cents *= 100
		}
		return &cents
	case *int64:
		if v == nil {
			return nil
		}
		return intCents(*v, assumeCentsForInt)
	}
	return nil
}

func intCents(v int64, assumeCents bool) *int64 {
	if !assumeCents {
		v *= 100
	}
	return &v
}

var truthyTokens = map[string]bool{
	"true": true, "t": true, "1": true, "yes": true, "y": true,
	"available": true, "in stock": true, "in_stock": true, "instock": true,
}

var falsyTokens = map[string]bool{
	"false": true, "f": true, "0": true, "no": true, "n": true,
	"unavailable": true, "out of stock": true, "out_of_stock": true, "outofstock": true,
}

// ToBool coerces availability-like values: recognized string tokens first,
// generic truthiness otherwise.
func ToBool(value any, fallback bool) bool {
	switch v := value.(type) {
	case nil:
		return fallback
	case bool:
		return v
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fallback
		}
		return f != 0
	case string:
		normalized := strings.ToLower(strings.TrimSpace(v))
		if truthyTokens[normalized] {
			return true
		}
		if falsyTokens[normalized] {
			return false
		}
		return normalized != ""
	case *bool:
		if v == nil {
			return fallback
		}
		return *v
	}
	return fallback
}
