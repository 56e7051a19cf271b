// Package catalog provides read-only access to the indexed store and product
// tables, plus variant parsing and resolution over the raw product blob.
package catalog

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopmcp/storefront-mcp/internal/payload"
)

// Store is a tenant record. The indexer owns writes; this service only reads.
type Store struct {
	Slug         string
	Name         string
	URL          string
	Platform     string
	ProductCount int
	IndexedAt    *time.Time
	LastError    *string
}

// Product is a catalog row keyed by (store_slug, product_id).
type Product struct {
	StoreSlug        string
	ID               string
	Handle           string
	Title            string
	ProductType      string
	Vendor           string
	Tags             []string
	PriceMin         *int64
	PriceMax         *int64
	Available        bool
	URL              string
	SummaryShort     string
	SummaryLLM       string
	OptionTokens     []string
	IsCatalogProduct *bool
	Data             map[string]any
}

// Variant is a purchasable option tuple nested in the product blob.
type Variant struct {
	ID         string
	Title      string
	Available  bool
	PriceCents *int64
	Options    map[string]string
}

// Variants parses data.variants. Options come either from an explicit
// {name: value} mapping or from positional option1..option3 fields coerced
// to "Option N" keys. Prices follow the wire rule: integers are cents,
// floats and dotted decimal strings are major units.
func (p *Product) Variants() []Variant {
	if p == nil || p.Data == nil {
		return nil
	}
	raw, ok := p.Data["variants"].([]any)
	if !ok {
		return nil
	}

	out := make([]Variant, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}

		v := Variant{
			ID:        stringifyID(m["id"]),
			Title:     stringValue(m["title"]),
			Available: payload.ToBool(m["available"], true),
			Options:   variantOptions(m),
		}

		if price, ok := m["price_cents"]; ok {
			v.PriceCents = payload.ToCents(price, true)
		} else if price, ok := m["price"]; ok {
			v.PriceCents = payload.ToCents(price, true)
		}

		out = append(out, v)
	}
	return out
}

func variantOptions(m map[string]any) map[string]string {
	if raw, ok := m["options"].(map[string]any); ok && len(raw) > 0 {
		opts := make(map[string]string, len(raw))
		for name, value := range raw {
			if s := stringValue(value); s != "" {
				opts[name] = s
			}
		}
		if len(opts) > 0 {
			return opts
		}
	}

	opts := make(map[string]string, 3)
	for i := 1; i <= 3; i++ {
		if s := stringValue(m[fmt.Sprintf("option%d", i)]); s != "" {
			opts[fmt.Sprintf("Option %d", i)] = s
		}
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// NormalizedOptions lowercases option names and values for matching.
func (v *Variant) NormalizedOptions() map[string]string {
	if len(v.Options) == 0 {
		return nil
	}
	out := make(map[string]string, len(v.Options))
	for name, value := range v.Options {
		out[strings.ToLower(strings.TrimSpace(name))] = strings.ToLower(strings.TrimSpace(value))
	}
	return out
}

// NormalizeOptions lowercases a caller-supplied option request.
func NormalizeOptions(options map[string]string) map[string]string {
	if len(options) == 0 {
		return nil
	}
	out := make(map[string]string, len(options))
	for name, value := range options {
		out[strings.ToLower(strings.TrimSpace(name))] = strings.ToLower(strings.TrimSpace(value))
	}
	return out
}

// AvailableOptionValues collects option values from available variants only,
// keyed by option name with values sorted.
func AvailableOptionValues(p *Product) map[string][]string {
	seen := map[string]map[string]struct{}{}
	for _, v := range p.Variants() {
		if !v.Available {
			continue
		}
		for name, value := range v.Options {
			if value == "" {
				continue
			}
			if seen[name] == nil {
				seen[name] = map[string]struct{}{}
			}
			seen[name][value] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	out := make(map[string][]string, len(seen))
	for name, values := range seen {
		list := make([]string, 0, len(values))
		for value := range values {
			list = append(list, value)
		}
		sort.Strings(list)
		out[name] = list
	}
	return out
}

// CanonicalURL resolves a catalog URL against the store base. Absolute and
// protocol-relative URLs pass through; empty inputs stay empty.
func CanonicalURL(raw, storeURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	base := strings.TrimRight(strings.TrimSpace(storeURL), "/")
	if base == "" {
		return raw
	}
	return base + "/" + strings.TrimLeft(raw, "/")
}

func stringifyID(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	}
	return fmt.Sprint(value)
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
