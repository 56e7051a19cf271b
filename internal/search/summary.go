package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
)

// preferredOptionNames are surfaced first in option previews; shade-bearing
// options matter most to the calling agent.
var preferredOptionNames = []string{"Shade", "Color"}

const (
	previewMaxValuesSearch = 5
	previewMaxValuesBrief  = 6
	previewMaxOptions      = 3
)

// ProductSummary builds the compact wire view of a product used in search
// results and listings.
func ProductSummary(p *catalog.Product, storeURL string) map[string]any {
	return map[string]any{
		"product_id":   p.ID,
		"handle":       p.Handle,
		"title":        p.Title,
		"product_type": p.ProductType,
		"vendor":       p.Vendor,
		"tags":         p.Tags,
		"price_min":    p.PriceMin,
		"price_max":    p.PriceMax,
		"available":    p.Available,
		"url":          catalog.CanonicalURL(p.URL, storeURL),
		"summary":      summaryText(p),
		"options":      optionPreviews(p, previewMaxValuesSearch),
	}
}

// ProductBrief is the denser single-product view served by the v2 brief
// tool: the summary plus longer option previews and the variant count.
func ProductBrief(p *catalog.Product, storeURL string) map[string]any {
	brief := ProductSummary(p, storeURL)
	brief["options"] = optionPreviews(p, previewMaxValuesBrief)
	brief["variant_count"] = len(p.Variants())
	brief["available_options"] = catalog.AvailableOptionValues(p)
	return brief
}

// summaryText prefers the short precomputed summary, then the LLM one, then
// a minimal synthesized sentence.
func summaryText(p *catalog.Product) string {
	if s := strings.TrimSpace(p.SummaryShort); s != "" {
		return s
	}
	if s := strings.TrimSpace(p.SummaryLLM); s != "" {
		return s
	}
	switch {
	case p.ProductType != "" && p.Vendor != "":
		return fmt.Sprintf("%s: %s by %s.", p.ProductType, p.Title, p.Vendor)
	case p.ProductType != "":
		return fmt.Sprintf("%s: %s.", p.ProductType, p.Title)
	default:
		return p.Title + "."
	}
}

// optionPreviews lists available option values, preferred options first, each
// capped at maxValues with a "+N more" tail. Options past the preview cap
// collapse into a single "+N options" entry.
func optionPreviews(p *catalog.Product, maxValues int) []map[string]any {
	values := catalog.AvailableOptionValues(p)
	if len(values) == 0 {
		return []map[string]any{}
	}

	names := orderedOptionNames(values)

	previews := make([]map[string]any, 0, previewMaxOptions+1)
	for i, name := range names {
		if i >= previewMaxOptions {
			previews = append(previews, map[string]any{
				"name":   fmt.Sprintf("+%d options", len(names)-previewMaxOptions),
				"values": []string{},
			})
			break
		}
		vals := values[name]
		preview := vals
		if len(vals) > maxValues {
			preview = append(append([]string{}, vals[:maxValues]...), fmt.Sprintf("+%d more", len(vals)-maxValues))
		}
		previews = append(previews, map[string]any{"name": name, "values": preview})
	}
	return previews
}

// orderedOptionNames sorts option names with the preferred shade options
// first, remaining names alphabetical.
func orderedOptionNames(values map[string][]string) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered := make([]string, 0, len(names))
	used := map[string]bool{}
	for _, preferred := range preferredOptionNames {
		for _, name := range names {
			if !used[name] && strings.EqualFold(name, preferred) {
				ordered = append(ordered, name)
				used[name] = true
			}
		}
	}
	for _, name := range names {
		if !used[name] {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

// shadeToneMatches scans preferred-option values for bucket synonyms and
// returns matched values (capped) plus the first match as the recommended
// option.
func shadeToneMatches(p *catalog.Product, bucket string, maxMatches int) (matches []string, recommended string) {
	if bucket == "" {
		return nil, ""
	}
	terms := toneSynonyms[bucket]

	values := catalog.AvailableOptionValues(p)
	for _, preferred := range preferredOptionNames {
		for name, vals := range values {
			if !strings.EqualFold(name, preferred) {
				continue
			}
			for _, value := range vals {
				lowered := strings.ToLower(value)
				for _, term := range terms {
					if strings.Contains(lowered, term) {
						if recommended == "" {
							recommended = value
						}
						matches = append(matches, value)
						break
					}
				}
				if len(matches) >= maxMatches {
					return matches, recommended
				}
			}
		}
	}
	return matches, recommended
}
