package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
)

func shadeProduct(shades ...any) *catalog.Product {
	variants := make([]any, 0, len(shades))
	for i, shade := range shades {
		variants = append(variants, map[string]any{
			"id":      i + 1,
			"options": map[string]any{"Shade": shade},
		})
	}
	return &catalog.Product{
		ID:     "1",
		Handle: "velvet-lipstick",
		Title:  "Velvet Lipstick",
		URL:    "/products/velvet-lipstick",
		Data:   map[string]any{"variants": variants},
	}
}

func TestProductSummaryShape(t *testing.T) {
	p := shadeProduct("Espresso", "Fig")
	p.ProductType = "Lipstick"
	p.Vendor = "Acme"

	summary := ProductSummary(p, "https://acme.example")

	assert.Equal(t, "1", summary["product_id"])
	assert.Equal(t, "https://acme.example/products/velvet-lipstick", summary["url"])
	assert.Equal(t, "Lipstick: Velvet Lipstick by Acme.", summary["summary"])

	options := summary["options"].([]map[string]any)
	require.Len(t, options, 1)
	assert.Equal(t, "Shade", options[0]["name"])
	assert.ElementsMatch(t, []string{"Espresso", "Fig"}, options[0]["values"])
}

func TestSummaryTextPrecedence(t *testing.T) {
	p := &catalog.Product{Title: "Serum", SummaryShort: "Short take.", SummaryLLM: "Long take."}
	assert.Equal(t, "Short take.", summaryText(p))

	p.SummaryShort = ""
	assert.Equal(t, "Long take.", summaryText(p))

	p.SummaryLLM = ""
	assert.Equal(t, "Serum.", summaryText(p))
}

func TestOptionPreviewsValueTail(t *testing.T) {
	p := shadeProduct("A", "B", "C", "D", "E", "F", "G")

	previews := optionPreviews(p, previewMaxValuesSearch)
	require.Len(t, previews, 1)

	values := previews[0]["values"].([]string)
	require.Len(t, values, previewMaxValuesSearch+1)
	assert.Equal(t, "+2 more", values[len(values)-1])
}

func TestOptionPreviewsCollapsesExtraOptions(t *testing.T) {
	p := &catalog.Product{
		ID: "1",
		Data: map[string]any{
			"variants": []any{map[string]any{
				"id": 1,
				"options": map[string]any{
					"Shade": "Fig", "Size": "Full", "Finish": "Matte", "Bundle": "Solo",
				},
			}},
		},
	}

	previews := optionPreviews(p, previewMaxValuesSearch)
	require.Len(t, previews, previewMaxOptions+1)
	assert.Equal(t, "Shade", previews[0]["name"], "preferred option first")
	assert.Equal(t, "+1 options", previews[previewMaxOptions]["name"])
}

func TestShadeToneMatches(t *testing.T) {
	p := shadeProduct("Deep Plum", "Fair Rose", "Espresso", "Cocoa Bronze")

	matches, recommended := shadeToneMatches(p, "dark", maxToneMatchesInternal)
	assert.NotEmpty(t, recommended)
	assert.Len(t, matches, maxToneMatchesInternal)
	assert.Equal(t, matches[0], recommended)
	assert.NotContains(t, matches, "Fair Rose")

	matches, recommended = shadeToneMatches(p, "", maxToneMatchesInternal)
	assert.Empty(t, matches)
	assert.Empty(t, recommended)
}

func TestShadeToneMatchesUnavailableVariantsIgnored(t *testing.T) {
	p := &catalog.Product{
		ID: "1",
		Data: map[string]any{
			"variants": []any{
				map[string]any{"id": 1, "available": false, "options": map[string]any{"Shade": "Espresso"}},
				map[string]any{"id": 2, "available": true, "options": map[string]any{"Shade": "Fair Pink"}},
			},
		},
	}

	matches, _ := shadeToneMatches(p, "dark", maxToneMatchesInternal)
	assert.Empty(t, matches, "sold-out shades are not recommended")
}
