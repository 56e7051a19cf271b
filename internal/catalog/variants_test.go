package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobProduct(variants ...map[string]any) *Product {
	raw := make([]any, 0, len(variants))
	for _, v := range variants {
		raw = append(raw, v)
	}
	return &Product{
		StoreSlug: "acme",
		ID:        "1",
		Handle:    "velvet-lipstick",
		Title:     "Velvet Lipstick",
		Data:      map[string]any{"variants": raw},
	}
}

func TestVariantsParsing(t *testing.T) {
	p := blobProduct(
		map[string]any{
			"id":    float64(11),
			"title": "Espresso",
			"price": float64(1999),
			"options": map[string]any{
				"Shade": "Espresso",
			},
		},
		map[string]any{
			"id":        "12",
			"title":     "Fig / Full",
			"available": "false",
			"price":     "24.50",
			"option1":   "Fig",
			"option2":   "Full",
		},
	)

	variants := p.Variants()
	require.Len(t, variants, 2)

	first := variants[0]
	assert.Equal(t, "11", first.ID, "numeric ids stringify without exponent")
	assert.True(t, first.Available, "availability defaults to true")
	require.NotNil(t, first.PriceCents)
	assert.Equal(t, int64(1999), *first.PriceCents, "integral price is already cents")
	assert.Equal(t, map[string]string{"Shade": "Espresso"}, first.Options)

	second := variants[1]
	assert.False(t, second.Available)
	require.NotNil(t, second.PriceCents)
	assert.Equal(t, int64(2450), *second.PriceCents, "dotted price is major units")
	assert.Equal(t, map[string]string{"Option 1": "Fig", "Option 2": "Full"}, second.Options)
}

func TestVariantsMissingBlob(t *testing.T) {
	assert.Nil(t, (&Product{}).Variants())
	assert.Nil(t, (&Product{Data: map[string]any{"variants": "bogus"}}).Variants())
}

func TestResolveVariantByID(t *testing.T) {
	p := blobProduct(
		map[string]any{"id": "a", "available": true},
		map[string]any{"id": "b", "available": true},
	)

	v, code := ResolveVariant(p, "b", nil)
	require.Empty(t, code)
	assert.Equal(t, "b", v.ID)

	_, code = ResolveVariant(p, "zzz", nil)
	assert.Equal(t, CodeVariantNotFound, code)
}

func TestResolveVariantByOptions(t *testing.T) {
	p := blobProduct(
		map[string]any{"id": "a", "options": map[string]any{"Shade": "Fig", "Size": "Full"}},
		map[string]any{"id": "b", "options": map[string]any{"Shade": "Espresso", "Size": "Full"}},
	)

	// Case-insensitive superset match on a partial request.
	v, code := ResolveVariant(p, "", map[string]string{"shade": "ESPRESSO"})
	require.Empty(t, code)
	assert.Equal(t, "b", v.ID)

	_, code = ResolveVariant(p, "", map[string]string{"Shade": "Cocoa"})
	assert.Equal(t, CodeOptionsNotFound, code)
}

func TestResolveVariantDefaults(t *testing.T) {
	single := blobProduct(map[string]any{"id": "only"})
	v, code := ResolveVariant(single, "", nil)
	require.Empty(t, code)
	assert.Equal(t, "only", v.ID)

	oneAvailable := blobProduct(
		map[string]any{"id": "a", "available": false},
		map[string]any{"id": "b", "available": true},
	)
	v, code = ResolveVariant(oneAvailable, "", nil)
	require.Empty(t, code)
	assert.Equal(t, "b", v.ID)

	ambiguous := blobProduct(
		map[string]any{"id": "a"},
		map[string]any{"id": "b"},
	)
	_, code = ResolveVariant(ambiguous, "", nil)
	assert.Equal(t, CodeVariantSelectionRequired, code)
}

func TestResolveVariantRejections(t *testing.T) {
	_, code := ResolveVariant(blobProduct(), "", nil)
	assert.Equal(t, CodeNoVariants, code)

	soldOut := blobProduct(map[string]any{"id": "a", "available": false})
	_, code = ResolveVariant(soldOut, "a", nil)
	assert.Equal(t, CodeVariantUnavailable, code)

	noID := blobProduct(map[string]any{"title": "Nameless"})
	_, code = ResolveVariant(noID, "", nil)
	assert.Equal(t, CodeMissingVariantID, code)
}

func TestAvailableOptionValues(t *testing.T) {
	p := blobProduct(
		map[string]any{"id": "a", "options": map[string]any{"Shade": "Fig"}},
		map[string]any{"id": "b", "options": map[string]any{"Shade": "Espresso"}},
		map[string]any{"id": "c", "available": false, "options": map[string]any{"Shade": "Cocoa"}},
	)

	values := AvailableOptionValues(p)
	require.Contains(t, values, "Shade")
	assert.Equal(t, []string{"Espresso", "Fig"}, values["Shade"], "sorted, sold-out shades excluded")
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		storeURL string
		expected string
	}{
		{"Absolute passes through", "https://other.example/p/1", "https://acme.example", "https://other.example/p/1"},
		{"Protocol relative", "//cdn.example/p/1", "https://acme.example", "https://cdn.example/p/1"},
		{"Relative joins base", "/products/serum", "https://acme.example/", "https://acme.example/products/serum"},
		{"No base", "/products/serum", "", "/products/serum"},
		{"Empty stays empty", "", "https://acme.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalURL(tt.raw, tt.storeURL); got != tt.expected {
				t.Errorf("CanonicalURL(%q, %q) = %q, want %q", tt.raw, tt.storeURL, got, tt.expected)
			}
		})
	}
}
