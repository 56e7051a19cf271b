package search

import (
	"testing"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
)

func TestCanonicalTone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"dark", "dark"},
		{"Deep", "dark"},
		{"deeper", "dark"},
		{"rich", "dark"},
		{"tan", "medium"},
		{"olive", "medium"},
		{"fair", "light"},
		{"pale", "light"},
		{"  light  ", "light"},
		{"unknown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CanonicalTone(tt.input); got != tt.expected {
				t.Errorf("CanonicalTone(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInferTone(t *testing.T) {
	tests := []struct {
		query    string
		expected string
	}{
		{"lipstick for deep skin", "dark"},
		{"darker shade foundation", "dark"},
		{"rich berry lipstick", "dark"},
		{"medium coverage for tan skin", "medium"},
		{"olive undertone concealer", "medium"},
		{"blush for fair skin", "light"},
		{"pale pink gloss", "light"},
		{"vitamin c serum", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := InferTone(tt.query); got != tt.expected {
				t.Errorf("InferTone(%q) = %q, want %q", tt.query, got, tt.expected)
			}
		})
	}
}

func TestInferToneBucketOrder(t *testing.T) {
	// "deep" and "light" both present: dark wins because it is checked first.
	if got := InferTone("deep shade with light shimmer"); got != "dark" {
		t.Errorf("InferTone = %q, want dark", got)
	}
}

func TestTokenSetFoldsDiacritics(t *testing.T) {
	p := &catalog.Product{
		Title: "Crème Brûlée Lip Tint",
		Tags:  []string{"Café-Noir"},
	}
	tokens := TokenSet(p)

	for _, want := range []string{"creme", "brulee", "lip", "tint", "cafe", "noir"} {
		if _, ok := tokens[want]; !ok {
			t.Errorf("token %q missing from %v", want, tokens)
		}
	}
}

func TestTokenSetIncludesVariantOptions(t *testing.T) {
	p := &catalog.Product{
		Title: "Velvet Lipstick",
		Data: map[string]any{
			"variants": []any{
				map[string]any{"id": "1", "title": "Espresso", "options": map[string]any{"Shade": "Deep Plum"}},
			},
		},
	}
	tokens := TokenSet(p)

	for _, want := range []string{"espresso", "deep", "plum", "velvet"} {
		if _, ok := tokens[want]; !ok {
			t.Errorf("token %q missing from %v", want, tokens)
		}
	}
}

func TestToneIntersectionCanonicalOrder(t *testing.T) {
	tokens := map[string]struct{}{"plum": {}, "deep": {}, "cocoa": {}}
	got := toneIntersection(tokens, "dark")

	// Synonym order is the bucket's declared order, not token order.
	want := []string{"deep", "plum", "cocoa"}
	if len(got) != len(want) {
		t.Fatalf("toneIntersection = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("toneIntersection[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
