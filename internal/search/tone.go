package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
)

// Tone buckets with their shade-matching synonym sets.
var toneSynonyms = map[string][]string{
	"dark":   {"deep", "rich", "dark", "berry", "plum", "cocoa", "espresso", "mahogany", "fig", "ember", "vesper", "brown"},
	"medium": {"tan", "medium", "rose", "mauve", "caramel", "spice", "warm", "neutral"},
	"light":  {"light", "fair", "pink", "peach", "nude", "cool", "soft"},
}

// Aliases accepted as an explicit skin_tone argument, mapped to a bucket.
var toneAliases = map[string]string{
	"dark": "dark", "deep": "dark", "darker": "dark", "deeper": "dark", "rich": "dark",
	"medium": "medium", "tan": "medium", "olive": "medium",
	"light": "light", "fair": "light", "pale": "light",
}

// Query substrings that imply a bucket, checked in bucket order.
var toneHints = []struct {
	bucket string
	terms  []string
}{
	{"dark", []string{"deep", "dark", "darker", "deeper", "rich"}},
	{"medium", []string{"tan", "medium", "olive"}},
	{"light", []string{"light", "fair", "pale"}},
}

// CanonicalTone maps a caller-supplied tone to its bucket, or "" when the
// value is unrecognized.
func CanonicalTone(tone string) string {
	return toneAliases[strings.ToLower(strings.TrimSpace(tone))]
}

// InferTone guesses a bucket from the raw query by substring match. First
// bucket to match wins.
func InferTone(query string) string {
	lowered := strings.ToLower(query)
	for _, hint := range toneHints {
		for _, term := range hint.terms {
			if strings.Contains(lowered, term) {
				return hint.bucket
			}
		}
	}
	return ""
}

// ToneTerms returns the synonym set for a bucket.
func ToneTerms(bucket string) []string {
	return toneSynonyms[bucket]
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldDiacritics strips combining marks so "Crème" tokenizes as "creme".
func foldDiacritics(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// tokenize splits a string into lowercase alphanumeric word tokens.
func tokenize(s string, into map[string]struct{}) {
	s = strings.ToLower(foldDiacritics(s))
	start := -1
	for i, r := range s {
		alnum := unicode.IsLetter(r) || unicode.IsDigit(r)
		if alnum && start < 0 {
			start = i
		}
		if !alnum && start >= 0 {
			into[s[start:i]] = struct{}{}
			start = -1
		}
	}
	if start >= 0 {
		into[s[start:]] = struct{}{}
	}
}

// TokenSet extracts the lowercase word tokens a product exposes for tone
// matching: title, type, handle, tags, option tokens, variant titles, and
// option values.
func TokenSet(p *catalog.Product) map[string]struct{} {
	tokens := map[string]struct{}{}
	tokenize(p.Title, tokens)
	tokenize(p.ProductType, tokens)
	tokenize(p.Handle, tokens)
	for _, tag := range p.Tags {
		tokenize(tag, tokens)
	}
	for _, tok := range p.OptionTokens {
		tokenize(tok, tokens)
	}
	for _, v := range p.Variants() {
		tokenize(v.Title, tokens)
		for _, value := range v.Options {
			tokenize(value, tokens)
		}
	}
	return tokens
}

// toneIntersection returns the bucket synonyms present in tokens, in the
// bucket's canonical order.
func toneIntersection(tokens map[string]struct{}, bucket string) []string {
	var matched []string
	for _, term := range toneSynonyms[bucket] {
		if _, ok := tokens[term]; ok {
			matched = append(matched, term)
		}
	}
	return matched
}
