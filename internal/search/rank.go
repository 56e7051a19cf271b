package search

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
)

// Scoring weights for the v2 ranker.
const (
	weightRelevance    = 0.50
	weightBudgetFit    = 0.20
	weightAvailability = 0.15
	weightToneFit      = 0.10
	weightBase         = 0.05
)

// maxPayloadBytes caps the serialized v2 response.
const maxPayloadBytes = 12 * 1024

const maxToneMatchesInternal = 3
const maxToneMatchesEmitted = 2

// Sort modes accepted by the v2 path.
const (
	SortBestMatch      = "best_match"
	SortPriceLowToHigh = "price_low_to_high"
	SortPriceHighToLow = "price_high_to_low"
)

// NormalizeSort maps a caller-supplied sort to a known mode, defaulting to
// best_match.
func NormalizeSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case SortPriceLowToHigh:
		return SortPriceLowToHigh
	case SortPriceHighToLow:
		return SortPriceHighToLow
	default:
		return SortBestMatch
	}
}

// RankOptions parameterizes the v2 scoring pass.
type RankOptions struct {
	AvailableOnly  bool
	BudgetMinCents *int64
	BudgetMaxCents *int64
	Tone           string // canonical bucket or ""
	Sort           string
	Limit          int
}

type rankedResult struct {
	Product     *catalog.Product
	Relevance   float64
	Score       float64
	ToneMatch   bool
	ToneMatches []string
	Recommended string
	FitSignals  []string
	WhyMatch    string
}

// rankCandidates scores fused candidates in order, excluding unavailable,
// over-budget, and zero-relevance rows with per-reason counts. The survivors
// carry score, fit signals, and the assembled why_match sentence.
func rankCandidates(products []*catalog.Product, relevance map[string]float64, opts RankOptions) ([]rankedResult, map[string]int) {
	excluded := map[string]int{
		"unavailable":   0,
		"over_budget":   0,
		"low_relevance": 0,
	}
	hasBudget := opts.BudgetMinCents != nil || opts.BudgetMaxCents != nil

	var ranked []rankedResult
	for _, p := range products {
		rel := relevance[p.ID]
		if rel <= 0 {
			excluded["low_relevance"]++
			continue
		}
		if opts.AvailableOnly && !p.Available {
			excluded["unavailable"]++
			continue
		}
		if budgetViolated(p, opts.BudgetMinCents, opts.BudgetMaxCents) {
			excluded["over_budget"]++
			continue
		}

		toneFit, toneMatch := toneFitScore(p, opts.Tone)
		toneMatches, recommended := shadeToneMatches(p, opts.Tone, maxToneMatchesInternal)

		score := weightRelevance*rel +
			weightBudgetFit*budgetFitScore(p, opts.BudgetMaxCents, hasBudget) +
			weightAvailability*availabilityFit(p) +
			weightToneFit*toneFit +
			weightBase

		r := rankedResult{
			Product:     p,
			Relevance:   rel,
			Score:       score,
			ToneMatch:   toneMatch,
			ToneMatches: toneMatches,
			Recommended: recommended,
		}
		r.FitSignals = fitSignals(&r, opts)
		r.WhyMatch = whyMatch(&r)
		ranked = append(ranked, r)
	}

	sortRanked(ranked, opts.Sort)
	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked, excluded
}

func budgetViolated(p *catalog.Product, budgetMin, budgetMax *int64) bool {
	if budgetMax != nil && p.PriceMin != nil && *p.PriceMin > *budgetMax {
		return true
	}
	if budgetMin != nil && p.PriceMax != nil && *p.PriceMax < *budgetMin {
		return true
	}
	return false
}

// budgetFitScore: 1.0 with no constraint, 0.5 when both prices are unknown,
// otherwise a ratio of the price floor to the budget ceiling with a 0.1
// floor. Hard violations never reach this point.
func budgetFitScore(p *catalog.Product, budgetMax *int64, hasBudget bool) float64 {
	if !hasBudget {
		return 1.0
	}
	if p.PriceMin == nil && p.PriceMax == nil {
		return 0.5
	}
	if budgetMax == nil {
		return 1.0
	}
	floor := p.PriceMin
	if floor == nil {
		floor = p.PriceMax
	}
	ceiling := *budgetMax
	if ceiling < 1 {
		ceiling = 1
	}
	fit := 1.0 - (float64(*floor)/float64(ceiling))*0.5
	return math.Max(0.1, fit)
}

func availabilityFit(p *catalog.Product) float64 {
	if p.Available {
		return 1.0
	}
	return 0.0
}

// toneFitScore: 0.5 with no tone, 1.0 when the product's token set
// intersects the bucket synonyms (with a tone-match flag), 0.2 otherwise.
func toneFitScore(p *catalog.Product, bucket string) (float64, bool) {
	if bucket == "" {
		return 0.5, false
	}
	if len(toneIntersection(TokenSet(p), bucket)) > 0 {
		return 1.0, true
	}
	return 0.2, false
}

func fitSignals(r *rankedResult, opts RankOptions) []string {
	signals := []string{"intent_match"}
	if opts.BudgetMaxCents != nil && r.Product.PriceMin != nil && *r.Product.PriceMin <= *opts.BudgetMaxCents {
		signals = append(signals, "under_budget")
	}
	if r.Product.Available {
		signals = append(signals, "in_stock")
	}
	if r.ToneMatch {
		if opts.Tone == "dark" {
			signals = append(signals, "deeper_shade_signal")
		} else {
			signals = append(signals, "skin_tone_signal")
		}
	}
	if r.Recommended != "" {
		signals = append(signals, "recommended_option")
	}
	return signals
}

func whyMatch(r *rankedResult) string {
	clauses := []string{"Matches query intent"}
	for _, signal := range r.FitSignals {
		if signal == "under_budget" {
			clauses = append(clauses, "within budget")
			break
		}
	}
	if r.ToneMatch {
		clauses = append(clauses, "shade fit signal detected")
	}
	if len(r.ToneMatches) > 0 {
		preview := r.ToneMatches
		if len(preview) > maxToneMatchesEmitted {
			preview = preview[:maxToneMatchesEmitted]
		}
		clauses = append(clauses, "tone-aligned options: "+strings.Join(preview, ", "))
	}
	return strings.Join(clauses, "; ")
}

// sortRanked orders results per the requested mode. Missing prices sort last
// in both price modes.
func sortRanked(ranked []rankedResult, mode string) {
	switch mode {
	case SortPriceLowToHigh:
		sort.SliceStable(ranked, func(i, j int) bool {
			pi, pj := priceOrInf(ranked[i].Product.PriceMin), priceOrInf(ranked[j].Product.PriceMin)
			if pi != pj {
				return pi < pj
			}
			return ranked[i].Score > ranked[j].Score
		})
	case SortPriceHighToLow:
		sort.SliceStable(ranked, func(i, j int) bool {
			pi, pj := priceOrNeg(ranked[i].Product.PriceMax), priceOrNeg(ranked[j].Product.PriceMax)
			if pi != pj {
				return pi > pj
			}
			return ranked[i].Score > ranked[j].Score
		})
	default:
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Score != ranked[j].Score {
				return ranked[i].Score > ranked[j].Score
			}
			return ranked[i].Product.Title < ranked[j].Product.Title
		})
	}
}

func priceOrInf(p *int64) float64 {
	if p == nil {
		return math.Inf(1)
	}
	return float64(*p)
}

func priceOrNeg(p *int64) float64 {
	if p == nil {
		return -1
	}
	return float64(*p)
}

// enforcePayloadCap drops results from the end of a normalized response
// until its UTF-8 JSON serialization fits maxBytes. Returns whether anything
// was dropped; the worst case leaves an empty results list.
func enforcePayloadCap(resp map[string]any, maxBytes int) bool {
	truncated := false
	for {
		raw, err := json.Marshal(resp)
		if err != nil || len(raw) <= maxBytes {
			break
		}
		results, ok := resp["results"].([]any)
		if !ok || len(results) == 0 {
			break
		}
		resp["results"] = results[:len(results)-1]
		truncated = true
	}
	if truncated {
		resp["truncated"] = true
	}
	return truncated
}
