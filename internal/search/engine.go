// Package search implements hybrid retrieval and ranking: parallel lexical
// and vector candidate generation, reciprocal rank fusion, the v2 scoring
// pass, response caching, and the output size cap.
package search

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/shopmcp/storefront-mcp/config"
	"github.com/shopmcp/storefront-mcp/internal/cache"
	"github.com/shopmcp/storefront-mcp/internal/catalog"
	"github.com/shopmcp/storefront-mcp/internal/embed"
	"github.com/shopmcp/storefront-mcp/internal/payload"
	"github.com/shopmcp/storefront-mcp/internal/resolver"
	"github.com/shopmcp/storefront-mcp/internal/telemetry"
)

const (
	legacyLimitDefault = 10
	legacyLimitMax     = 50
	v2LimitDefault     = 5
	v2LimitMax         = 8
)

// Params is the legacy search request.
type Params struct {
	Query         string
	Limit         int
	AvailableOnly bool
	Slug          string
}

// V2Params adds budget, tone, and sort controls.
type V2Params struct {
	Params
	BudgetMinCents *int64
	BudgetMaxCents *int64
	SkinTone       string
	Sort           string
}

// Engine runs both search paths over the catalog.
type Engine struct {
	catalog   *catalog.Client
	resolver  *resolver.Resolver
	embedder  *embed.Embedder
	respCache *cache.TTL

	v2Enabled  bool
	shadowRate float64
	randFloat  func() float64 // injectable for tests

	logger zerolog.Logger
}

// NewEngine builds an Engine with a response cache sized per config.
func NewEngine(cat *catalog.Client, res *resolver.Resolver, emb *embed.Embedder, cfg config.SearchConfig) *Engine {
	return &Engine{
		catalog:    cat,
		resolver:   res,
		embedder:   emb,
		respCache:  cache.NewTTL(cfg.CacheSize, time.Duration(cfg.CacheTTLSec)*time.Second),
		v2Enabled:  cfg.V2Enabled,
		shadowRate: cfg.ShadowSampleRate,
		randFloat:  rand.Float64,
		logger:     log.With().Str("component", "search").Logger(),
	}
}

// V2Enabled reports whether the v2 tools are live.
func (e *Engine) V2Enabled() bool {
	return e.v2Enabled
}

// Search runs the legacy path: hybrid candidates, RRF fusion, availability
// filtering, bounded hydration.
func (e *Engine) Search(ctx context.Context, params Params) (map[string]any, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	limit := clampLimit(params.Limit, legacyLimitDefault, legacyLimitMax)

	slug, err := e.resolver.Resolve(ctx, params.Slug, query)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("v1|%s|%s|%d|%t", slug, strings.ToLower(query), limit, params.AvailableOnly)
	if cached, ok := e.respCache.Get(cacheKey); ok {
		telemetry.RecordCacheHit("search")
		return cachedResponse(cached, true), nil
	}
	telemetry.RecordCacheMiss("search")

	candidateCap := maxInt(120, limit*10)
	lists, _, _, err := e.gatherCandidates(ctx, slug, query, candidateCap)
	if err != nil {
		return nil, err
	}

	fused := FuseRRF(lists, maxInt(limit*5, limit))

	products, err := e.hydrate(ctx, slug, fused)
	if err != nil {
		return nil, err
	}

	store, err := e.catalog.StoreMeta(ctx, slug)
	if err != nil {
		return nil, err
	}
	storeURL := ""
	if store != nil {
		storeURL = store.URL
	}

	tone := InferTone(query)

	summaries := make([]any, 0, limit)
	for _, p := range products {
		if params.AvailableOnly && !p.Available {
			continue
		}
		summary := ProductSummary(p, storeURL)
		if matches, recommended := shadeToneMatches(p, tone, maxToneMatchesEmitted); recommended != "" {
			summary["recommended_option"] = recommended
			summary["tone_matches"] = matches
		}
		summaries = append(summaries, summary)
		if len(summaries) >= limit {
			break
		}
	}

	resp := map[string]any{
		"store":     slug,
		"query":     query,
		"count":     len(summaries),
		"products":  summaries,
		"cache_hit": false,
	}
	normalized, ok := payload.Format(resp).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("normalizing search response")
	}

	e.respCache.Set(cacheKey, normalized)
	telemetry.RecordSearchResults("legacy", len(summaries))

	e.shadowSample(ctx, params, slug, len(summaries))

	return cachedResponse(normalized, false), nil
}

// SearchV2 runs the scored path with exclusion accounting, sorts, per-result
// enrichments, and the 12 KiB output cap.
func (e *Engine) SearchV2(ctx context.Context, params V2Params) (map[string]any, error) {
	totalStart := time.Now()

	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	limit := clampLimit(params.Limit, v2LimitDefault, v2LimitMax)
	sortMode := NormalizeSort(params.Sort)
	tone := CanonicalTone(params.SkinTone)

	slug, err := e.resolver.Resolve(ctx, params.Slug, query)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("v2|%s|%s|%d|%t|%s|%s|%s|%s",
		slug, strings.ToLower(query), limit, params.AvailableOnly,
		centsKey(params.BudgetMaxCents), centsKey(params.BudgetMinCents),
		strings.ToLower(strings.TrimSpace(params.SkinTone)), sortMode)
	if cached, ok := e.respCache.Get(cacheKey); ok {
		telemetry.RecordCacheHit("search")
		return cachedResponse(cached, true), nil
	}
	telemetry.RecordCacheMiss("search")

	candidateCap := maxInt(100, limit*20)
	lists, embedMs, dbMs, err := e.gatherCandidates(ctx, slug, query, candidateCap)
	if err != nil {
		return nil, err
	}

	fused := FuseRRF(lists, 0)

	hydrateStart := time.Now()
	products, err := e.hydrate(ctx, slug, fused)
	if err != nil {
		return nil, err
	}
	store, err := e.catalog.StoreMeta(ctx, slug)
	if err != nil {
		return nil, err
	}
	dbMs += time.Since(hydrateStart).Milliseconds()
	storeURL := ""
	if store != nil {
		storeURL = store.URL
	}

	rankStart := time.Now()
	relevance := make(map[string]float64, len(fused))
	for _, f := range fused {
		relevance[f.ID] = f.Score
	}
	ranked, excluded := rankCandidates(products, relevance, RankOptions{
		AvailableOnly:  params.AvailableOnly,
		BudgetMinCents: params.BudgetMinCents,
		BudgetMaxCents: params.BudgetMaxCents,
		Tone:           tone,
		Sort:           sortMode,
		Limit:          limit,
	})

	results := make([]any, 0, len(ranked))
	for i, r := range ranked {
		entry := ProductSummary(r.Product, storeURL)
		entry["rank"] = i + 1
		entry["score"] = math.Round(r.Score*10000) / 10000
		entry["why_match"] = r.WhyMatch
		entry["fit_signals"] = r.FitSignals
		if len(r.ToneMatches) > 0 {
			matches := r.ToneMatches
			if len(matches) > maxToneMatchesEmitted {
				matches = matches[:maxToneMatchesEmitted]
			}
			entry["tone_matches"] = matches
		}
		if r.Recommended != "" {
			entry["recommended_option"] = r.Recommended
		}
		results = append(results, entry)
	}
	rankMs := time.Since(rankStart).Milliseconds()

	resp := map[string]any{
		"store":            slug,
		"query":            query,
		"sort":             sortMode,
		"results":          results,
		"excluded_counts":  excluded,
		"total_candidates": len(fused),
		"truncated":        false,
		"cache_hit":        false,
	}

	serializeStart := time.Now()
	normalized, ok := payload.Format(resp).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("normalizing search response")
	}
	if enforcePayloadCap(normalized, maxPayloadBytes) {
		telemetry.RecordPayloadTruncation()
	}
	serializeMs := time.Since(serializeStart).Milliseconds()

	e.respCache.Set(cacheKey, normalized)

	resultCount := 0
	if list, ok := normalized["results"].([]any); ok {
		resultCount = len(list)
	}
	telemetry.RecordSearchResults("v2", resultCount)

	e.logger.Info().
		Str("store", slug).
		Str("query", query).
		Int("results", resultCount).
		Int64("embed_ms", embedMs).
		Int64("db_ms", dbMs).
		Int64("rank_ms", rankMs).
		Int64("serialize_ms", serializeMs).
		Int64("total_ms", time.Since(totalStart).Milliseconds()).
		Msg("search_v2 completed")

	return cachedResponse(normalized, false), nil
}

// gatherCandidates issues the lexical and vector candidate queries
// concurrently. The vector branch degrades to nothing on embedding or query
// failure; a lexical failure is fatal.
func (e *Engine) gatherCandidates(ctx context.Context, slug, query string, cap int) (lists [][]string, embedMs, dbMs int64, err error) {
	dbStart := time.Now()

	var lexical, vector []string
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ids, err := e.catalog.LexicalCandidates(gctx, slug, query, cap)
		if err != nil {
			return fmt.Errorf("lexical retrieval: %w", err)
		}
		lexical = ids
		return nil
	})

	if e.embedder.Enabled() {
		g.Go(func() error {
			embedStart := time.Now()
			vec, err := e.embedder.Embed(gctx, query)
			embedMs = time.Since(embedStart).Milliseconds()
			if err != nil {
				e.logger.Warn().Err(err).Msg("embedding failed, degrading to lexical-only")
				return nil
			}
			ids, err := e.catalog.VectorCandidates(gctx, slug, embed.VectorLiteral(vec), cap)
			if err != nil {
				e.logger.Warn().Err(err).Msg("vector retrieval failed, degrading to lexical-only")
				return nil
			}
			vector = ids
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}
	dbMs = time.Since(dbStart).Milliseconds()

	lists = [][]string{lexical}
	if len(vector) > 0 {
		lists = append(lists, vector)
	}
	return lists, embedMs, dbMs, nil
}

// hydrate fetches full rows for fused candidates, preserving fused order and
// dropping IDs that fail to hydrate.
func (e *Engine) hydrate(ctx context.Context, slug string, fused []Fused) ([]*catalog.Product, error) {
	ids := make([]string, 0, len(fused))
	for _, f := range fused {
		ids = append(ids, f.ID)
	}

	byID, err := e.catalog.FetchByIDs(ctx, slug, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating candidates: %w", err)
	}

	products := make([]*catalog.Product, 0, len(fused))
	for _, f := range fused {
		if p, ok := byID[f.ID]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// shadowSample invokes the v2 path for a sampled fraction of legacy searches
// and logs a comparison record. Failures are swallowed.
func (e *Engine) shadowSample(ctx context.Context, params Params, slug string, v1Count int) {
	if !e.v2Enabled || e.shadowRate <= 0 || e.randFloat() > e.shadowRate {
		return
	}

	v2Resp, err := e.SearchV2(ctx, V2Params{Params: Params{
		Query:         params.Query,
		Limit:         minInt(params.Limit, v2LimitMax),
		AvailableOnly: params.AvailableOnly,
		Slug:          slug,
	}})
	if err != nil {
		e.logger.Debug().Err(err).Msg("shadow sample failed")
		return
	}

	v2Count := 0
	if list, ok := v2Resp["results"].([]any); ok {
		v2Count = len(list)
	}
	e.logger.Info().
		Str("store", slug).
		Str("query", strings.TrimSpace(params.Query)).
		Int("v1_count", v1Count).
		Int("v2_count", v2Count).
		Msg("shadow sample comparison")
}

// cachedResponse deep-copies a stored payload so callers cannot mutate
// shared cache state, flagging whether this call was served from cache.
func cachedResponse(value any, hit bool) map[string]any {
	copied, ok := payload.DeepCopy(value).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	if _, present := copied["cache_hit"]; present {
		copied["cache_hit"] = hit
	}
	return copied
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func centsKey(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
