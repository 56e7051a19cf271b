package search

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shopmcp/storefront-mcp/config"
	"github.com/shopmcp/storefront-mcp/internal/catalog"
	"github.com/shopmcp/storefront-mcp/internal/embed"
	"github.com/shopmcp/storefront-mcp/internal/resolver"
)

func setupSearchTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if testing.Short() {
		t.Skip("skipping search integration test in short mode (requires Docker)")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err, "Failed to create connection pool")

	require.NoError(t, runSearchTestMigrations(ctx, pool), "Failed to run migrations")

	cleanup := func() {
		pool.Close()
		testcontainers.TerminateContainer(container)
	}
	return pool, cleanup
}

func runSearchTestMigrations(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS stores (
		slug TEXT PRIMARY KEY,
		store_name TEXT,
		url TEXT,
		platform TEXT,
		product_count INT,
		indexed_at TIMESTAMPTZ,
		last_error TEXT
	);

	CREATE TABLE IF NOT EXISTS products (
		store_slug TEXT NOT NULL REFERENCES stores(slug),
		product_id TEXT NOT NULL,
		handle TEXT,
		title TEXT,
		product_type TEXT,
		vendor TEXT,
		tags TEXT[],
		price_min BIGINT,
		price_max BIGINT,
		available BOOLEAN,
		url TEXT,
		summary_short TEXT,
		summary_llm TEXT,
		option_tokens TEXT[],
		is_catalog_product BOOLEAN,
		data JSONB,
		search_tsv TSVECTOR GENERATED ALWAYS AS (
			to_tsvector('simple',
				coalesce(title, '') || ' ' || coalesce(product_type, '') || ' ' || coalesce(summary_short, ''))
		) STORED,
		PRIMARY KEY (store_slug, product_id)
	);
	`
	_, err := db.Exec(ctx, schema)
	return err
}

type seedProduct struct {
	id        string
	handle    string
	title     string
	priceMin  int64
	available bool
	variants  []map[string]any
}

func seedSearchStore(ctx context.Context, t *testing.T, db *pgxpool.Pool, slug, platform string, products []seedProduct) {
	t.Helper()

	_, err := db.Exec(ctx, `
		INSERT INTO stores (slug, store_name, url, platform, product_count, indexed_at)
		VALUES ($1, $1, $2, $3, $4, now())`,
		slug, "https://"+slug+".example", platform, len(products))
	require.NoError(t, err)

	for _, p := range products {
		variants := p.variants
		if variants == nil {
			variants = []map[string]any{{"id": p.id + "-v1", "price": p.priceMin, "available": p.available}}
		}
		_, err := db.Exec(ctx, `
			INSERT INTO products
				(store_slug, product_id, handle, title, product_type, tags,
				 price_min, price_max, available, url, is_catalog_product, data)
			VALUES ($1, $2, $3, $4, 'Serum', '{}', $5, $5, $6, $7, true, $8)`,
			slug, p.id, p.handle, p.title, p.priceMin, p.available,
			"/products/"+p.handle, map[string]any{"variants": variants})
		require.NoError(t, err)
	}
}

// wireInt reads a numeric wire value regardless of how the copy round trip
// rendered it.
func wireInt(t *testing.T, v any) int64 {
	t.Helper()
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		require.NoError(t, err)
		return i
	default:
		t.Fatalf("unexpected numeric type %T (%v)", v, v)
		return 0
	}
}

func newTestEngine(pool *pgxpool.Pool) *Engine {
	cat := catalog.New(pool, 10*time.Second)
	res := resolver.New(cat, "")
	emb := embed.New(config.EmbedderConfig{})
	return NewEngine(cat, res, emb, config.SearchConfig{
		V2Enabled:   true,
		CacheSize:   50,
		CacheTTLSec: 5,
	})
}

func seedDefaultStores(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	seedSearchStore(ctx, t, pool, "acme", "shopify", []seedProduct{
		{id: "1", handle: "vitamin-c-serum", title: "Vitamin C Serum", priceMin: 2500, available: true},
		{id: "2", handle: "hydrating-serum", title: "Hydrating Serum", priceMin: 6000, available: true},
		{id: "3", handle: "night-serum", title: "Night Serum", priceMin: 1500, available: false},
	})
	seedSearchStore(ctx, t, pool, "bazaar", "woocommerce", []seedProduct{
		{id: "10", handle: "walnut-coffee-table", title: "Walnut Coffee Table", priceMin: 45000, available: true},
		{id: "11", handle: "oak-dining-table", title: "Oak Dining Table", priceMin: 90000, available: true},
	})
}

func TestSearchLegacyPath(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupSearchTestDB(t)
	defer cleanup()
	seedDefaultStores(ctx, t, pool)

	engine := newTestEngine(pool)

	resp, err := engine.Search(ctx, Params{Query: "serum", Slug: "acme"})
	require.NoError(t, err)

	assert.Equal(t, "acme", resp["store"])
	assert.Equal(t, false, resp["cache_hit"])
	products := resp["products"].([]any)
	assert.Len(t, products, 3)

	first := products[0].(map[string]any)
	assert.Equal(t, "https://acme.example/products/"+first["handle"].(string), first["url"])
}

func TestSearchAvailableOnlyFilter(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupSearchTestDB(t)
	defer cleanup()
	seedDefaultStores(ctx, t, pool)

	engine := newTestEngine(pool)

	resp, err := engine.Search(ctx, Params{Query: "serum", Slug: "acme", AvailableOnly: true})
	require.NoError(t, err)

	products := resp["products"].([]any)
	require.Len(t, products, 2)
	for _, raw := range products {
		p := raw.(map[string]any)
		assert.NotEqual(t, "night-serum", p["handle"], "sold-out product leaked through the filter")
		assert.Equal(t, true, p["available"])
	}
}

func TestSearchCacheHitFlag(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupSearchTestDB(t)
	defer cleanup()
	seedDefaultStores(ctx, t, pool)

	engine := newTestEngine(pool)

	first, err := engine.Search(ctx, Params{Query: "serum", Slug: "acme"})
	require.NoError(t, err)
	assert.Equal(t, false, first["cache_hit"])

	second, err := engine.Search(ctx, Params{Query: "Serum", Slug: "acme"})
	require.NoError(t, err)
	assert.Equal(t, true, second["cache_hit"], "query case must not defeat the cache")

	// Mutating the first response must not leak into the cached copy.
	first["store"] = "mutated"
	third, err := engine.Search(ctx, Params{Query: "serum", Slug: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "acme", third["store"])
}

func TestSearchAutoSelectsStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupSearchTestDB(t)
	defer cleanup()
	seedDefaultStores(ctx, t, pool)

	engine := newTestEngine(pool)

	resp, err := engine.Search(ctx, Params{Query: "coffee table"})
	require.NoError(t, err)
	assert.Equal(t, "bazaar", resp["store"], "store with the most query matches wins")
}

func TestSearchNoIndexedStores(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupSearchTestDB(t)
	defer cleanup()

	engine := newTestEngine(pool)

	_, err := engine.Search(ctx, Params{Query: "anything"})
	assert.ErrorIs(t, err, resolver.ErrNoIndexedStores)
}

func TestSearchFallsBackToNeverIndexedStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupSearchTestDB(t)
	defer cleanup()

	// A registered store with no products and no indexed_at is still the last
	// rung of the resolution ladder.
	_, err := pool.Exec(ctx, `
		insert into stores (slug, store_name, url, platform, product_count, indexed_at)
		values ('ghost', 'ghost', 'https://ghost.example', 'shopify', 0, null)`)
	require.NoError(t, err)

	engine := newTestEngine(pool)

	resp, err := engine.Search(ctx, Params{Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "ghost", resp["store"])
	assert.Empty(t, resp["products"])
}

func TestSearchV2BudgetExclusion(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupSearchTestDB(t)
	defer cleanup()
	seedDefaultStores(ctx, t, pool)

	engine := newTestEngine(pool)

	budgetMax := int64(5000)
	resp, err := engine.SearchV2(ctx, V2Params{
		Params:         Params{Query: "serum", Slug: "acme"},
		BudgetMaxCents: &budgetMax,
	})
	require.NoError(t, err)

	assert.Equal(t, "best_match", resp["sort"])
	assert.Equal(t, false, resp["truncated"])

	excluded := resp["excluded_counts"].(map[string]any)
	assert.Equal(t, int64(1), wireInt(t, excluded["over_budget"]))

	results := resp["results"].([]any)
	require.Len(t, results, 2)
	for _, raw := range results {
		r := raw.(map[string]any)
		assert.NotEqual(t, "hydrating-serum", r["handle"], "over-budget product leaked into results")
		signals := r["fit_signals"].([]any)
		assert.Contains(t, signals, "intent_match")
		assert.Contains(t, signals, "under_budget")
	}

	first := results[0].(map[string]any)
	assert.Equal(t, int64(1), wireInt(t, first["rank"]))
	assert.NotEmpty(t, first["why_match"])
	// The in-stock product outscores the sold-out one via the availability term.
	assert.Equal(t, "vitamin-c-serum", first["handle"])
}

func TestSearchV2PriceSort(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupSearchTestDB(t)
	defer cleanup()
	seedDefaultStores(ctx, t, pool)

	engine := newTestEngine(pool)

	resp, err := engine.SearchV2(ctx, V2Params{
		Params: Params{Query: "serum", Slug: "acme"},
		Sort:   SortPriceLowToHigh,
	})
	require.NoError(t, err)

	results := resp["results"].([]any)
	require.Len(t, results, 3)
	var prices []int64
	for _, raw := range results {
		prices = append(prices, wireInt(t, raw.(map[string]any)["price_min"]))
	}
	assert.IsNonDecreasing(t, prices)
}
