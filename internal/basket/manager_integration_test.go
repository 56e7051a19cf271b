package basket

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
)

func setupBasketTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if testing.Short() {
		t.Skip("skipping basket integration test in short mode (requires Docker)")
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

	require.NoError(t, runBasketTestMigrations(ctx, pool), "Failed to run migrations")

	cleanup := func() {
		pool.Close()
		testcontainers.TerminateContainer(container)
	}
	return pool, cleanup
}

func runBasketTestMigrations(ctx context.Context, db *pgxpool.Pool) error {
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
			to_tsvector('simple', coalesce(title, ''))
		) STORED,
		PRIMARY KEY (store_slug, product_id)
	);

	CREATE TABLE IF NOT EXISTS baskets (
		basket_id TEXT PRIMARY KEY,
		store_slug TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		checkout_url TEXT,
		checked_out_at TIMESTAMPTZ,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS basket_items (
		basket_id TEXT NOT NULL REFERENCES baskets(basket_id) ON DELETE CASCADE,
		variant_id TEXT NOT NULL,
		product_handle TEXT,
		product_title TEXT,
		product_url TEXT,
		options JSONB,
		unit_price BIGINT,
		quantity INT NOT NULL,
		available BOOLEAN,
		added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (basket_id, variant_id)
	);
	`
	_, err := db.Exec(ctx, schema)
	return err
}

func seedBasketStores(ctx context.Context, t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	for _, store := range []struct {
		slug, platform string
	}{
		{"acme", "shopify"},
		{"wooshop", "woocommerce"},
	} {
		_, err := db.Exec(ctx, `
			INSERT INTO stores (slug, store_name, url, platform, product_count, indexed_at)
			VALUES ($1, $1, $2, $3, 1, now())`,
			store.slug, "https://"+store.slug+".example", store.platform)
		require.NoError(t, err)

		_, err = db.Exec(ctx, `
			INSERT INTO products
				(store_slug, product_id, handle, title, price_min, price_max,
				 available, url, is_catalog_product, data)
			VALUES ($1, '1', 'velvet-lipstick', 'Velvet Lipstick', 1999, 1999,
				true, '/products/velvet-lipstick', true, $2)`,
			store.slug, map[string]any{
				"variants": []map[string]any{
					{"id": "gid://v1", "price": 1999, "available": true,
						"options": map[string]any{"Shade": "Fig"}},
				},
			})
		require.NoError(t, err)
	}
}

func newTestManager(pool *pgxpool.Pool) *Manager {
	return NewManager(pool, catalog.New(pool, 10*time.Second), 10*time.Second)
}

func TestAddLineAccumulatesAndChecksOut(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupBasketTestDB(t)
	defer cleanup()
	seedBasketStores(ctx, t, pool)

	m := newTestManager(pool)

	result, failure, err := m.AddLine(ctx, AddLineRequest{
		Slug: "acme", Handle: "velvet-lipstick", Quantity: 2,
	})
	require.NoError(t, err)
	require.Nil(t, failure)

	basketID := result["basket_id"].(string)
	assert.Regexp(t, `^basket_[0-9a-f]{24}$`, basketID)

	added := result["added"].(map[string]any)
	assert.Equal(t, "gid://v1", added["variant_id"])
	assert.Equal(t, 2, added["quantity"])

	// Same variant again: the line accumulates instead of duplicating.
	result, failure, err = m.AddLine(ctx, AddLineRequest{
		BasketID: basketID, Slug: "acme", Handle: "velvet-lipstick", Quantity: 2,
	})
	require.NoError(t, err)
	require.Nil(t, failure)

	view := result["basket"].(map[string]any)
	items := view["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, 4, line["quantity"])
	assert.Equal(t, int64(1999), line["unit_price"])
	assert.Equal(t, int64(7996), line["line_total"])
	assert.Equal(t, int64(7996), view["subtotal"])

	checkout, failure, err := m.CheckoutIntent(ctx, basketID, "acme", true)
	require.NoError(t, err)
	require.Nil(t, failure)
	assert.Equal(t, true, checkout["supported"])
	assert.Equal(t, "https://acme.example/cart/gid%3A%2F%2Fv1:4", checkout["checkout_url"])

	basket := checkout["basket"].(map[string]any)
	assert.Equal(t, StatusCheckedOut, basket["status"])

	// Checked-out baskets reject further writes.
	_, failure, err = m.AddLine(ctx, AddLineRequest{
		BasketID: basketID, Slug: "acme", Handle: "velvet-lipstick", Quantity: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeBasketScopeError, failure.Code)

	// Reads still work and keep the link.
	got, failure, err := m.Get(ctx, basketID, "acme")
	require.NoError(t, err)
	require.Nil(t, failure)
	view = got["basket"].(map[string]any)
	assert.Equal(t, "https://acme.example/cart/gid%3A%2F%2Fv1:4", view["checkout_url"])
}

func TestAddLineQuantityClamp(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupBasketTestDB(t)
	defer cleanup()
	seedBasketStores(ctx, t, pool)

	m := newTestManager(pool)

	result, failure, err := m.AddLine(ctx, AddLineRequest{
		Slug: "acme", Handle: "velvet-lipstick", Quantity: 500,
	})
	require.NoError(t, err)
	require.Nil(t, failure)

	basketID := result["basket_id"].(string)
	view := result["basket"].(map[string]any)
	line := view["items"].([]any)[0].(map[string]any)
	assert.Equal(t, 99, line["quantity"])

	// Accumulation stays clamped too.
	result, failure, err = m.AddLine(ctx, AddLineRequest{
		BasketID: basketID, Slug: "acme", Handle: "velvet-lipstick", Quantity: 10,
	})
	require.NoError(t, err)
	require.Nil(t, failure)
	line = result["basket"].(map[string]any)["items"].([]any)[0].(map[string]any)
	assert.Equal(t, 99, line["quantity"])
}

func TestAddLineFailures(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupBasketTestDB(t)
	defer cleanup()
	seedBasketStores(ctx, t, pool)

	m := newTestManager(pool)

	_, failure, err := m.AddLine(ctx, AddLineRequest{Slug: "acme", Quantity: 1})
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeInvalidHandle, failure.Code)

	_, failure, err = m.AddLine(ctx, AddLineRequest{Slug: "acme", Handle: "velvet-lipstick", Quantity: 0})
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeInvalidQuantity, failure.Code)

	_, failure, err = m.AddLine(ctx, AddLineRequest{Slug: "acme", Handle: "no-such-product", Quantity: 1})
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeProductNotFound, failure.Code)

	_, failure, err = m.AddLine(ctx, AddLineRequest{
		Slug: "acme", Handle: "velvet-lipstick", VariantID: "zzz", Quantity: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, catalog.CodeVariantNotFound, failure.Code)
}

func TestBasketScopeMismatch(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupBasketTestDB(t)
	defer cleanup()
	seedBasketStores(ctx, t, pool)

	m := newTestManager(pool)

	result, failure, err := m.AddLine(ctx, AddLineRequest{
		Slug: "acme", Handle: "velvet-lipstick", Quantity: 1,
	})
	require.NoError(t, err)
	require.Nil(t, failure)
	basketID := result["basket_id"].(string)

	_, failure, err = m.Get(ctx, basketID, "wooshop")
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeBasketScopeError, failure.Code)

	_, failure, err = m.Get(ctx, "basket_000000000000000000000000", "acme")
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeBasketNotFound, failure.Code)
}

func TestUpdateRemoveClearLines(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupBasketTestDB(t)
	defer cleanup()
	seedBasketStores(ctx, t, pool)

	m := newTestManager(pool)

	result, failure, err := m.AddLine(ctx, AddLineRequest{
		Slug: "acme", Handle: "velvet-lipstick", Quantity: 2,
	})
	require.NoError(t, err)
	require.Nil(t, failure)
	basketID := result["basket_id"].(string)

	updated, failure, err := m.UpdateLine(ctx, basketID, "acme", "gid://v1", 7)
	require.NoError(t, err)
	require.Nil(t, failure)
	line := updated["basket"].(map[string]any)["items"].([]any)[0].(map[string]any)
	assert.Equal(t, 7, line["quantity"])

	// Zero quantity removes the line.
	removed, failure, err := m.UpdateLine(ctx, basketID, "acme", "gid://v1", 0)
	require.NoError(t, err)
	require.Nil(t, failure)
	assert.Empty(t, removed["basket"].(map[string]any)["items"])

	_, failure, err = m.RemoveLine(ctx, basketID, "acme", "gid://v1")
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeBasketLineNotFound, failure.Code)

	_, failure, err = m.AddLine(ctx, AddLineRequest{
		BasketID: basketID, Slug: "acme", Handle: "velvet-lipstick", Quantity: 3,
	})
	require.NoError(t, err)
	require.Nil(t, failure)

	cleared, failure, err := m.Clear(ctx, basketID, "acme")
	require.NoError(t, err)
	require.Nil(t, failure)
	view := cleared["basket"].(map[string]any)
	assert.Empty(t, view["items"])
	assert.Equal(t, int64(0), view["subtotal"])
}

func TestCheckoutIntentUnsupportedPlatform(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupBasketTestDB(t)
	defer cleanup()
	seedBasketStores(ctx, t, pool)

	m := newTestManager(pool)

	result, failure, err := m.AddLine(ctx, AddLineRequest{
		Slug: "wooshop", Handle: "velvet-lipstick", Quantity: 1,
	})
	require.NoError(t, err)
	require.Nil(t, failure)
	basketID := result["basket_id"].(string)

	checkout, failure, err := m.CheckoutIntent(ctx, basketID, "wooshop", true)
	require.NoError(t, err)
	require.Nil(t, failure)

	assert.Equal(t, false, checkout["supported"])
	assert.Equal(t, CodeUnsupportedPlatform, checkout["reason"])
	assert.Equal(t, true, checkout["manual_checkout"])
	urls := checkout["product_urls"].([]string)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://wooshop.example/products/velvet-lipstick", urls[0])

	// The basket stays active; manual checkout is not a state transition.
	basket := checkout["basket"].(map[string]any)
	assert.Equal(t, StatusActive, basket["status"])
}

func TestCheckoutIntentEmptyBasket(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupBasketTestDB(t)
	defer cleanup()
	seedBasketStores(ctx, t, pool)

	m := newTestManager(pool)

	b, failure, err := m.Ensure(ctx, "", "acme", true)
	require.NoError(t, err)
	require.Nil(t, failure)

	_, failure, err = m.CheckoutIntent(ctx, b.ID, "acme", true)
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeEmptyBasket, failure.Code)
}

func TestGetCheckoutLinkKeepsBasketActive(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupBasketTestDB(t)
	defer cleanup()
	seedBasketStores(ctx, t, pool)

	m := newTestManager(pool)

	result, failure, err := m.AddLine(ctx, AddLineRequest{
		Slug: "acme", Handle: "velvet-lipstick", Quantity: 1,
	})
	require.NoError(t, err)
	require.Nil(t, failure)
	basketID := result["basket_id"].(string)

	checkout, failure, err := m.CheckoutIntent(ctx, basketID, "acme", false)
	require.NoError(t, err)
	require.Nil(t, failure)
	assert.Equal(t, true, checkout["supported"])
	assert.Equal(t, StatusActive, checkout["basket"].(map[string]any)["status"])
}

func TestCheckoutItems(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupBasketTestDB(t)
	defer cleanup()
	seedBasketStores(ctx, t, pool)

	m := newTestManager(pool)

	result, failure, err := m.CheckoutItems(ctx, "", "acme", []CheckoutItem{
		{Handle: "velvet-lipstick", Quantity: 2},
	}, true)
	require.NoError(t, err)
	require.Nil(t, failure)

	assert.Equal(t, true, result["supported"])
	assert.Equal(t, 1, result["added_items"])
	assert.Equal(t, 1, result["line_count"])
	assert.Equal(t, "https://acme.example/cart/gid%3A%2F%2Fv1:2", result["checkout_url"])

	_, failure, err = m.CheckoutItems(ctx, "", "acme", nil, true)
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeInvalidItems, failure.Code)

	_, failure, err = m.CheckoutItems(ctx, "", "acme", []CheckoutItem{
		{Handle: "no-such-product", Quantity: 1},
	}, true)
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, CodeProductNotFound, failure.Code)
	assert.Equal(t, 0, failure.Extra["line_index"])
	assert.Equal(t, 0, failure.Extra["added_count"])
}
