package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// productOnlySQL gates every catalog query: the persisted flag is
// authoritative when present, the URL segment and raw variant checks are the
// fallback for rows indexed before the flag existed.
const productOnlySQL = `coalesce(is_catalog_product,
		url like '%/products/%'
		or url like '%/product/%'
		or jsonb_array_length(coalesce(data->'variants', '[]'::jsonb)) > 0)`

const productColumns = `store_slug, product_id::text, handle, title,
		coalesce(product_type, ''), coalesce(vendor, ''), coalesce(tags, '{}'),
		price_min, price_max, coalesce(available, false), coalesce(url, ''),
		coalesce(summary_short, ''), coalesce(summary_llm, ''),
		coalesce(option_tokens, '{}'), is_catalog_product, data`

// Client runs read-only probes against the products and stores tables. Every
// statement gets a per-statement timeout derived from stmtTimeout.
type Client struct {
	pool        *pgxpool.Pool
	stmtTimeout time.Duration
	logger      zerolog.Logger
}

// New builds a Client over an established pool.
func New(pool *pgxpool.Pool, stmtTimeout time.Duration) *Client {
	if stmtTimeout <= 0 {
		stmtTimeout = 30 * time.Second
	}
	return &Client{
		pool:        pool,
		stmtTimeout: stmtTimeout,
		logger:      log.With().Str("component", "catalog").Logger(),
	}
}

func (c *Client) stmtCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.stmtTimeout)
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.StoreSlug, &p.ID, &p.Handle, &p.Title,
		&p.ProductType, &p.Vendor, &p.Tags,
		&p.PriceMin, &p.PriceMax, &p.Available, &p.URL,
		&p.SummaryShort, &p.SummaryLLM,
		&p.OptionTokens, &p.IsCatalogProduct, &p.Data,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// StoreMeta fetches the tenant record for slug, or nil when unknown.
func (c *Client) StoreMeta(ctx context.Context, slug string) (*Store, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	var s Store
	err := c.pool.QueryRow(ctx, `
		select slug, coalesce(store_name, ''), coalesce(url, ''),
		       coalesce(platform, ''), coalesce(product_count, 0),
		       indexed_at, last_error
		from stores
		where slug = $1`, slug).
		Scan(&s.Slug, &s.Name, &s.URL, &s.Platform, &s.ProductCount, &s.IndexedAt, &s.LastError)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching store %s: %w", slug, err)
	}
	return &s, nil
}

// ListStores returns indexed stores ordered by product_count desc, indexed_at
// desc (nulls last), slug asc.
func (c *Client) ListStores(ctx context.Context, limit int) ([]Store, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	rows, err := c.pool.Query(ctx, `
		select slug, coalesce(store_name, ''), coalesce(url, ''),
		       coalesce(platform, ''), coalesce(product_count, 0),
		       indexed_at, last_error
		from stores
		order by product_count desc nulls last, indexed_at desc nulls last, slug asc
		limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}
	defer rows.Close()

	var out []Store
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.Slug, &s.Name, &s.URL, &s.Platform, &s.ProductCount, &s.IndexedAt, &s.LastError); err != nil {
			return nil, fmt.Errorf("scanning store: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindByHandle fetches one product by its per-store handle, or nil.
func (c *Client) FindByHandle(ctx context.Context, slug, handle string) (*Product, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	p, err := scanProduct(c.pool.QueryRow(ctx, `
		select `+productColumns+`
		from products
		where store_slug = $1 and handle = $2 and `+productOnlySQL+`
		limit 1`, slug, handle))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching product %s/%s: %w", slug, handle, err)
	}
	return p, nil
}

// FetchByIDs hydrates full rows for a fused candidate list, keyed by
// product_id text.
func (c *Client) FetchByIDs(ctx context.Context, slug string, ids []string) (map[string]*Product, error) {
	if len(ids) == 0 {
		return map[string]*Product{}, nil
	}

	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	rows, err := c.pool.Query(ctx, `
		select `+productColumns+`
		from products
		where store_slug = $1 and product_id::text = any($2::text[]) and `+productOnlySQL,
		slug, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating %d products: %w", len(ids), err)
	}
	defer rows.Close()

	out := make(map[string]*Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// LexicalCandidates runs the full-text candidate query: ts_rank_cd over a
// websearch tsquery, dense ranks assigned in fetch order, product_id text as
// the deterministic tiebreaker.
func (c *Client) LexicalCandidates(ctx context.Context, slug, query string, cap int) ([]string, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	rows, err := c.pool.Query(ctx, `
		select product_id::text
		from products
		where store_slug = $1
		  and search_tsv @@ websearch_to_tsquery('simple', $2)
		  and `+productOnlySQL+`
		order by ts_rank_cd(search_tsv, websearch_to_tsquery('simple', $2)) desc,
		         product_id::text asc
		limit $3`, slug, query, cap)
	if err != nil {
		return nil, fmt.Errorf("lexical candidates: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// VectorCandidates runs the cosine-distance candidate query over rows that
// carry an embedding. vector is a pgvector text literal.
func (c *Client) VectorCandidates(ctx context.Context, slug, vector string, cap int) ([]string, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	rows, err := c.pool.Query(ctx, `
		select product_id::text
		from products
		where store_slug = $1
		  and embedding is not null
		  and `+productOnlySQL+`
		order by embedding <=> $2::vector asc, product_id::text asc
		limit $3`, slug, vector, cap)
	if err != nil {
		return nil, fmt.Errorf("vector candidates: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning candidate id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Categories aggregates product types (count desc, name asc), the top 25
// tags, and the total product count for a store.
func (c *Client) Categories(ctx context.Context, slug string) ([]map[string]any, []map[string]any, int, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	rows, err := c.pool.Query(ctx, `
		select product_type, count(*)
		from products
		where store_slug = $1 and product_type is not null and product_type <> ''
		  and `+productOnlySQL+`
		group by product_type
		order by count(*) desc, product_type asc`, slug)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("aggregating product types: %w", err)
	}
	types, err := scanNamedCounts(rows, "name")
	if err != nil {
		return nil, nil, 0, err
	}

	tagRows, err := c.pool.Query(ctx, `
		select tag, count(*)
		from products, unnest(tags) as tag
		where store_slug = $1 and `+productOnlySQL+`
		group by tag
		order by count(*) desc, tag asc
		limit 25`, slug)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("aggregating tags: %w", err)
	}
	tags, err := scanNamedCounts(tagRows, "tag")
	if err != nil {
		return nil, nil, 0, err
	}

	var total int
	err = c.pool.QueryRow(ctx, `
		select count(*) from products
		where store_slug = $1 and `+productOnlySQL, slug).Scan(&total)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("counting products: %w", err)
	}

	return types, tags, total, nil
}

func scanNamedCounts(rows pgx.Rows, key string) ([]map[string]any, error) {
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scanning aggregate row: %w", err)
		}
		out = append(out, map[string]any{key: name, "count": count})
	}
	return out, rows.Err()
}

// FilterParams is the structured-filter request shape.
type FilterParams struct {
	ProductType   string
	Tags          []string
	MinPriceCents *int64
	MaxPriceCents *int64
	AvailableOnly bool
	ScanCap       int
}

// Filter returns candidate rows matching the structured predicates, ordered
// by product_id text for determinism. Option-level filtering happens in the
// caller, so the scan cap bounds the rows pulled here.
func (c *Client) Filter(ctx context.Context, slug string, params FilterParams) ([]*Product, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	sql := `
		select ` + productColumns + `
		from products
		where store_slug = $1 and ` + productOnlySQL
	args := []any{slug}

	if params.ProductType != "" {
		args = append(args, params.ProductType)
		sql += fmt.Sprintf(" and lower(product_type) = lower($%d)", len(args))
	}
	if len(params.Tags) > 0 {
		args = append(args, params.Tags)
		sql += fmt.Sprintf(" and tags @> $%d::text[]", len(args))
	}
	if params.MinPriceCents != nil {
		args = append(args, *params.MinPriceCents)
		sql += fmt.Sprintf(" and coalesce(price_max, price_min) >= $%d", len(args))
	}
	if params.MaxPriceCents != nil {
		args = append(args, *params.MaxPriceCents)
		sql += fmt.Sprintf(" and coalesce(price_min, price_max) <= $%d", len(args))
	}
	if params.AvailableOnly {
		sql += " and available = true"
	}

	args = append(args, params.ScanCap)
	sql += fmt.Sprintf(" order by product_id::text asc limit $%d", len(args))

	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("filtering products: %w", err)
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
