package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Store-inference probes used by the slug resolver. Each returns "" when no
// store matches.

// ProbeByQuery picks the store whose products best match hint under a
// websearch tsquery, by match count with lexicographic tiebreak.
func (c *Client) ProbeByQuery(ctx context.Context, hint string) (string, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	var slug string
	err := c.pool.QueryRow(ctx, `
		select store_slug
		from products
		where search_tsv @@ websearch_to_tsquery('simple', $1)
		  and `+productOnlySQL+`
		group by store_slug
		order by count(*) desc, store_slug asc
		limit 1`, hint).Scan(&slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tsquery store probe: %w", err)
	}
	return slug, nil
}

// ProbeFuzzy is the looser fallback: case-insensitive substring match on
// title, handle, product type, or any tag.
func (c *Client) ProbeFuzzy(ctx context.Context, hint string) (string, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	pattern := "%" + hint + "%"
	var slug string
	err := c.pool.QueryRow(ctx, `
		select store_slug
		from products
		where (title ilike $1
		       or handle ilike $1
		       or product_type ilike $1
		       or exists (select 1 from unnest(tags) t where t ilike $1))
		  and `+productOnlySQL+`
		group by store_slug
		order by count(*) desc, store_slug asc
		limit 1`, pattern).Scan(&slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fuzzy store probe: %w", err)
	}
	return slug, nil
}

// StoreExists reports whether slug names a store with indexed products.
func (c *Client) StoreExists(ctx context.Context, slug string) (bool, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	var found bool
	err := c.pool.QueryRow(ctx, `
		select exists (select 1 from stores where slug = $1 and coalesce(product_count, 0) > 0)`,
		slug).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("checking store %s: %w", slug, err)
	}
	return found, nil
}

// LargestStore returns the store with the highest product count; ties break
// on most recent indexed_at, then slug.
func (c *Client) LargestStore(ctx context.Context) (string, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	var slug string
	err := c.pool.QueryRow(ctx, `
		select slug
		from stores
		where coalesce(product_count, 0) > 0
		order by product_count desc, indexed_at desc nulls last, slug asc
		limit 1`).Scan(&slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("largest store probe: %w", err)
	}
	return slug, nil
}

// LatestIndexedStore returns the most recently indexed store, falling back
// to never-indexed stores so an all-empty catalog still resolves somewhere.
func (c *Client) LatestIndexedStore(ctx context.Context) (string, error) {
	ctx, cancel := c.stmtCtx(ctx)
	defer cancel()

	var slug string
	err := c.pool.QueryRow(ctx, `
		select slug
		from stores
		order by indexed_at desc nulls last, slug asc
		limit 1`).Scan(&slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest indexed store probe: %w", err)
	}
	return slug, nil
}
