// Package basket implements durable baskets: line upserts with quantity
// accumulation, the active to checked_out state machine, and checkout
// permalink synthesis.
package basket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
	"github.com/shopmcp/storefront-mcp/internal/telemetry"
)

const (
	// StatusActive and StatusCheckedOut are the only basket states.
	StatusActive     = "active"
	StatusCheckedOut = "checked_out"

	maxLineQuantity = 99

	// Currency is fixed until the catalog carries per-store currencies.
	Currency = "USD"
)

// Basket is the baskets table header row.
type Basket struct {
	ID           string
	StoreSlug    string
	Status       string
	CheckoutURL  *string
	CheckedOutAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Line is one basket_items row with its product snapshot.
type Line struct {
	VariantID string
	Handle    string
	Title     string
	URL       string
	Options   map[string]string
	UnitPrice int64
	Quantity  int
	Available bool
	AddedAt   time.Time
	UpdatedAt time.Time
}

// Manager owns all basket reads and writes. Tool-level failures come back as
// *Failure values; returned errors are hard faults.
type Manager struct {
	pool        *pgxpool.Pool
	catalog     *catalog.Client
	stmtTimeout time.Duration
	logger      zerolog.Logger
}

// NewManager builds a Manager sharing the service pool and catalog client.
func NewManager(pool *pgxpool.Pool, cat *catalog.Client, stmtTimeout time.Duration) *Manager {
	if stmtTimeout <= 0 {
		stmtTimeout = 30 * time.Second
	}
	return &Manager{
		pool:        pool,
		catalog:     cat,
		stmtTimeout: stmtTimeout,
		logger:      log.With().Str("component", "basket").Logger(),
	}
}

func (m *Manager) stmtCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.stmtTimeout)
}

// NewBasketID generates an opaque basket key: "basket_" + 24 hex chars.
func NewBasketID() string {
	return "basket_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// Ensure fetches an existing basket or creates a fresh one pinned to slug.
// requireActive rejects checked-out baskets, which only permit reads and
// checkout-link re-fetch.
func (m *Manager) Ensure(ctx context.Context, basketID, slug string, requireActive bool) (*Basket, *Failure, error) {
	if basketID == "" {
		b, err := m.create(ctx, slug)
		if err != nil {
			m.logger.Error().Err(err).Str("store", slug).Msg("basket creation failed")
			return nil, fail(CodeBasketCreateFailed, "could not create a basket"), nil
		}
		return b, nil, nil
	}
	return m.fetch(ctx, basketID, slug, requireActive)
}

func (m *Manager) create(ctx context.Context, slug string) (*Basket, error) {
	ctx, cancel := m.stmtCtx(ctx)
	defer cancel()

	id := NewBasketID()
	var b Basket
	err := m.pool.QueryRow(ctx, `
		insert into baskets (basket_id, store_slug, status, metadata, created_at, updated_at)
		values ($1, $2, $3, '{}'::jsonb, now(), now())
		returning basket_id, store_slug, status, checkout_url, checked_out_at, created_at, updated_at`,
		id, slug, StatusActive).
		Scan(&b.ID, &b.StoreSlug, &b.Status, &b.CheckoutURL, &b.CheckedOutAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating basket: %w", err)
	}
	return &b, nil
}

func (m *Manager) fetch(ctx context.Context, basketID, slug string, requireActive bool) (*Basket, *Failure, error) {
	ctx, cancel := m.stmtCtx(ctx)
	defer cancel()

	var b Basket
	err := m.pool.QueryRow(ctx, `
		select basket_id, store_slug, status, checkout_url, checked_out_at, created_at, updated_at
		from baskets
		where basket_id = $1`, basketID).
		Scan(&b.ID, &b.StoreSlug, &b.Status, &b.CheckoutURL, &b.CheckedOutAt, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fail(CodeBasketNotFound, "basket not found"), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("fetching basket %s: %w", basketID, err)
	}

	if slug != "" && b.StoreSlug != slug {
		return nil, fail(CodeBasketScopeError, "basket belongs to a different store"), nil
	}
	if requireActive && b.Status != StatusActive {
		return nil, fail(CodeBasketScopeError, "basket is already checked out"), nil
	}
	return &b, nil, nil
}

func (m *Manager) lines(ctx context.Context, basketID string) ([]Line, error) {
	ctx, cancel := m.stmtCtx(ctx)
	defer cancel()

	rows, err := m.pool.Query(ctx, `
		select variant_id, product_handle, product_title, coalesce(product_url, ''),
		       coalesce(options, '{}'::jsonb), unit_price, quantity,
		       coalesce(available, true), added_at, updated_at
		from basket_items
		where basket_id = $1
		order by added_at asc, variant_id asc`, basketID)
	if err != nil {
		return nil, fmt.Errorf("fetching basket lines: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.VariantID, &l.Handle, &l.Title, &l.URL, &l.Options,
			&l.UnitPrice, &l.Quantity, &l.Available, &l.AddedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning basket line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// payload assembles the wire view of a basket with its ordered lines and the
// derived totals.
func (m *Manager) payload(ctx context.Context, b *Basket) (map[string]any, error) {
	lines, err := m.lines(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	items := make([]any, 0, len(lines))
	var subtotal int64
	var quantityTotal int
	for _, l := range lines {
		lineTotal := l.UnitPrice * int64(l.Quantity)
		subtotal += lineTotal
		quantityTotal += l.Quantity
		items = append(items, map[string]any{
			"variant_id": l.VariantID,
			"handle":     l.Handle,
			"title":      l.Title,
			"url":        l.URL,
			"options":    l.Options,
			"unit_price": l.UnitPrice,
			"quantity":   l.Quantity,
			"line_total": lineTotal,
			"available":  l.Available,
			"added_at":   l.AddedAt,
			"updated_at": l.UpdatedAt,
		})
	}

	out := map[string]any{
		"basket_id":      b.ID,
		"store":          b.StoreSlug,
		"status":         b.Status,
		"currency":       Currency,
		"items":          items,
		"item_count":     len(items),
		"quantity_total": quantityTotal,
		"subtotal":       subtotal,
		"created_at":     b.CreatedAt,
		"updated_at":     b.UpdatedAt,
	}
	if b.CheckoutURL != nil {
		out["checkout_url"] = *b.CheckoutURL
	}
	if b.CheckedOutAt != nil {
		out["checked_out_at"] = *b.CheckedOutAt
	}
	return out, nil
}

// AddLineRequest names a product line to add.
type AddLineRequest struct {
	BasketID  string
	Slug      string
	Handle    string
	VariantID string
	Options   map[string]string
	Quantity  int
}

// AddLine resolves the product and variant, ensures the basket, and upserts
// the line. Conflicting lines accumulate quantity, clamped to 99 after the
// sum; snapshot fields refresh on every add.
func (m *Manager) AddLine(ctx context.Context, req AddLineRequest) (map[string]any, *Failure, error) {
	handle := strings.TrimSpace(req.Handle)
	if handle == "" {
		telemetry.RecordBasketOperation("add_line", "invalid")
		return nil, fail(CodeInvalidHandle, "handle is required"), nil
	}
	if req.Quantity <= 0 {
		telemetry.RecordBasketOperation("add_line", "invalid")
		return nil, fail(CodeInvalidQuantity, "quantity must be a positive integer"), nil
	}
	quantity := req.Quantity
	if quantity > maxLineQuantity {
		quantity = maxLineQuantity
	}

	product, err := m.catalog.FindByHandle(ctx, req.Slug, handle)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		telemetry.RecordBasketOperation("add_line", "not_found")
		return nil, fail(CodeProductNotFound, fmt.Sprintf("no product with handle %q", handle)), nil
	}

	variant, code := catalog.ResolveVariant(product, strings.TrimSpace(req.VariantID), req.Options)
	if code != "" {
		telemetry.RecordBasketOperation("add_line", "variant_error")
		return nil, fail(code, variantFailureMessage(code)), nil
	}

	b, failure, err := m.Ensure(ctx, strings.TrimSpace(req.BasketID), req.Slug, true)
	if failure != nil || err != nil {
		return nil, failure, err
	}

	unitPrice := int64(0)
	switch {
	case variant.PriceCents != nil:
		unitPrice = *variant.PriceCents
	case product.PriceMin != nil:
		unitPrice = *product.PriceMin
	}

	store, err := m.catalog.StoreMeta(ctx, req.Slug)
	if err != nil {
		return nil, nil, err
	}
	storeURL := ""
	if store != nil {
		storeURL = store.URL
	}
	productURL := catalog.CanonicalURL(product.URL, storeURL)

	options := variant.Options
	if options == nil {
		options = map[string]string{}
	}

	upsertCtx, cancel := m.stmtCtx(ctx)
	defer cancel()
	_, err = m.pool.Exec(upsertCtx, `
		insert into basket_items
			(basket_id, variant_id, product_handle, product_title, product_url,
			 options, unit_price, quantity, available, added_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		on conflict (basket_id, variant_id) do update set
			quantity       = least(basket_items.quantity + excluded.quantity, 99),
			product_handle = excluded.product_handle,
			product_title  = excluded.product_title,
			product_url    = excluded.product_url,
			options        = excluded.options,
			unit_price     = excluded.unit_price,
			available      = excluded.available,
			updated_at     = now()`,
		b.ID, variant.ID, product.Handle, product.Title, productURL,
		options, unitPrice, quantity, variant.Available)
	if err != nil {
		return nil, nil, fmt.Errorf("upserting basket line: %w", err)
	}

	if err := m.touch(ctx, b.ID); err != nil {
		return nil, nil, err
	}

	// Re-read the basket we just wrote to; it vanishing here is a hard fault.
	refreshed, failure, err := m.fetch(ctx, b.ID, req.Slug, false)
	if err != nil {
		return nil, nil, err
	}
	if failure != nil {
		return nil, nil, fmt.Errorf("basket %s disappeared after upsert", b.ID)
	}

	view, err := m.payload(ctx, refreshed)
	if err != nil {
		return nil, nil, err
	}

	telemetry.RecordBasketOperation("add_line", "ok")
	return map[string]any{
		"basket_id": b.ID,
		"added": map[string]any{
			"variant_id": variant.ID,
			"title":      product.Title,
			"quantity":   quantity,
		},
		"basket": view,
	}, nil, nil
}

func (m *Manager) touch(ctx context.Context, basketID string) error {
	ctx, cancel := m.stmtCtx(ctx)
	defer cancel()

	_, err := m.pool.Exec(ctx, `update baskets set updated_at = now() where basket_id = $1`, basketID)
	if err != nil {
		return fmt.Errorf("touching basket %s: %w", basketID, err)
	}
	return nil
}

// Get returns the basket view. Checked-out baskets stay readable.
func (m *Manager) Get(ctx context.Context, basketID, slug string) (map[string]any, *Failure, error) {
	if strings.TrimSpace(basketID) == "" {
		return nil, fail(CodeInvalidBasketID, "basket_id is required"), nil
	}

	b, failure, err := m.fetch(ctx, basketID, slug, false)
	if failure != nil || err != nil {
		return nil, failure, err
	}

	view, err := m.payload(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"basket": view}, nil, nil
}

// UpdateLine sets a line quantity. Zero or negative deletes the line;
// positive values clamp to [1, 99].
func (m *Manager) UpdateLine(ctx context.Context, basketID, slug, variantID string, quantity int) (map[string]any, *Failure, error) {
	if strings.TrimSpace(basketID) == "" {
		return nil, fail(CodeInvalidBasketID, "basket_id is required"), nil
	}
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return nil, fail(CodeInvalidVariantID, "variant_id is required"), nil
	}

	b, failure, err := m.fetch(ctx, basketID, slug, true)
	if failure != nil || err != nil {
		return nil, failure, err
	}

	stmtCtx, cancel := m.stmtCtx(ctx)
	defer cancel()

	var tag string
	if quantity <= 0 {
		res, err := m.pool.Exec(stmtCtx, `
			delete from basket_items where basket_id = $1 and variant_id = $2`,
			b.ID, variantID)
		if err != nil {
			return nil, nil, fmt.Errorf("deleting basket line: %w", err)
		}
		if res.RowsAffected() == 0 {
			return nil, fail(CodeBasketLineNotFound, "no such line in basket"), nil
		}
		tag = "remove_line"
	} else {
		if quantity > maxLineQuantity {
			quantity = maxLineQuantity
		}
		res, err := m.pool.Exec(stmtCtx, `
			update basket_items set quantity = $3, updated_at = now()
			where basket_id = $1 and variant_id = $2`,
			b.ID, variantID, quantity)
		if err != nil {
			return nil, nil, fmt.Errorf("updating basket line: %w", err)
		}
		if res.RowsAffected() == 0 {
			return nil, fail(CodeBasketLineNotFound, "no such line in basket"), nil
		}
		tag = "update_line"
	}

	if err := m.touch(ctx, b.ID); err != nil {
		return nil, nil, err
	}

	view, err := m.payload(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	telemetry.RecordBasketOperation(tag, "ok")
	return map[string]any{"basket": view}, nil, nil
}

// RemoveLine deletes a line outright.
func (m *Manager) RemoveLine(ctx context.Context, basketID, slug, variantID string) (map[string]any, *Failure, error) {
	return m.UpdateLine(ctx, basketID, slug, variantID, 0)
}

// Clear deletes every line while keeping the basket itself.
func (m *Manager) Clear(ctx context.Context, basketID, slug string) (map[string]any, *Failure, error) {
	if strings.TrimSpace(basketID) == "" {
		return nil, fail(CodeInvalidBasketID, "basket_id is required"), nil
	}

	b, failure, err := m.fetch(ctx, basketID, slug, true)
	if failure != nil || err != nil {
		return nil, failure, err
	}

	stmtCtx, cancel := m.stmtCtx(ctx)
	defer cancel()
	if _, err := m.pool.Exec(stmtCtx, `delete from basket_items where basket_id = $1`, b.ID); err != nil {
		return nil, nil, fmt.Errorf("clearing basket: %w", err)
	}

	if err := m.touch(ctx, b.ID); err != nil {
		return nil, nil, err
	}

	view, err := m.payload(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	telemetry.RecordBasketOperation("clear", "ok")
	return map[string]any{"basket": view}, nil, nil
}

func variantFailureMessage(code string) string {
	switch code {
	case catalog.CodeNoVariants:
		return "product has no purchasable variants"
	case catalog.CodeVariantNotFound:
		return "no variant with that id"
	case catalog.CodeOptionsNotFound:
		return "no variant matches the requested options"
	case catalog.CodeVariantSelectionRequired:
		return "multiple variants available; specify variant_id or options"
	case catalog.CodeVariantUnavailable:
		return "the selected variant is unavailable"
	case catalog.CodeMissingVariantID:
		return "the selected variant has no id"
	default:
		return "variant resolution failed"
	}
}
