package basket

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopmcp/storefront-mcp/internal/telemetry"
)

// platformShopify is the only platform with prefilled-cart permalinks.
const platformShopify = "shopify"

// CheckoutIntent builds the platform checkout link for a non-empty basket.
// Non-Shopify stores and lines without variant IDs get the manual fallback
// shape instead of a failure. The URL persists on the basket; with
// markCheckedOut the basket transitions to its terminal state.
func (m *Manager) CheckoutIntent(ctx context.Context, basketID, slug string, markCheckedOut bool) (map[string]any, *Failure, error) {
	if strings.TrimSpace(basketID) == "" {
		return nil, fail(CodeInvalidBasketID, "basket_id is required"), nil
	}

	// Checked-out baskets may re-fetch their link.
	b, failure, err := m.fetch(ctx, basketID, slug, false)
	if failure != nil || err != nil {
		return nil, failure, err
	}

	lines, err := m.lines(ctx, b.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, fail(CodeEmptyBasket, "basket has no items"), nil
	}

	store, err := m.catalog.StoreMeta(ctx, b.StoreSlug)
	if err != nil {
		return nil, nil, err
	}

	productURLs := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.URL != "" {
			productURLs = append(productURLs, l.URL)
		}
	}

	if store == nil || !strings.EqualFold(store.Platform, platformShopify) {
		telemetry.RecordBasketOperation("checkout_intent", "unsupported_platform")
		view, err := m.payload(ctx, b)
		if err != nil {
			return nil, nil, err
		}
		return map[string]any{
			"supported":       false,
			"reason":          CodeUnsupportedPlatform,
			"manual_checkout": true,
			"product_urls":    productURLs,
			"basket":          view,
		}, nil, nil
	}

	for _, l := range lines {
		if strings.TrimSpace(l.VariantID) == "" {
			telemetry.RecordBasketOperation("checkout_intent", "missing_variant_ids")
			view, err := m.payload(ctx, b)
			if err != nil {
				return nil, nil, err
			}
			return map[string]any{
				"supported":       false,
				"reason":          CodeMissingVariantIDs,
				"manual_checkout": true,
				"product_urls":    productURLs,
				"basket":          view,
			}, nil, nil
		}
	}

	url, buildErr := buildPermalink(store.URL, lines)
	if buildErr != nil {
		m.logger.Error().Err(buildErr).Str("basket_id", b.ID).Msg("checkout url build failed")
		return nil, fail(CodeCheckoutBuildFailed, "could not build checkout url"), nil
	}

	stmtCtx, cancel := m.stmtCtx(ctx)
	defer cancel()
	if markCheckedOut && b.Status == StatusActive {
		_, err = m.pool.Exec(stmtCtx, `
			update baskets
			set checkout_url = $2, status = $3, checked_out_at = now(), updated_at = now()
			where basket_id = $1`, b.ID, url, StatusCheckedOut)
	} else {
		_, err = m.pool.Exec(stmtCtx, `
			update baskets set checkout_url = $2, updated_at = now()
			where basket_id = $1`, b.ID, url)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("persisting checkout url: %w", err)
	}

	refreshed, failure, err := m.fetch(ctx, b.ID, slug, false)
	if err != nil {
		return nil, nil, err
	}
	if failure != nil {
		return nil, nil, fmt.Errorf("basket %s disappeared during checkout", b.ID)
	}

	view, err := m.payload(ctx, refreshed)
	if err != nil {
		return nil, nil, err
	}

	telemetry.RecordBasketOperation("checkout_intent", "ok")
	return map[string]any{
		"supported":    true,
		"checkout_url": url,
		"basket":       view,
	}, nil, nil
}

// buildPermalink renders the Shopify cart URL:
// {base}/cart/{escaped_variant_id}:{qty}[,...].
func buildPermalink(storeURL string, lines []Line) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(storeURL), "/")
	if base == "" {
		return "", fmt.Errorf("store has no base url")
	}

	segments := make([]string, 0, len(lines))
	for _, l := range lines {
		segments = append(segments, fmt.Sprintf("%s:%d", escapeVariantID(l.VariantID), l.Quantity))
	}
	return base + "/cart/" + strings.Join(segments, ","), nil
}

// escapeVariantID percent-encodes every byte outside the URL-unreserved set,
// so "gid://v1" round-trips through the permalink.
func escapeVariantID(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// CheckoutItem is one line of a composite checkout request.
type CheckoutItem struct {
	Handle    string
	VariantID string
	Options   map[string]string
	Quantity  int
}

// CheckoutItems adds every requested line to a basket (reusing basketID when
// given) and then creates the checkout intent. The first add failure is
// returned annotated with its position and how many lines landed before it.
func (m *Manager) CheckoutItems(ctx context.Context, basketID, slug string, items []CheckoutItem, markCheckedOut bool) (map[string]any, *Failure, error) {
	if len(items) == 0 {
		return nil, fail(CodeInvalidItems, "items must be a non-empty list"), nil
	}

	added := 0
	for i, item := range items {
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}
		result, failure, err := m.AddLine(ctx, AddLineRequest{
			BasketID:  basketID,
			Slug:      slug,
			Handle:    item.Handle,
			VariantID: item.VariantID,
			Options:   item.Options,
			Quantity:  quantity,
		})
		if err != nil {
			return nil, nil, err
		}
		if failure != nil {
			return nil, failure.With("line_index", i).With("added_count", added), nil
		}
		if id, ok := result["basket_id"].(string); ok {
			basketID = id
		}
		added++
	}

	result, failure, err := m.CheckoutIntent(ctx, basketID, slug, markCheckedOut)
	if failure != nil || err != nil {
		return nil, failure, err
	}

	result["added_items"] = added
	result["line_count"] = len(items)
	return result, nil, nil
}
