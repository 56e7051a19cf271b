package tools

import (
	"context"
	"fmt"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
	"github.com/shopmcp/storefront-mcp/internal/search"
)

const (
	listStoresLimitDefault = 25
	listStoresLimitMax     = 200
	filterLimitDefault     = 20
	filterLimitMax         = 100
)

func (r *Registry) registerCatalogTools() {
	r.register(Definition{
		Name:           "list_stores",
		Description:    "List indexed stores, largest catalog first.",
		InputSchema:    schemaFor(&listStoresArgs{}),
		extraArrayKeys: []string{"stores"},
	}, r.listStores)

	r.register(Definition{
		Name:        "filter_products",
		Description: "Structured product filtering by type, tags, price window, and options.",
		InputSchema: schemaFor(&filterProductsArgs{}),
	}, r.filterProducts)

	r.register(Definition{
		Name:           "get_product",
		Description:    "Full product detail with variants and available options.",
		InputSchema:    schemaFor(&getProductArgs{}),
		extraArrayKeys: []string{"available_options"},
	}, r.getProduct)

	r.register(Definition{
		Name:           "get_product_brief_v2",
		Description:    "Compact product brief for agent consumption (v2).",
		InputSchema:    schemaFor(&getProductArgs{}),
		extraArrayKeys: []string{"available_options"},
	}, r.getProductBrief)

	r.register(Definition{
		Name:        "check_variant_availability",
		Description: "Check whether a specific option combination is purchasable.",
		InputSchema: schemaFor(&checkVariantAvailabilityArgs{}),
	}, r.checkVariantAvailability)

	r.register(Definition{
		Name:        "list_categories",
		Description: "Product types and top tags for a store.",
		InputSchema: schemaFor(&listCategoriesArgs{}),
	}, r.listCategories)
}

func (r *Registry) listStores(ctx context.Context, args Args) (any, error) {
	limit, err := args.Int("limit", listStoresLimitDefault)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 1
	}
	if limit > listStoresLimitMax {
		limit = listStoresLimitMax
	}

	stores, err := r.catalog.ListStores(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(stores))
	for _, s := range stores {
		out = append(out, map[string]any{
			"slug":          s.Slug,
			"name":          s.Name,
			"url":           s.URL,
			"platform":      s.Platform,
			"product_count": s.ProductCount,
			"indexed_at":    s.IndexedAt,
			"last_error":    s.LastError,
		})
	}
	return map[string]any{"stores": out, "count": len(out)}, nil
}

func (r *Registry) filterProducts(ctx context.Context, args Args) (any, error) {
	productType, err := args.String("product_type")
	if err != nil {
		return nil, err
	}
	tags, err := args.StringSlice("tags")
	if err != nil {
		return nil, err
	}
	minPrice, err := args.CentsPtr("min_price_cents")
	if err != nil {
		return nil, err
	}
	maxPrice, err := args.CentsPtr("max_price_cents")
	if err != nil {
		return nil, err
	}
	availableOnly, err := args.Bool("available_only", false)
	if err != nil {
		return nil, err
	}
	options, err := args.OptionMap("options")
	if err != nil {
		return nil, err
	}
	limit, err := args.Int("limit", filterLimitDefault)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 1
	}
	if limit > filterLimitMax {
		limit = filterLimitMax
	}
	slugArg, err := args.String("slug")
	if err != nil {
		return nil, err
	}

	slug, err := r.resolver.Resolve(ctx, slugArg, productType)
	if err != nil {
		return nil, err
	}

	scanCap := limit * 15
	if scanCap < 200 {
		scanCap = 200
	}
	candidates, err := r.catalog.Filter(ctx, slug, catalog.FilterParams{
		ProductType:   productType,
		Tags:          tags,
		MinPriceCents: minPrice,
		MaxPriceCents: maxPrice,
		AvailableOnly: availableOnly,
		ScanCap:       scanCap,
	})
	if err != nil {
		return nil, err
	}

	store, err := r.catalog.StoreMeta(ctx, slug)
	if err != nil {
		return nil, err
	}
	storeURL := ""
	if store != nil {
		storeURL = store.URL
	}

	want := catalog.NormalizeOptions(options)
	out := make([]any, 0, limit)
	for _, p := range candidates {
		if len(want) > 0 && !hasMatchingVariant(p, want) {
			continue
		}
		out = append(out, search.ProductSummary(p, storeURL))
		if len(out) >= limit {
			break
		}
	}

	return map[string]any{
		"store":    slug,
		"products": out,
		"count":    len(out),
	}, nil
}

// hasMatchingVariant reports whether any variant's normalized options are a
// superset of the requested pairs.
func hasMatchingVariant(p *catalog.Product, want map[string]string) bool {
	for _, v := range p.Variants() {
		have := v.NormalizedOptions()
		matched := true
		for name, value := range want {
			if have[name] != value {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func (r *Registry) getProduct(ctx context.Context, args Args) (any, error) {
	product, storeURL, failure, err := r.lookupProduct(ctx, args)
	if failure != nil || err != nil {
		return failure, err
	}

	variants := product.Variants()
	variantViews := make([]any, 0, len(variants))
	for _, v := range variants {
		variantViews = append(variantViews, map[string]any{
			"variant_id": v.ID,
			"title":      v.Title,
			"available":  v.Available,
			"price":      v.PriceCents,
			"options":    v.Options,
		})
	}

	view := search.ProductSummary(product, storeURL)
	view["variants"] = variantViews
	view["available_options"] = catalog.AvailableOptionValues(product)
	return map[string]any{"product": view}, nil
}

func (r *Registry) getProductBrief(ctx context.Context, args Args) (any, error) {
	if !r.search.V2Enabled() {
		return failureValue("v2_disabled", "get_product_brief_v2 is not enabled"), nil
	}

	product, storeURL, failure, err := r.lookupProduct(ctx, args)
	if failure != nil || err != nil {
		return failure, err
	}
	return map[string]any{"product": search.ProductBrief(product, storeURL)}, nil
}

func (r *Registry) checkVariantAvailability(ctx context.Context, args Args) (any, error) {
	options, err := args.OptionMap("options")
	if err != nil {
		return nil, err
	}

	product, _, failure, err := r.lookupProduct(ctx, args)
	if failure != nil || err != nil {
		return failure, err
	}

	variant, code := catalog.ResolveVariant(product, "", options)
	if code == catalog.CodeVariantUnavailable {
		return map[string]any{"matched": true, "available": false}, nil
	}
	if code != "" {
		return failureValue(code, fmt.Sprintf("variant lookup failed: %s", code)), nil
	}

	return map[string]any{
		"matched":    true,
		"available":  variant.Available,
		"variant_id": variant.ID,
		"price":      variant.PriceCents,
	}, nil
}

func (r *Registry) listCategories(ctx context.Context, args Args) (any, error) {
	slugArg, err := args.String("slug")
	if err != nil {
		return nil, err
	}
	slug, err := r.resolver.Resolve(ctx, slugArg, "")
	if err != nil {
		return nil, err
	}

	types, tags, total, err := r.catalog.Categories(ctx, slug)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"store":          slug,
		"product_types":  types,
		"top_tags":       tags,
		"total_products": total,
	}, nil
}

// lookupProduct resolves the slug and fetches the product named by the
// handle argument. The third return is a tool-level failure value.
func (r *Registry) lookupProduct(ctx context.Context, args Args) (*catalog.Product, string, map[string]any, error) {
	handle, err := args.RequiredString("handle")
	if err != nil {
		return nil, "", nil, err
	}
	slugArg, err := args.String("slug")
	if err != nil {
		return nil, "", nil, err
	}

	slug, err := r.resolver.Resolve(ctx, slugArg, handle)
	if err != nil {
		return nil, "", nil, err
	}

	product, err := r.catalog.FindByHandle(ctx, slug, handle)
	if err != nil {
		return nil, "", nil, err
	}
	if product == nil {
		return nil, "", failureValue("product_not_found", fmt.Sprintf("no product with handle %q", handle)), nil
	}

	store, err := r.catalog.StoreMeta(ctx, slug)
	if err != nil {
		return nil, "", nil, err
	}
	storeURL := ""
	if store != nil {
		storeURL = store.URL
	}
	return product, storeURL, nil, nil
}
