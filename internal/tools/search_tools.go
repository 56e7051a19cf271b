package tools

import (
	"context"

	"github.com/shopmcp/storefront-mcp/internal/search"
)

func (r *Registry) registerSearchTools() {
	r.register(Definition{
		Name:           "search_products",
		Description:    "Hybrid lexical and vector product search with rank fusion.",
		InputSchema:    schemaFor(&searchProductsArgs{}),
		extraArrayKeys: []string{"fit_signals", "tone_matches"},
	}, r.searchProducts)

	r.register(Definition{
		Name:           "search_products_v2",
		Description:    "Scored product search with budget, availability, and shade signals.",
		InputSchema:    schemaFor(&searchProductsV2Args{}),
		extraArrayKeys: []string{"fit_signals", "tone_matches"},
	}, r.searchProductsV2)
}

func (r *Registry) searchProducts(ctx context.Context, args Args) (any, error) {
	query, err := args.RequiredString("query")
	if err != nil {
		return nil, err
	}
	limit, err := args.Int("limit", 0)
	if err != nil {
		return nil, err
	}
	availableOnly, err := args.Bool("available_only", true)
	if err != nil {
		return nil, err
	}
	slug, err := args.String("slug")
	if err != nil {
		return nil, err
	}

	return r.search.Search(ctx, search.Params{
		Query:         query,
		Limit:         limit,
		AvailableOnly: availableOnly,
		Slug:          slug,
	})
}

func (r *Registry) searchProductsV2(ctx context.Context, args Args) (any, error) {
	if !r.search.V2Enabled() {
		return failureValue("v2_disabled", "search_products_v2 is not enabled"), nil
	}

	query, err := args.RequiredString("query")
	if err != nil {
		return nil, err
	}
	limit, err := args.Int("limit", 0)
	if err != nil {
		return nil, err
	}
	availableOnly, err := args.Bool("available_only", true)
	if err != nil {
		return nil, err
	}
	budgetMin, err := args.CentsPtr("budget_min_cents")
	if err != nil {
		return nil, err
	}
	budgetMax, err := args.CentsPtr("budget_max_cents")
	if err != nil {
		return nil, err
	}
	skinTone, err := args.String("skin_tone")
	if err != nil {
		return nil, err
	}
	sortMode, err := args.String("sort")
	if err != nil {
		return nil, err
	}
	slug, err := args.String("slug")
	if err != nil {
		return nil, err
	}

	return r.search.SearchV2(ctx, search.V2Params{
		Params: search.Params{
			Query:         query,
			Limit:         limit,
			AvailableOnly: availableOnly,
			Slug:          slug,
		},
		BudgetMinCents: budgetMin,
		BudgetMaxCents: budgetMax,
		SkinTone:       skinTone,
		Sort:           sortMode,
	})
}
