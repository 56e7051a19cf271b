package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDefinitions(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil)
	defs := r.Definitions()

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
		require.NotNil(t, d.InputSchema, "tool %s has no schema", d.Name)
		require.NotEmpty(t, d.Description, "tool %s has no description", d.Name)
	}

	assert.IsIncreasing(t, names)
	for _, want := range []string{
		"add_to_basket", "check_variant_availability", "checkout_items",
		"clear_basket", "create_checkout_intent", "filter_products",
		"get_basket", "get_checkout_link", "get_product",
		"get_product_brief_v2", "list_categories", "list_stores",
		"remove_basket_item", "search_products", "search_products_v2",
		"update_basket_item",
	} {
		assert.Contains(t, names, want)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil)

	_, err := r.Dispatch(context.Background(), "no_such_tool", nil)
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestDispatchBadArguments(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil)

	// Missing required query.
	_, err := r.Dispatch(context.Background(), "search_products", map[string]any{})
	require.Error(t, err)
	assert.True(t, isBadArgument(err))

	// Wrong argument type.
	_, err = r.Dispatch(context.Background(), "search_products", map[string]any{
		"query": "serum",
		"limit": "ten",
	})
	require.Error(t, err)
	assert.True(t, isBadArgument(err))
}

func TestDispatchNormalizesFailureValues(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil)
	r.register(Definition{Name: "fake_failure"}, func(ctx context.Context, args Args) (any, error) {
		return failureValue("product_not_found", "no product"), nil
	})

	result, err := r.Dispatch(context.Background(), "fake_failure", nil)
	require.NoError(t, err)
	assert.Equal(t, "product_not_found", result["code"])
	assert.Equal(t, "no product", result["error"])
}

func TestDispatchWrapsNonMapResults(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil)
	r.register(Definition{Name: "fake_list"}, func(ctx context.Context, args Args) (any, error) {
		return []any{"a", "b"}, nil
	})

	result, err := r.Dispatch(context.Background(), "fake_list", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, result["results"])
}

func TestDispatchNormalizesPayload(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil)
	r.register(Definition{Name: "fake_product", extraArrayKeys: []string{"fit_signals"}},
		func(ctx context.Context, args Args) (any, error) {
			return map[string]any{
				"price":       "19.99",
				"available":   "yes",
				"vendor":      nil,
				"fit_signals": nil,
			}, nil
		})

	result, err := r.Dispatch(context.Background(), "fake_product", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1999), result["price"])
	assert.Equal(t, true, result["available"])
	assert.NotContains(t, result, "vendor")
	assert.Equal(t, []any{}, result["fit_signals"])
}
