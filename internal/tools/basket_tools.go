package tools

import (
	"context"

	"github.com/shopmcp/storefront-mcp/internal/basket"
)

var basketArrayKeys = []string{"items", "product_urls"}

func (r *Registry) registerBasketTools() {
	r.register(Definition{
		Name:           "add_to_basket",
		Description:    "Add a product variant to a basket, creating the basket if needed.",
		InputSchema:    schemaFor(&addToBasketArgs{}),
		extraArrayKeys: basketArrayKeys,
	}, r.addToBasket)

	r.register(Definition{
		Name:           "get_basket",
		Description:    "Fetch a basket with its lines and totals.",
		InputSchema:    schemaFor(&getBasketArgs{}),
		extraArrayKeys: basketArrayKeys,
	}, r.getBasket)

	r.register(Definition{
		Name:           "update_basket_item",
		Description:    "Set a line quantity; zero removes the line.",
		InputSchema:    schemaFor(&updateBasketItemArgs{}),
		extraArrayKeys: basketArrayKeys,
	}, r.updateBasketItem)

	r.register(Definition{
		Name:           "remove_basket_item",
		Description:    "Remove a line from a basket.",
		InputSchema:    schemaFor(&removeBasketItemArgs{}),
		extraArrayKeys: basketArrayKeys,
	}, r.removeBasketItem)

	r.register(Definition{
		Name:           "clear_basket",
		Description:    "Remove every line from a basket.",
		InputSchema:    schemaFor(&clearBasketArgs{}),
		extraArrayKeys: basketArrayKeys,
	}, r.clearBasket)

	r.register(Definition{
		Name:           "create_checkout_intent",
		Description:    "Build the prefilled checkout link; optionally check the basket out.",
		InputSchema:    schemaFor(&checkoutIntentArgs{}),
		extraArrayKeys: basketArrayKeys,
	}, r.checkoutIntent)

	r.register(Definition{
		Name:           "get_checkout_link",
		Description:    "Build the prefilled checkout link (alias of create_checkout_intent).",
		InputSchema:    schemaFor(&checkoutIntentArgs{}),
		extraArrayKeys: basketArrayKeys,
	}, r.checkoutIntent)

	r.register(Definition{
		Name:           "checkout_items",
		Description:    "Add a list of items to a basket and create the checkout intent.",
		InputSchema:    schemaFor(&checkoutItemsArgs{}),
		extraArrayKeys: basketArrayKeys,
	}, r.checkoutItems)
}

// basketResult converts the manager's (value, failure) pair to a tool result.
func basketResult(result map[string]any, failure *basket.Failure, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return failure.Map(), nil
	}
	return result, nil
}

func (r *Registry) resolveSlug(ctx context.Context, args Args) (string, error) {
	slugArg, err := args.String("slug")
	if err != nil {
		return "", err
	}
	return r.resolver.Resolve(ctx, slugArg, "")
}

func (r *Registry) addToBasket(ctx context.Context, args Args) (any, error) {
	basketID, err := args.String("basket_id")
	if err != nil {
		return nil, err
	}
	handle, err := args.String("handle")
	if err != nil {
		return nil, err
	}
	variantID, err := args.String("variant_id")
	if err != nil {
		return nil, err
	}
	options, err := args.OptionMap("options")
	if err != nil {
		return nil, err
	}
	quantity, err := args.Int("quantity", 1)
	if err != nil {
		return nil, err
	}
	slug, err := r.resolveSlug(ctx, args)
	if err != nil {
		return nil, err
	}

	return basketResult(r.baskets.AddLine(ctx, basket.AddLineRequest{
		BasketID:  basketID,
		Slug:      slug,
		Handle:    handle,
		VariantID: variantID,
		Options:   options,
		Quantity:  quantity,
	}))
}

func (r *Registry) getBasket(ctx context.Context, args Args) (any, error) {
	basketID, err := args.String("basket_id")
	if err != nil {
		return nil, err
	}
	slug, err := r.resolveSlug(ctx, args)
	if err != nil {
		return nil, err
	}
	return basketResult(r.baskets.Get(ctx, basketID, slug))
}

func (r *Registry) updateBasketItem(ctx context.Context, args Args) (any, error) {
	basketID, err := args.String("basket_id")
	if err != nil {
		return nil, err
	}
	variantID, err := args.String("variant_id")
	if err != nil {
		return nil, err
	}
	quantity, err := args.Int("quantity", 1)
	if err != nil {
		return nil, err
	}
	slug, err := r.resolveSlug(ctx, args)
	if err != nil {
		return nil, err
	}
	return basketResult(r.baskets.UpdateLine(ctx, basketID, slug, variantID, quantity))
}

func (r *Registry) removeBasketItem(ctx context.Context, args Args) (any, error) {
	basketID, err := args.String("basket_id")
	if err != nil {
		return nil, err
	}
	variantID, err := args.String("variant_id")
	if err != nil {
		return nil, err
	}
	slug, err := r.resolveSlug(ctx, args)
	if err != nil {
		return nil, err
	}
	return basketResult(r.baskets.RemoveLine(ctx, basketID, slug, variantID))
}

func (r *Registry) clearBasket(ctx context.Context, args Args) (any, error) {
	basketID, err := args.String("basket_id")
	if err != nil {
		return nil, err
	}
	slug, err := r.resolveSlug(ctx, args)
	if err != nil {
		return nil, err
	}
	return basketResult(r.baskets.Clear(ctx, basketID, slug))
}

// checkoutIntent backs both create_checkout_intent and its get_checkout_link
// alias. The checked_out transition is opt-in: without an explicit
// mark_checked_out=true the basket stays active and writable.
func (r *Registry) checkoutIntent(ctx context.Context, args Args) (any, error) {
	basketID, err := args.String("basket_id")
	if err != nil {
		return nil, err
	}
	markCheckedOut, err := args.Bool("mark_checked_out", false)
	if err != nil {
		return nil, err
	}
	slug, err := r.resolveSlug(ctx, args)
	if err != nil {
		return nil, err
	}
	return basketResult(r.baskets.CheckoutIntent(ctx, basketID, slug, markCheckedOut))
}

func (r *Registry) checkoutItems(ctx context.Context, args Args) (any, error) {
	rawItems, err := args.ObjectSlice("items")
	if err != nil {
		return nil, err
	}
	basketID, err := args.String("basket_id")
	if err != nil {
		return nil, err
	}
	markCheckedOut, err := args.Bool("mark_checked_out", false)
	if err != nil {
		return nil, err
	}
	slug, err := r.resolveSlug(ctx, args)
	if err != nil {
		return nil, err
	}

	items := make([]basket.CheckoutItem, 0, len(rawItems))
	for _, raw := range rawItems {
		itemArgs := Args(raw)
		handle, err := itemArgs.String("handle")
		if err != nil {
			return nil, err
		}
		variantID, err := itemArgs.String("variant_id")
		if err != nil {
			return nil, err
		}
		options, err := itemArgs.OptionMap("options")
		if err != nil {
			return nil, err
		}
		quantity, err := itemArgs.Int("quantity", 1)
		if err != nil {
			return nil, err
		}
		items = append(items, basket.CheckoutItem{
			Handle:    handle,
			VariantID: variantID,
			Options:   options,
			Quantity:  quantity,
		})
	}

	return basketResult(r.baskets.CheckoutItems(ctx, basketID, slug, items, markCheckedOut))
}
