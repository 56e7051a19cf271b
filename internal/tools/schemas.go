package tools

import "github.com/invopop/jsonschema"

// Argument shapes, reflected into the JSON Schemas served by the descriptor
// endpoints. The structs are documentation only; decoding stays dynamic so a
// sloppy caller gets a targeted 400 instead of a generic unmarshal error.

type searchProductsArgs struct {
	Query         string `json:"query" jsonschema:"description=Free-text product query"`
	Limit         int    `json:"limit,omitempty" jsonschema:"description=Maximum results (1-50)"`
	AvailableOnly bool   `json:"available_only,omitempty" jsonschema:"description=Drop unavailable products (default true)"`
	Slug          string `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type searchProductsV2Args struct {
	Query          string `json:"query" jsonschema:"description=Free-text product query"`
	Limit          int    `json:"limit,omitempty" jsonschema:"description=Maximum results (1-8)"`
	AvailableOnly  bool   `json:"available_only,omitempty" jsonschema:"description=Drop unavailable products (default true)"`
	BudgetMinCents int    `json:"budget_min_cents,omitempty" jsonschema:"description=Budget floor in integer cents"`
	BudgetMaxCents int    `json:"budget_max_cents,omitempty" jsonschema:"description=Budget ceiling in integer cents"`
	SkinTone       string `json:"skin_tone,omitempty" jsonschema:"description=Skin tone hint (deep/dark, tan/medium, light/fair)"`
	Sort           string `json:"sort,omitempty" jsonschema:"description=best_match, price_low_to_high, or price_high_to_low"`
	Slug           string `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type listStoresArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum stores (1-200)"`
}

type filterProductsArgs struct {
	ProductType   string            `json:"product_type,omitempty" jsonschema:"description=Exact product type (case-insensitive)"`
	Tags          []string          `json:"tags,omitempty" jsonschema:"description=Tags the product must carry"`
	MinPriceCents int               `json:"min_price_cents,omitempty" jsonschema:"description=Price floor in integer cents"`
	MaxPriceCents int               `json:"max_price_cents,omitempty" jsonschema:"description=Price ceiling in integer cents"`
	AvailableOnly bool              `json:"available_only,omitempty" jsonschema:"description=Drop unavailable products"`
	Options       map[string]string `json:"options,omitempty" jsonschema:"description=Option name to value a variant must match"`
	Limit         int               `json:"limit,omitempty" jsonschema:"description=Maximum results (1-100)"`
	Slug          string            `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type getProductArgs struct {
	Handle string `json:"handle" jsonschema:"description=Product handle"`
	Slug   string `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type checkVariantAvailabilityArgs struct {
	Handle  string            `json:"handle" jsonschema:"description=Product handle"`
	Options map[string]string `json:"options,omitempty" jsonschema:"description=Option name to value identifying the variant"`
	Slug    string            `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type listCategoriesArgs struct {
	Slug string `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type addToBasketArgs struct {
	BasketID  string            `json:"basket_id,omitempty" jsonschema:"description=Existing basket id; omit to create one"`
	Handle    string            `json:"handle" jsonschema:"description=Product handle"`
	VariantID string            `json:"variant_id,omitempty" jsonschema:"description=Exact variant id"`
	Options   map[string]string `json:"options,omitempty" jsonschema:"description=Option name to value selecting a variant"`
	Quantity  int               `json:"quantity,omitempty" jsonschema:"description=Line quantity (1-99, default 1)"`
	Slug      string            `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type getBasketArgs struct {
	BasketID string `json:"basket_id" jsonschema:"description=Basket id"`
	Slug     string `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type updateBasketItemArgs struct {
	BasketID  string `json:"basket_id" jsonschema:"description=Basket id"`
	VariantID string `json:"variant_id" jsonschema:"description=Variant id of the line"`
	Quantity  int    `json:"quantity" jsonschema:"description=New quantity; 0 or less removes the line"`
	Slug      string `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type removeBasketItemArgs struct {
	BasketID  string `json:"basket_id" jsonschema:"description=Basket id"`
	VariantID string `json:"variant_id" jsonschema:"description=Variant id of the line"`
	Slug      string `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type clearBasketArgs struct {
	BasketID string `json:"basket_id" jsonschema:"description=Basket id"`
	Slug     string `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type checkoutIntentArgs struct {
	BasketID       string `json:"basket_id" jsonschema:"description=Basket id"`
	MarkCheckedOut bool   `json:"mark_checked_out,omitempty" jsonschema:"description=Transition the basket to checked_out (default false)"`
	Slug           string `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

type checkoutItemArgs struct {
	Handle    string            `json:"handle" jsonschema:"description=Product handle"`
	VariantID string            `json:"variant_id,omitempty" jsonschema:"description=Exact variant id"`
	Options   map[string]string `json:"options,omitempty" jsonschema:"description=Option name to value selecting a variant"`
	Quantity  int               `json:"quantity,omitempty" jsonschema:"description=Line quantity (default 1)"`
}

type checkoutItemsArgs struct {
	Items          []checkoutItemArgs `json:"items" jsonschema:"description=Lines to add before checkout"`
	BasketID       string             `json:"basket_id,omitempty" jsonschema:"description=Existing basket id; omit to create one"`
	MarkCheckedOut bool               `json:"mark_checked_out,omitempty" jsonschema:"description=Transition the basket to checked_out (default false)"`
	Slug           string             `json:"slug,omitempty" jsonschema:"description=Target store slug"`
}

var schemaReflector = jsonschema.Reflector{
	Anonymous:      true,
	DoNotReference: true,
}

func schemaFor(v any) *jsonschema.Schema {
	return schemaReflector.Reflect(v)
}
