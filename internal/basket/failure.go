package basket

// Failure is a tool-level error value: it travels back to the caller as a
// JSON map with a stable code, never as a transport error.
type Failure struct {
	Code    string
	Message string
	Extra   map[string]any
}

// Basket failure codes.
const (
	CodeInvalidHandle       = "invalid_handle"
	CodeInvalidQuantity     = "invalid_quantity"
	CodeInvalidVariantID    = "invalid_variant_id"
	CodeInvalidItems        = "invalid_items"
	CodeInvalidBasketID     = "invalid_basket_id"
	CodeProductNotFound     = "product_not_found"
	CodeBasketNotFound      = "basket_not_found"
	CodeBasketScopeError    = "basket_scope_error"
	CodeBasketLineNotFound  = "basket_line_not_found"
	CodeEmptyBasket         = "empty_basket"
	CodeBasketCreateFailed  = "basket_create_failed"
	CodeCheckoutBuildFailed = "checkout_url_build_failed"
	CodeUnsupportedPlatform = "unsupported_platform"
	CodeMissingVariantIDs   = "missing_variant_ids"
)

func fail(code, message string) *Failure {
	return &Failure{Code: code, Message: message}
}

// Map renders the failure as its wire value.
func (f *Failure) Map() map[string]any {
	out := map[string]any{
		"error": f.Message,
		"code":  f.Code,
	}
	for k, v := range f.Extra {
		out[k] = v
	}
	return out
}

// With attaches an extra wire field.
func (f *Failure) With(key string, value any) *Failure {
	if f.Extra == nil {
		f.Extra = map[string]any{}
	}
	f.Extra[key] = value
	return f
}
