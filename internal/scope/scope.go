// Package scope carries the request-scoped store slug on context.Context so
// path-scoped tool invocations resolve against the right store without every
// caller threading a slug argument.
package scope

import "context"

type ctxKey struct{}

// WithStoreSlug returns a child context carrying slug. Empty slugs are not
// stored.
func WithStoreSlug(ctx context.Context, slug string) context.Context {
	if slug == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, slug)
}

// StoreSlug returns the slug bound to ctx, or "" when the request is
// unscoped.
func StoreSlug(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
