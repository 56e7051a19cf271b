// Package tools maps tool names to their implementations and owns argument
// decoding, result normalization, and the tool-level error contract: failures
// travel as code-bearing JSON values, never as transport errors.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shopmcp/storefront-mcp/internal/basket"
	"github.com/shopmcp/storefront-mcp/internal/catalog"
	"github.com/shopmcp/storefront-mcp/internal/payload"
	"github.com/shopmcp/storefront-mcp/internal/resolver"
	"github.com/shopmcp/storefront-mcp/internal/search"
	"github.com/shopmcp/storefront-mcp/internal/telemetry"
)

// ErrUnknownTool maps to HTTP 404 at the transport.
var ErrUnknownTool = errors.New("unknown tool")

// BadArgumentError maps to HTTP 400 at the transport.
type BadArgumentError struct {
	Message string
}

func (e *BadArgumentError) Error() string {
	return e.Message
}

func badArgument(format string, args ...any) error {
	return &BadArgumentError{Message: fmt.Sprintf(format, args...)}
}

// Handler executes one tool call.
type Handler func(ctx context.Context, args Args) (any, error)

// Definition describes a tool for the descriptor endpoints.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`

	// extraArrayKeys extends the normalizer's array-key hints for this
	// tool's responses.
	extraArrayKeys []string
}

type registration struct {
	def Definition
	fn  Handler
}

// Registry is the tool dispatcher.
type Registry struct {
	search   *search.Engine
	baskets  *basket.Manager
	catalog  *catalog.Client
	resolver *resolver.Resolver
	entries  map[string]registration
	logger   zerolog.Logger
}

// NewRegistry wires every tool over the given components.
func NewRegistry(engine *search.Engine, baskets *basket.Manager, cat *catalog.Client, res *resolver.Resolver) *Registry {
	r := &Registry{
		search:   engine,
		baskets:  baskets,
		catalog:  cat,
		resolver: res,
		entries:  map[string]registration{},
		logger:   log.With().Str("component", "tools").Logger(),
	}
	r.registerSearchTools()
	r.registerCatalogTools()
	r.registerBasketTools()
	return r
}

func (r *Registry) register(def Definition, fn Handler) {
	r.entries[def.Name] = registration{def: def, fn: fn}
}

// Definitions lists every registered tool, sorted by name.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch runs a tool by name. The result is always a normalized JSON map;
// non-map tool results are wrapped as {"results": value}. Unknown tools
// return ErrUnknownTool, argument-shape mismatches a *BadArgumentError.
func (r *Registry) Dispatch(ctx context.Context, name string, rawArgs map[string]any) (map[string]any, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	result, err := entry.fn(ctx, Args(rawArgs))
	duration := time.Since(start)

	switch {
	case err == nil:
		telemetry.RecordToolInvocation(name, "ok", duration)
	case errors.Is(err, resolver.ErrNoIndexedStores):
		telemetry.RecordToolInvocation(name, "tool_error", duration)
		result, err = map[string]any{"error": "no stores have been indexed yet"}, nil
	case isBadArgument(err):
		telemetry.RecordToolInvocation(name, "bad_request", duration)
		return nil, err
	default:
		telemetry.RecordToolInvocation(name, "error", duration)
		r.logger.Error().Err(err).Str("tool", name).Msg("tool invocation failed")
		return nil, err
	}

	wrapped, ok := result.(map[string]any)
	if !ok {
		wrapped = map[string]any{"results": result}
	}

	normalized, ok := payload.Format(wrapped, entry.def.extraArrayKeys...).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("normalizing %s response", name)
	}
	return normalized, nil
}

func isBadArgument(err error) bool {
	var bad *BadArgumentError
	return errors.As(err, &bad)
}

// failureValue is the wire shape of a tool-level error.
func failureValue(code, message string) map[string]any {
	return map[string]any{"error": message, "code": code}
}
