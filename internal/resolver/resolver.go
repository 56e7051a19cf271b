// Package resolver infers which store a tool call targets when the caller
// does not name one.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
	"github.com/shopmcp/storefront-mcp/internal/scope"
)

// ErrNoIndexedStores is returned when every resolution tier comes up empty.
var ErrNoIndexedStores = errors.New("no indexed stores available")

// Resolver applies the store resolution cascade. Probe failures are
// swallowed so a flaky tier never masks a later one.
type Resolver struct {
	catalog        *catalog.Client
	preferredStore string
	logger         zerolog.Logger
}

// New builds a Resolver. preferredStore is an optional operator override
// consulted after the request scope and before the query probes.
func New(c *catalog.Client, preferredStore string) *Resolver {
	return &Resolver{
		catalog:        c,
		preferredStore: strings.TrimSpace(preferredStore),
		logger:         log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the target store slug. Cascade, first non-empty wins:
// explicit argument, request-scoped slug, configured preferred store, tsquery
// probe on the hint, fuzzy probe on the hint, largest store, most recently
// indexed store. Exhausting every tier returns ErrNoIndexedStores.
func (r *Resolver) Resolve(ctx context.Context, slugArg, queryHint string) (string, error) {
	if slug := strings.TrimSpace(slugArg); slug != "" {
		return slug, nil
	}

	if slug := scope.StoreSlug(ctx); slug != "" {
		return slug, nil
	}

	if r.preferredStore != "" {
		ok, err := r.catalog.StoreExists(ctx, r.preferredStore)
		if err != nil {
			r.logger.Warn().Err(err).Str("slug", r.preferredStore).Msg("preferred store check failed")
		} else if ok {
			return r.preferredStore, nil
		}
	}

	if hint := strings.TrimSpace(queryHint); hint != "" {
		if slug, err := r.catalog.ProbeByQuery(ctx, hint); err != nil {
			r.logger.Warn().Err(err).Msg("tsquery store probe failed")
		} else if slug != "" {
			return slug, nil
		}

		if slug, err := r.catalog.ProbeFuzzy(ctx, hint); err != nil {
			r.logger.Warn().Err(err).Msg("fuzzy store probe failed")
		} else if slug != "" {
			return slug, nil
		}
	}

	if slug, err := r.catalog.LargestStore(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("largest store probe failed")
	} else if slug != "" {
		return slug, nil
	}

	if slug, err := r.catalog.LatestIndexedStore(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("latest indexed store probe failed")
	} else if slug != "" {
		return slug, nil
	}

	return "", ErrNoIndexedStores
}
