// Package handlers exposes the tool dispatcher and service descriptor over
// HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shopmcp/storefront-mcp/internal/scope"
	"github.com/shopmcp/storefront-mcp/internal/tools"
)

// ToolAPI serves the tool invocation endpoints:
// POST /mcp/tool/{tool} and POST /mcp/{slug}/tool/{tool}, plus the same
// shapes under /mcp-legacy.
type ToolAPI struct {
	registry *tools.Registry
	logger   zerolog.Logger
}

// NewToolAPI builds the handler over a registry.
func NewToolAPI(registry *tools.Registry) *ToolAPI {
	return &ToolAPI{
		registry: registry,
		logger:   log.With().Str("component", "http").Logger(),
	}
}

// RegisterRoutes mounts the invocation endpoints. Both path shapes live
// under one wildcard because the slug segment and the literal "tool" segment
// occupy the same position.
func (h *ToolAPI) RegisterRoutes(r *gin.Engine) {
	r.POST("/mcp/*path", h.Invoke)
	r.POST("/mcp-legacy/*path", h.Invoke)
}

// Invoke decodes the call, installs the path slug as request scope, and
// dispatches. Tool-level failures ride inside the 200 response; only
// transport-shape problems surface as HTTP errors.
func (h *ToolAPI) Invoke(c *gin.Context) {
	slug, tool, ok := splitToolPath(c.Param("path"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	args, ok := decodeArguments(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if slug != "" {
		ctx = scope.WithStoreSlug(ctx, slug)
		if _, present := args["slug"]; !present {
			args["slug"] = slug
		}
	}

	result, err := h.registry.Dispatch(ctx, tool, args)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, tools.ErrUnknownTool):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case isBadArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).Str("tool", tool).Msg("tool invocation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// splitToolPath parses the wildcard remainder: "tool/{name}" (unscoped) or
// "{slug}/tool/{name}" (scoped).
func splitToolPath(path string) (slug, tool string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "tool" && parts[1] != "":
		return "", parts[1], true
	case len(parts) == 3 && parts[1] == "tool" && parts[0] != "" && parts[2] != "":
		return parts[0], parts[2], true
	}
	return "", "", false
}

// decodeArguments reads the JSON body: an "arguments" object when present,
// the whole body otherwise. An empty body means no arguments. Writes the 400
// itself and returns false on shape errors.
func decodeArguments(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		if c.Request.ContentLength == 0 {
			return map[string]any{}, true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return nil, false
	}
	if body == nil {
		return map[string]any{}, true
	}

	if raw, present := body["arguments"]; present {
		if args, ok := raw.(map[string]any); ok {
			return args, true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "arguments must be a JSON object"})
		return nil, false
	}
	return body, true
}

func isBadArgument(err error) bool {
	var bad *tools.BadArgumentError
	return errors.As(err, &bad)
}
