package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopmcp/storefront-mcp/internal/database"
	"github.com/shopmcp/storefront-mcp/internal/tools"
)

const serviceName = "storefront-mcp"

// Descriptor serves the service discovery endpoints that MCP clients probe
// before opening a session, plus health and the OAuth stubs that tell
// clients no authorization is required.
type Descriptor struct {
	registry        *tools.Registry
	embedderEnabled bool
	v2Enabled       bool
}

// NewDescriptor builds the discovery handler.
func NewDescriptor(registry *tools.Registry, embedderEnabled, v2Enabled bool) *Descriptor {
	return &Descriptor{
		registry:        registry,
		embedderEnabled: embedderEnabled,
		v2Enabled:       v2Enabled,
	}
}

// RegisterRoutes mounts discovery, health, and the auth stubs.
func (h *Descriptor) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Describe)
	r.GET("/mcp", h.Describe)
	r.GET("/mcp/*path", h.describeOrList)
	r.GET("/mcp-legacy", h.Describe)
	r.GET("/mcp-legacy/*path", h.describeOrList)
	r.GET("/sse", h.RedirectSSE)
	r.GET("/health", h.Health)
	r.GET("/.well-known/oauth-authorization-server", h.OAuthStub)
	r.GET("/.well-known/oauth-protected-resource", h.OAuthStub)
	r.POST("/register", h.RegisterStub)
}

// Describe returns the transport descriptor.
func (h *Descriptor) Describe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"service":   serviceName,
		"transport": "http",
		"sse_url":   "/mcp/sse",
		"tools_url": "/mcp/tools",
		"auth":      "none",
	})
}

// describeOrList fans the GET wildcard out to the descriptor, the tool
// listing, or 404. The wildcard exists because POST shares the /mcp prefix.
func (h *Descriptor) describeOrList(c *gin.Context) {
	switch c.Param("path") {
	case "/", "/sse":
		h.Describe(c)
	case "/tools":
		h.ListTools(c)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	}
}

// ListTools returns the registered tool definitions with their schemas.
func (h *Descriptor) ListTools(c *gin.Context) {
	defs := h.registry.Definitions()
	out := make([]gin.H, 0, len(defs))
	for _, d := range defs {
		out = append(out, gin.H{
			"name":         d.Name,
			"description":  d.Description,
			"input_schema": d.InputSchema,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out, "count": len(out)})
}

// RedirectSSE sends legacy clients that hit /sse to the canonical path.
func (h *Descriptor) RedirectSSE(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, "/mcp/sse")
}

// Health reports process and database readiness. Always 200; readiness
// lives in the body so load balancers and humans read the same shape.
func (h *Descriptor) Health(c *gin.Context) {
	resp := gin.H{
		"ok":               true,
		"service":          serviceName,
		"db_ready":         false,
		"embedder_enabled": h.embedderEnabled,
		"mcp_v2_enabled":   h.v2Enabled,
	}
	if err := database.Status(c.Request.Context()); err != nil {
		resp["db_error"] = err.Error()
	} else {
		resp["db_ready"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// OAuthStub advertises that no authorization server is in play. Some MCP
// clients probe the well-known endpoints unconditionally.
func (h *Descriptor) OAuthStub(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authorization_required": false,
		"service":                serviceName,
	})
}

// RegisterStub accepts dynamic client registration attempts and reports
// that none is needed.
func (h *Descriptor) RegisterStub(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"registration_required": false,
		"service":               serviceName,
	})
}
