// Package embed wraps the OpenAI embeddings API for query vectorization.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shopmcp/storefront-mcp/config"
	"github.com/shopmcp/storefront-mcp/internal/cache"
)

// Embedder produces query embeddings via the OpenAI REST API. A disabled
// embedder (no API key) is valid: Embed returns an error and callers fall
// back to lexical-only retrieval.
type Embedder struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	client     *http.Client
	queryCache *cache.TTL
	logger     zerolog.Logger
}

// New builds an Embedder from config. The query cache is sized per config
// (floors applied at load time).
func New(cfg config.EmbedderConfig) *Embedder {
	return &Embedder{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		queryCache: cache.NewTTL(cfg.CacheSize, time.Duration(cfg.CacheTTLSec)*time.Second),
		logger:     log.With().Str("component", "embedder").Logger(),
	}
}

// Enabled reports whether an API key is configured.
func (e *Embedder) Enabled() bool {
	return e != nil && e.apiKey != ""
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed returns the embedding vector for text, serving repeats from the
// query cache. Retries transient failures with exponential backoff.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("embedder disabled: no API key configured")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty embedding input")
	}

	cacheKey := strings.ToLower(text)
	if cached, ok := e.queryCache.Get(cacheKey); ok {
		if vec, ok := cached.([]float32); ok {
			return vec, nil
		}
	}

	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		vec, retryable, err := e.embedOnce(ctx, text)
		if err == nil {
			e.queryCache.Set(cacheKey, vec)
			return vec, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		e.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("embedding request failed, retrying")
	}

	return nil, fmt.Errorf("embedding request failed: %w", lastErr)
}

func (e *Embedder) embedOnce(ctx context.Context, text string) ([]float32, bool, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, false, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, fmt.Errorf("reading response: %w", err)
	}

	// 429 and 5xx are retryable, other non-200s are not.
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("embeddings API status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, false, fmt.Errorf("embeddings API error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, false, fmt.Errorf("embeddings API returned no vectors")
	}

	return parsed.Data[0].Embedding, false, nil
}

// VectorLiteral renders a vector as a pgvector text literal, e.g. [0.1,0.2].
func VectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", v)
	}
	b.WriteByte(']')
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
