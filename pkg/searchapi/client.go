package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/pkg/movie"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const logModule = "SearchAPI"

var tracer = otel.Tracer("moviesearch-client/searchapi")

// Client talks to the retrieval service over plain HTTP.
type Client struct {
	BaseURL string
	// HTTP is used for single-shot calls and carries the request timeout.
	HTTP *http.Client
	// Streaming has no timeout: a stream lives as long as its session.
	Streaming *http.Client
	logger    logger.ILogger
}

func NewClient(baseURL string, timeout time.Duration, log logger.ILogger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		HTTP:      &http.Client{Timeout: timeout},
		Streaming: &http.Client{},
		logger:    log,
	}
}

// SearchURL is the full /search URL for req.
func (c *Client) SearchURL(req Request) string {
	return c.BaseURL + "/search?" + req.Values().Encode()
}

// Search performs a single-shot search.
func (c *Client) Search(ctx context.Context, req Request) (*movie.SearchResponse, error) {
	ctx, span := tracer.Start(ctx, "searchapi.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.query", req.Query),
		attribute.Int("search.k", req.K),
		attribute.Bool("search.ai_overview", req.AIOverview),
	)

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	var out movie.SearchResponse
	if err := c.getJSON(ctx, c.HTTP, c.SearchURL(req), &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error(logModule, "Search failed", map[string]interface{}{"query": req.Query, "error": err.Error()})
		return nil, err
	}

	span.SetAttributes(attribute.Int("search.count", out.Count))
	c.logger.Info(logModule, "Search completed", map[string]interface{}{
		"query":       req.Query,
		"count":       out.Count,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return &out, nil
}

// Health checks that the API process is up.
func (c *Client) Health(ctx context.Context) (*movie.HealthResponse, error) {
	var out movie.HealthResponse
	if err := c.getJSON(ctx, c.HTTP, c.BaseURL+"/health", &out); err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return &out, nil
}

// Ready checks that the retrieval models are loaded.
func (c *Client) Ready(ctx context.Context) (*movie.ReadyResponse, error) {
	var out movie.ReadyResponse
	if err := c.getJSON(ctx, c.HTTP, c.BaseURL+"/ready", &out); err != nil {
		return nil, fmt.Errorf("readiness check failed: %w", err)
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, hc *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewError(KindInvalidRequest, "create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return NewError(KindTransport, "search service unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(KindTransport, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Kind:   KindHTTPStatus,
			Reason: fmt.Sprintf("search failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("body: %s", truncate(string(body), 200)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewError(KindMalformedResults, "malformed search response", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
