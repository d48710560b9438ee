package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cinepipe/pkg/config"
	errs "cinepipe/pkg/errors"
	"cinepipe/pkg/logger"
	"cinepipe/pkg/ratelimit"
	"cinepipe/pkg/retry"
)

const (
	// BaseURL is the TMDB API v3 base URL
	BaseURL = "https://api.themoviedb.org/3"
	// ImageBaseURL prefixes poster paths
	ImageBaseURL = "https://image.tmdb.org/t/p/w185"
	// EmbedBaseURL hosts the player embeds the wrap targets point at
	EmbedBaseURL = "https://www.vidking.net"

	// TMDB caps paged listings at 500 pages
	maxPageCap = 500
)

// Client fetches catalog listings from the TMDB API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	params     url.Values
	baseURL    string
	limiter    ratelimit.Limiter
	retrier    *retry.HTTPRetrier
	cfg        config.TMDBConfig
	logger     logger.Logger
}

// NewClient creates a TMDB client. The v4 read token (bearer auth) is
// preferred; the v3 api_key query parameter is the fallback.
func NewClient(cfg config.TMDBConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	headers := map[string]string{
		"Accept": "application/json",
	}
	params := url.Values{}

	if cfg.ReadToken != "" {
		headers["Authorization"] = "Bearer " + cfg.ReadToken
		log.Debug("using TMDB bearer token authentication")
	} else if cfg.APIKey != "" {
		params.Set("api_key", cfg.APIKey)
		log.Debug("using TMDB api key authentication")
	}

	if cfg.Language != "" {
		params.Set("language", cfg.Language)
	}

	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    headers,
		params:     params,
		baseURL:    BaseURL,
		limiter:    ratelimit.NewIntervalLimiter(delay),
		retrier:    retry.NewHTTPRetrier(3, retry.DefaultExponentialBackoff(), log),
		cfg:        cfg,
		logger:     log,
	}
}

// SetBaseURL overrides the API base URL. Used in tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// get performs a rate-limited GET with a bounded retry on transient failures.
// A 429 moves the remaining retries onto the rate limit backoff curve.
func (c *Client) get(ctx context.Context, endpoint string, extra url.Values, target interface{}) error {
	return c.retrier.DoWithErrorType(ctx, func() error {
		return c.getOnce(ctx, endpoint, extra, target)
	})
}

func (c *Client) getOnce(ctx context.Context, endpoint string, extra url.Values, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params := url.Values{}
	for key, values := range c.params {
		params[key] = values
	}
	for key, values := range extra {
		params[key] = values
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeFetch, fmt.Sprintf("failed to build request: %v", err), 0)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("TMDB request failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return errs.New(errs.ErrorTypeFetch, fmt.Sprintf("network error: %v", err), 0)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("TMDB request completed", map[string]interface{}{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		errorType := errs.ErrorTypeFetch
		if resp.StatusCode == http.StatusTooManyRequests {
			errorType = errs.ErrorTypeRateLimit
		}
		return errs.New(errorType,
			fmt.Sprintf("TMDB returned %d for %s: %s", resp.StatusCode, endpoint, string(body)),
			resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errs.New(errs.ErrorTypeParsing, fmt.Sprintf("failed to decode response: %v", err), 0)
	}

	return nil
}
