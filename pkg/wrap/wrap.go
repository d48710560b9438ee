// Package wrap implements the link wrapping service client: it turns a raw
// source URL into a monetized redirect for a configured account.
package wrap

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"cinepipe/pkg/config"
	errs "cinepipe/pkg/errors"
	"cinepipe/pkg/logger"
	"cinepipe/pkg/ratelimit"
)

// Client builds monetized redirect links and verifies them against the
// wrapping service. Verification is the remote call that can fail; the
// caller treats failures per the pipeline error taxonomy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a wrapping client from configuration
func NewClient(cfg config.WrapConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		accountID:  cfg.AccountID,
		limiter:    ratelimit.NewIntervalLimiter(delay),
		logger:     log,
	}
}

// Wrap returns the monetized redirect URL for sourceURL. itemID keys the
// redirect slot, so wrapping the same row twice yields the same URL. The
// built link is verified with a remote probe before being returned.
func (c *Client) Wrap(ctx context.Context, sourceURL, itemID string) (string, error) {
	if sourceURL == "" {
		return "", errs.New(errs.ErrorTypeWrapPermanent, "empty source URL", 0)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	wrapped := c.buildLink(sourceURL, itemID)

	if err := c.verify(ctx, wrapped); err != nil {
		return "", err
	}

	c.logger.DebugWithFields("link wrapped", map[string]interface{}{
		"item_id": itemID,
	})
	return wrapped, nil
}

// buildLink constructs the dynamic redirect URL. The slot number is derived
// from itemID so it is stable across runs.
func (c *Client) buildLink(sourceURL, itemID string) string {
	h := fnv.New32a()
	h.Write([]byte(itemID))
	slot := 100000 + h.Sum32()%900000

	encoded := base64.URLEncoding.EncodeToString([]byte(sourceURL))
	return fmt.Sprintf("%s/%s/%d/dynamic?r=%s", c.baseURL, c.accountID, slot, encoded)
}

// verify probes the wrapped link so dead redirects never land in the catalog
func (c *Client) verify(ctx context.Context, wrapped string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, wrapped, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeWrapPermanent, fmt.Sprintf("failed to build request: %v", err), 0)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.New(errs.ErrorTypeWrapTransient, fmt.Sprintf("network error: %v", err), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errs.New(errs.TypeForStatusCode(resp.StatusCode),
			fmt.Sprintf("wrapping service returned %d", resp.StatusCode), resp.StatusCode)
	}

	return nil
}
