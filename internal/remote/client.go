// Package remote is the optional HTTP parsing/analysis backend client. All
// calls go through the shared retry wrapper; a 429 is retried, and when
// retries exhaust the caller falls back to local heuristics.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/models"
	"github.com/brokerkit/fundmatch/pkg/utils"
)

// Client calls a remote analysis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   utils.RetryConfig
	logger     *zap.Logger
}

// NewClient creates a remote analysis client. An empty baseURL disables it.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, logger *zap.Logger) *Client {
	retryCfg := utils.DefaultRetryConfig()
	if maxRetries > 0 {
		retryCfg.MaxAttempts = maxRetries
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
		logger:     logger,
	}
}

// Enabled reports whether a backend is configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

// AnalyzeStatements sends statement text to the backend. The error from an
// exhausted retry budget is returned for logging; callers are expected to
// fall over to the local analyzer.
func (c *Client) AnalyzeStatements(ctx context.Context, statements []string) (*models.BankAnalysisResult, error) {
	payload, err := json.Marshal(map[string]any{"statements": statements})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result models.BankAnalysisResult
	err = utils.Retry(ctx, c.retryCfg, func(ctx context.Context) error {
		return c.post(ctx, "/v1/analyze", payload, &result)
	}, nil)
	if err != nil {
		c.logger.Warn("Remote analysis unavailable, falling back to local heuristics", zap.Error(err))
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are transient as far as the retry budget goes.
		return utils.Retryable(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return utils.Retryable(fmt.Errorf("backend returned %d", resp.StatusCode))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(body))
	}
}
