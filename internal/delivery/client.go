package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
	"github.com/noah-isme/interview-rescheduler/pkg/middleware/requestid"
)

// Client posts aggregated interviews to the backend ingestion endpoint.
type Client struct {
	URL    string
	HTTP   *http.Client
	logger *zap.Logger
}

// New creates a client whose requests time out after timeout.
func New(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		URL:    url,
		HTTP:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Send issues exactly one POST. Transport errors and non-2xx responses are
// logged and returned; nothing is retried. A request id on ctx is forwarded.
func (c *Client) Send(ctx context.Context, payload dto.DeliveryPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.logger.Sugar().Errorw("delivery request failed", "url", c.URL, "error", err)
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Sugar().Errorw("backend rejected delivery", "url", c.URL, "status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("backend error %s: %s", resp.Status, string(respBody))
	}

	c.logger.Sugar().Infow("delivery accepted", "status", resp.StatusCode, "students", len(payload))
	return nil
}
