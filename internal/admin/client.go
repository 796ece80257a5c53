package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"affimporter/internal/logger"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	headerUserID = "X-User-ID"
	headerNonce  = "X-WP-Nonce"
)

// APIError is a non-2xx answer from the service. Message holds the
// server's explanation when it sent one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API request failed: %d", e.StatusCode)
}

// Client implements API over the service's REST surface, acting as one
// user. It fetches a nonce on first use and again after the service
// rejects it.
type Client struct {
	baseURL    string
	userID     uint
	httpClient *retryablehttp.Client
	logger     *logger.Logger

	mu    sync.Mutex
	nonce string
}

var _ API = (*Client)(nil)

func NewClient(baseURL string, userID uint, logger *logger.Logger) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient.Timeout = 30 * time.Second
	httpClient.RetryMax = 2
	httpClient.RetryWaitMin = 200 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient.Logger = logger.KeyValue()

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		userID:     userID,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) FetchAmazonSettings(ctx context.Context) (AmazonCredentials, error) {
	var creds AmazonCredentials
	err := c.call(ctx, http.MethodGet, "/settings/amazon", nil, &creds)
	return creds, err
}

func (c *Client) SaveAmazonSettings(ctx context.Context, creds AmazonCredentials) error {
	return c.call(ctx, http.MethodPost, "/settings/amazon", creds, nil)
}

func (c *Client) VerifyAmazonSettings(ctx context.Context, creds AmazonCredentials) error {
	return c.call(ctx, http.MethodPost, "/settings/amazon/verify", creds, nil)
}

func (c *Client) call(ctx context.Context, method, path string, payload, out interface{}) error {
	nonce, err := c.currentNonce(ctx)
	if err != nil {
		return err
	}

	err = c.do(ctx, method, path, nonce, payload, out)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusForbidden {
		c.mu.Lock()
		c.nonce = ""
		c.mu.Unlock()
	}
	return err
}

func (c *Client) currentNonce(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nonce != "" {
		return c.nonce, nil
	}

	var resp struct {
		Nonce string `json:"nonce"`
	}
	if err := c.do(ctx, http.MethodGet, "/nonce", "", nil, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}
	c.nonce = resp.Nonce
	return c.nonce, nil
}

func (c *Client) do(ctx context.Context, method, path, nonce string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerUserID, strconv.FormatUint(uint64(c.userID), 10))
	if nonce != "" {
		req.Header.Set(headerNonce, nonce)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("%s %s failed: %d - %s", method, path, resp.StatusCode, string(data))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage pulls a human readable message out of an error body. The
// service answers with {"message"}, {"error"} or a bare JSON string.
func errorMessage(data []byte) string {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return text
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
