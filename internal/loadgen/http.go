package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/modelrank/internal/adapters/identity"
	"github.com/okian/modelrank/pkg/logger"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status int
	Code   string `json:"code"`
	Msg    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Msg)
}

// Client calls the modelrank API, minting one bearer token per identity.
type Client struct {
	baseURL   string
	http      *http.Client
	authority *identity.Authority

	mu     sync.Mutex
	tokens map[string]string
}

// NewClient creates a client that signs tokens with secret.
func NewClient(baseURL, secret string, timeout time.Duration) (*Client, error) {
	a, err := identity.NewAuthority(secret)
	if err != nil {
		return nil, fmt.Errorf("token authority: %w", err)
	}
	return &Client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: timeout},
		authority: a,
		tokens:    make(map[string]string),
	}, nil
}

func (c *Client) token(who string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tokens[who]; ok {
		return t, nil
	}
	t, err := c.authority.Issue(who)
	if err != nil {
		return "", err
	}
	c.tokens[who] = t
	return t, nil
}

// Get decodes the JSON response of GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// Post sends body as who with a fresh Idempotency-Key.
func (c *Client) Post(ctx context.Context, path, who string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, who, body, out)
}

func (c *Client) do(ctx context.Context, method, path, who string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		t, err := c.token(who)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+t)
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}
