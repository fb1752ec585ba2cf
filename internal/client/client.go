package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amaumene/towatch/internal/auth"
	"github.com/amaumene/towatch/internal/models"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const itemsPath = "/to-watch-items"

// ErrUnauthenticated is returned when the server rejects the session
var ErrUnauthenticated = errors.New("unauthenticated")

// StatusError is a non-2xx response from the server
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps a 401 to ErrUnauthenticated
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	return nil
}

// Client talks to the to-watch list endpoint of a running server
type Client struct {
	baseURL      string
	sessionToken string
	httpClient   *http.Client
	logger       *logrus.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSessionToken sends token as the session cookie on every request
func WithSessionToken(token string) Option {
	return func(c *Client) {
		c.sessionToken = token
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches the caller's items
func (c *Client) List(ctx context.Context) ([]models.ToWatchItem, error) {
	var resp struct {
		Items []models.ToWatchItem `json:"items"`
	}
	if err := c.doRequest(ctx, http.MethodGet, itemsPath, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		resp.Items = []models.ToWatchItem{}
	}
	return resp.Items, nil
}

// Add saves an item
func (c *Client) Add(ctx context.Context, item models.ToWatchItem) error {
	return c.doRequest(ctx, http.MethodPost, itemsPath, models.NewToWatchPayload(item), nil)
}

// Remove deletes an item by media id
func (c *Client) Remove(ctx context.Context, mediaID string) error {
	return c.doRequest(ctx, http.MethodDelete, itemsPath, map[string]string{"mediaId": mediaID}, nil)
}

// doRequest performs an HTTP request against the server
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	fullURL := c.baseURL + path
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    fullURL,
	}).Debug("Making to-watch API request")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: c.sessionToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(bodyBytes)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
