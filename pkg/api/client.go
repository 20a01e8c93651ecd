package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harun/ticketdesk/internal/observability"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the ticket backend the client talks to unless configured otherwise
const DefaultBaseURL = "https://system-gestion-ticket-backend.onrender.com/api/v1"

// TokenSource supplies the bearer token attached to every request.
// An empty token sends the request unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

// Token implements TokenSource
func (f TokenFunc) Token() string {
	return f()
}

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Config holds client configuration
type Config struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	Timeout    time.Duration

	// OnUnauthorized runs after any 401 response, before the error is
	// returned. The application uses it to clear the session.
	OnUnauthorized func()

	Logger zerolog.Logger
}

// Client is a JSON client for the ticket backend REST API
type Client struct {
	baseURL        string
	tokens         TokenSource
	httpClient     *http.Client
	onUnauthorized func()
	logger         zerolog.Logger
}

// NewClient creates a new API client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		tokens:         tokens,
		httpClient:     httpClient,
		onUnauthorized: cfg.OnUnauthorized,
		logger:         cfg.Logger.With().Str("component", "api").Logger(),
	}
}

// SetUnauthorizedHandler replaces the 401 hook. It must be called before
// the client is shared between goroutines.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// do sends a request and decodes the (possibly enveloped) response into out.
// out may be nil when the response body is not needed.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordAPIRequest(method, routeLabel(path), "error", time.Since(start))
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	observability.RecordAPIRequest(method, routeLabel(path), strconv.Itoa(resp.StatusCode), time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request complete")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.logger.Warn().Str("path", path).Msg("Unauthorized response, clearing session")
			c.onUnauthorized()
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return decodeEnvelope(data, out)
}

// decodeEnvelope accepts both {"data": ...} resource wrapping and bare bodies
func decodeEnvelope(data []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			inner := bytes.TrimSpace(envelope.Data)
			if len(inner) > 0 && !bytes.Equal(inner, []byte("null")) {
				if err := json.Unmarshal(inner, out); err != nil {
					return fmt.Errorf("failed to decode response: %w", err)
				}
				return nil
			}
		}
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts a human readable message from an error body
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// routeLabel collapses numeric path segments so metrics stay low-cardinality
func routeLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
