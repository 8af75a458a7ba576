// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Configuration constants for the chat completions API.
const (
	// DefaultBaseURL is DashScope's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "qwen-plus"

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "revise/0.1.0"

	// MaxErrorBodySize bounds how much of a failed response is read.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxErrorBodySize = 64 * 1024
)

// sharedStreamingClient is used for streaming requests (no timeout, context-controlled).
// PERFORMANCE: Connection pooling for streaming requests.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	// No timeout for streaming - controlled via context
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage represents a single message in the outbound history.
type ChatMessage struct {
	Role    string `json:"role"`    // "user", "assistant", or "system"
	Content string `json:"content"` // The message content
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client streams chat completions from an OpenAI-compatible endpoint.
// A Client is safe to share; Send holds no per-request state on it.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	userAgent  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client with the given API key.
//
// If the API key is empty the client is still created, but Send fails with
// ErrNotConfigured before touching the network.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		userAgent:  DefaultUserAgent,
		httpClient: sharedStreamingClient,
		logger:     zerolog.Nop(),
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	if url = strings.TrimSpace(url); url != "" {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
	return c
}

// WithModel sets the model name sent with each request.
func (c *Client) WithModel(model string) *Client {
	if model = strings.TrimSpace(model); model != "" {
		c.model = model
	}
	return c
}

// WithHTTPClient replaces the HTTP client. It must not set a Timeout that
// would cut long streams short; use the request context instead.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithLogger sets the logger used for request and stream diagnostics.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger.With().Str("component", "cloud").Logger()
	return c
}

// WithUserAgent overrides the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// APIKeyMasked returns a masked version of the API key for display.
// SECURITY: Never exposes API key fragments - use fingerprint instead.
func (c *Client) APIKeyMasked() string {
	return MaskKey(c.apiKey)
}

// KeyFingerprint returns a short SHA-256 fingerprint of the API key.
func (c *Client) KeyFingerprint() string {
	return keyFingerprint(c.apiKey)
}

// MaskKey renders a key for display without revealing any of it.
func MaskKey(key string) string {
	if key == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(key), keyFingerprint(key))
}

func keyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

// setHeaders sets the required headers for API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", c.userAgent)
}

// =============================================================================
// STREAMING REQUEST
// =============================================================================

// Send posts the history with streaming enabled and calls onDelta with every
// non-empty text fragment, in arrival order, until the stream ends.
//
// Errors:
//   - ErrNotConfigured when no API key is set (no request is made)
//   - *TransportError when the connection fails or the body cannot be read
//   - *ServiceError when the server answers with a non-2xx status
//
// Malformed event lines are logged and skipped. Send returns nil when the
// body is read to EOF.
func (c *Client) Send(ctx context.Context, messages []ChatMessage, onDelta func(string)) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if onDelta == nil {
		onDelta = func(string) {}
	}

	bodyBytes, err := json.Marshal(ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug().
		Str("url", url).
		Str("model", c.model).
		Int("messages", len(messages)).
		Str("key", c.KeyFingerprint()).
		Msg("sending chat request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	// SECURITY: Clear Authorization header immediately after request to prevent logging
	req.Header.Del("Authorization")

	if err != nil {
		c.logger.Warn().Err(err).Msg("chat request failed")
		return &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("chat response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// SECURITY: Limit error body size to prevent memory exhaustion
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		se := newServiceError(resp.StatusCode, body)
		c.logger.Warn().Int("status", se.Status).Str("code", se.Code).Str("message", se.Message).Msg("service error")
		return se
	}

	return c.processStream(ctx, resp.Body, onDelta)
}
