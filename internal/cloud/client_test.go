// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseServer returns a server that writes each chunk verbatim and flushes
// after every write, so the client sees the body split at chunk boundaries.
func sseServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = io.WriteString(w, c)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func collect(t *testing.T, client *Client, msgs []ChatMessage) ([]string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var deltas []string
	err := client.Send(ctx, msgs, func(d string) {
		deltas = append(deltas, d)
	})
	return deltas, err
}

// =============================================================================
// CONSTRUCTION TESTS
// =============================================================================

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("  sk-test  ")

	assert.True(t, client.IsConfigured())
	assert.Equal(t, DefaultBaseURL, client.BaseURL())
	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, "sk-test", client.apiKey, "key is trimmed")
}

func TestClientMethodChaining(t *testing.T) {
	client := NewClient("k").
		WithBaseURL("https://example.test/v1/").
		WithModel("qwen-max").
		WithUserAgent("revise-test").
		WithLogger(zerolog.Nop()).
		WithHTTPClient(http.DefaultClient)

	assert.Equal(t, "https://example.test/v1", client.BaseURL())
	assert.Equal(t, "qwen-max", client.Model())
	assert.Equal(t, "revise-test", client.userAgent)
	assert.Same(t, http.DefaultClient, client.httpClient)

	// Empty values keep the previous setting.
	client.WithModel("").WithBaseURL("  ")
	assert.Equal(t, "qwen-max", client.Model())
	assert.Equal(t, "https://example.test/v1", client.BaseURL())
}

func TestAPIKeyMasked(t *testing.T) {
	assert.Equal(t, "[not set]", NewClient("").APIKeyMasked())

	key := "sk-abcdefghijklmnop"
	masked := NewClient(key).APIKeyMasked()
	assert.NotContains(t, masked, "abcdef")
	assert.Contains(t, masked, "length=19")
	assert.Len(t, NewClient(key).KeyFingerprint(), 8)
	assert.Equal(t, "none", NewClient("").KeyFingerprint())
}

func TestChatMessageHelpers(t *testing.T) {
	assert.Equal(t, ChatMessage{Role: "user", Content: "a"}, NewUserMessage("a"))
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "b"}, NewAssistantMessage("b"))
	assert.Equal(t, ChatMessage{Role: "system", Content: "c"}, NewSystemMessage("c"))
}

// =============================================================================
// REQUEST TESTS
// =============================================================================

func TestSend_RequestShape(t *testing.T) {
	var (
		gotPath   string
		gotAuth   string
		gotAccept string
		gotBody   ChatRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = io.WriteString(w, "data: [DONE]\n")
	}))
	defer server.Close()

	client := NewClient("sk-test").WithBaseURL(server.URL + "/v1").WithModel("qwen-plus")
	msgs := []ChatMessage{NewSystemMessage("persona"), NewUserMessage("Hi")}

	deltas, err := collect(t, client, msgs)
	require.NoError(t, err)
	assert.Empty(t, deltas)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "text/event-stream", gotAccept)
	assert.Equal(t, "qwen-plus", gotBody.Model)
	assert.True(t, gotBody.Stream)
	assert.Equal(t, msgs, gotBody.Messages)
}

func TestSend_NotConfiguredMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewClient("   ").WithBaseURL(server.URL)
	called := false
	err := client.Send(context.Background(), []ChatMessage{NewUserMessage("Hi")}, func(string) { called = true })

	require.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, called)
	assert.Equal(t, int32(0), hits.Load())
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestSend_HelloExample(t *testing.T) {
	server := sseServer(t,
		`data: {"choices":[{"delta":{"content":"He"}}]}`+"\n",
		`data: {"choices":[{"delta":{"content":"llo"}}]}`+"\n",
		"data: [DONE]\n",
	)

	deltas, err := collect(t, NewClient("k").WithBaseURL(server.URL), []ChatMessage{NewUserMessage("Hi")})
	require.NoError(t, err)
	assert.Equal(t, []string{"He", "llo"}, deltas)
}

func TestSend_SplitAcrossWrites(t *testing.T) {
	server := sseServer(t,
		`data: {"choices":[{"delta":{"con`,
		`tent":"复习"}}]}`+"\n\n"+`data: {"choices":[{"delta":{"content":"计划"}}]}`,
		"\n",
		"data: [DONE]\n",
	)

	deltas, err := collect(t, NewClient("k").WithBaseURL(server.URL), nil)
	require.NoError(t, err)
	assert.Equal(t, "复习计划", strings.Join(deltas, ""))
}

func TestSend_MalformedLineSkipped(t *testing.T) {
	var logBuf bytes.Buffer
	server := sseServer(t,
		`data: {"choices":[{"delta":{"content":"A"}}]}`+"\n",
		"data: {not json\n",
		`data: {"choices":[{"delta":{"content":"B"}}]}`+"\n",
	)

	client := NewClient("k").WithBaseURL(server.URL).WithLogger(zerolog.New(&logBuf))
	deltas, err := collect(t, client, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, deltas)
	assert.Contains(t, logBuf.String(), "skipping stream line")
	assert.Contains(t, logBuf.String(), `"level":"warn"`)
}

func TestSend_PartialLineAtEOFDiscarded(t *testing.T) {
	server := sseServer(t,
		`data: {"choices":[{"delta":{"content":"kept"}}]}`+"\n",
		`data: {"choices":[{"delta":{"content":"lost"}}]}`,
	)

	deltas, err := collect(t, NewClient("k").WithBaseURL(server.URL), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, deltas)
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestSend_ServiceErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantIs      error
	}{
		{
			name:        "nested error message",
			status:      http.StatusUnauthorized,
			body:        `{"error":{"message":"invalid key","code":"invalid_api_key"}}`,
			wantMessage: "invalid key",
			wantIs:      ErrAuthFailed,
		},
		{
			name:        "flat message",
			status:      http.StatusBadRequest,
			body:        `{"code":"InvalidParameter","message":"model not found"}`,
			wantMessage: "model not found",
		},
		{
			name:        "rate limited",
			status:      http.StatusTooManyRequests,
			body:        `{"error":{"message":"slow down","code":429}}`,
			wantMessage: "slow down",
			wantIs:      ErrRateLimited,
		},
		{
			name:        "unparseable body",
			status:      http.StatusBadGateway,
			body:        "<html>bad gateway</html>",
			wantMessage: "Status 502",
		},
		{
			name:        "empty body",
			status:      http.StatusInternalServerError,
			wantMessage: "Status 500",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer server.Close()

			called := false
			err := NewClient("k").WithBaseURL(server.URL).
				Send(context.Background(), nil, func(string) { called = true })

			var se *ServiceError
			require.True(t, errors.As(err, &se), "got %T: %v", err, err)
			assert.Equal(t, tc.status, se.Status)
			assert.Equal(t, tc.wantMessage, se.Message)
			assert.Equal(t, "API Error: "+tc.wantMessage, err.Error())
			assert.False(t, called)
			if tc.wantIs != nil {
				assert.ErrorIs(t, err, tc.wantIs)
			}
		})
	}
}

func TestSend_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewClient("k").WithBaseURL(url).Send(context.Background(), nil, nil)

	var te *TransportError
	require.True(t, errors.As(err, &te), "got %T: %v", err, err)
	assert.Equal(t, "request", te.Op)
	assert.Contains(t, err.Error(), "network error")
}

func TestSend_ContextCancelledMidStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{"content":"part"}}]}`+"\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	err := NewClient("k").WithBaseURL(server.URL).Send(ctx, nil, func(d string) {
		got = append(got, d)
		cancel()
	})

	var te *TransportError
	require.True(t, errors.As(err, &te), "got %T: %v", err, err)
	assert.Equal(t, "read", te.Op)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"part"}, got)
}
