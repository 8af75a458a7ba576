// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/revise-tui/internal/cloud"
	"github.com/jeranaias/revise-tui/internal/model"
	"github.com/jeranaias/revise-tui/internal/persona"
)

// fakeSender replays fragments and then returns err.
type fakeSender struct {
	fragments []string
	err       error
	calls     int
	got       []cloud.ChatMessage
	deadline  bool
}

func (f *fakeSender) Send(ctx context.Context, msgs []cloud.ChatMessage, onDelta func(string)) error {
	f.calls++
	f.got = msgs
	_, f.deadline = ctx.Deadline()
	for _, frag := range f.fragments {
		onDelta(frag)
	}
	return f.err
}

func testPersona() persona.Persona {
	return persona.Persona{
		Name:         "Tester",
		SystemPrompt: "You are a tutor.",
		Greeting:     "Hello student",
		Suggestions:  []string{"a", "b"},
	}
}

func contents(turns []*model.Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Content
	}
	return out
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestSubmit_HelloExample(t *testing.T) {
	sender := &fakeSender{fragments: []string{"He", "llo"}}
	c := New(sender, testPersona())

	var seen []string
	err := c.Submit(context.Background(), "Hi", func(d string) { seen = append(seen, d) })
	require.NoError(t, err)

	turns := c.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, model.RoleUser, turns[1].Role)
	assert.Equal(t, "Hi", turns[1].Content)
	assert.Equal(t, model.RoleAssistant, turns[2].Role)
	assert.Equal(t, "Hello", turns[2].Content)
	assert.Equal(t, []string{"He", "llo"}, seen)
	assert.False(t, c.Busy())
	assert.Empty(t, c.LastError())
}

func TestSubmit_PayloadStartsWithPersona(t *testing.T) {
	sender := &fakeSender{fragments: []string{"ok"}}
	c := New(sender, testPersona())

	require.NoError(t, c.Submit(context.Background(), "  What is entropy?  ", nil))

	require.Len(t, sender.got, 3)
	assert.Equal(t, cloud.NewSystemMessage("You are a tutor."), sender.got[0])
	assert.Equal(t, cloud.NewAssistantMessage("Hello student"), sender.got[1])
	assert.Equal(t, cloud.NewUserMessage("What is entropy?"), sender.got[2], "input is trimmed and placeholder excluded")
	assert.True(t, sender.deadline, "default timeout applies a deadline")
}

func TestSubmit_HistoryWindow(t *testing.T) {
	sender := &fakeSender{fragments: []string{"r"}}
	c := New(sender, testPersona(), WithHistoryWindow(2), WithTimeout(0))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Submit(context.Background(), fmt.Sprintf("q%d", i), nil))
	}

	require.Len(t, sender.got, 3)
	assert.Equal(t, "system", sender.got[0].Role)
	assert.Equal(t, cloud.NewAssistantMessage("r"), sender.got[1])
	assert.Equal(t, cloud.NewUserMessage("q2"), sender.got[2])
	assert.False(t, sender.deadline)
	assert.Equal(t, 7, len(c.Turns()), "visible conversation is not windowed")
}

func TestSubmit_EmptyInputIsNoOp(t *testing.T) {
	sender := &fakeSender{}
	c := New(sender, testPersona())

	for _, in := range []string{"", "   ", "\n\t"} {
		err := c.Submit(context.Background(), in, nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Equal(t, 0, sender.calls)
	assert.Equal(t, 1, len(c.Turns()))
	assert.False(t, c.Busy())
}

func TestBegin_BusyIsNoOp(t *testing.T) {
	c := New(&fakeSender{}, testPersona())

	p, err := c.Begin("first")
	require.NoError(t, err)
	require.True(t, c.Busy())
	before := contents(c.Turns())

	_, err = c.Begin("second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, before, contents(c.Turns()))

	assert.ErrorIs(t, c.Submit(context.Background(), "third", nil), ErrBusy)
	assert.ErrorIs(t, c.Reset(), ErrBusy)

	require.NoError(t, c.Finish(p.AssistantID, nil))
	assert.False(t, c.Busy())
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

func TestSubmit_FailureBeforeTextRemovesPlaceholder(t *testing.T) {
	boom := &cloud.TransportError{Op: "request", Err: errors.New("connection refused")}
	c := New(&fakeSender{err: boom}, testPersona())
	pre := len(c.Turns())

	err := c.Submit(context.Background(), "Hi", nil)
	require.ErrorIs(t, err, boom)

	turns := c.Turns()
	assert.Len(t, turns, pre+1)
	assert.Equal(t, "Hi", turns[len(turns)-1].Content)
	assert.False(t, c.Busy())
	assert.Contains(t, c.LastError(), "connection refused")
}

func TestSubmit_FailureAfterTextKeepsPartial(t *testing.T) {
	boom := &cloud.TransportError{Op: "read", Err: io.ErrUnexpectedEOF}
	c := New(&fakeSender{fragments: []string{"Par", "tial"}, err: boom}, testPersona())
	pre := len(c.Turns())

	require.Error(t, c.Submit(context.Background(), "Hi", nil))

	turns := c.Turns()
	require.Len(t, turns, pre+2)
	assert.Equal(t, "Partial", turns[len(turns)-1].Content)
	assert.NotEmpty(t, c.LastError())
}

func TestSubmit_InvalidKeyAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid key"}}`)
	}))
	defer server.Close()

	client := cloud.NewClient("bad-key").WithBaseURL(server.URL)
	c := New(client, testPersona())

	err := c.Submit(context.Background(), "Hi", nil)

	var se *cloud.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "API Error: invalid key", c.LastError())
	assert.Equal(t, []string{"Hello student", "Hi"}, contents(c.Turns()))
}

func TestSubmit_StreamsAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, s := range []string{"Spaced ", "repetition"} {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", s)
			w.(http.Flusher).Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := New(cloud.NewClient("k").WithBaseURL(server.URL), testPersona())
	require.NoError(t, c.Submit(context.Background(), "How do I memorize?", nil))

	last := c.Conversation().Last()
	assert.Equal(t, "Spaced repetition", last.Content)
}

func TestSubmit_NotConfigured(t *testing.T) {
	c := New(cloud.NewClient(""), testPersona())

	err := c.Submit(context.Background(), "Hi", nil)
	require.ErrorIs(t, err, cloud.ErrNotConfigured)
	assert.Contains(t, c.LastError(), "API key is missing")
	assert.Len(t, c.Turns(), 2)
}

func TestSubmit_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := New(cloud.NewClient("k").WithBaseURL(server.URL), testPersona(), WithTimeout(50*time.Millisecond))
	err := c.Submit(context.Background(), "Hi", nil)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "The request timed out, please try again.", c.LastError())
}

func TestFinish_StaleIDIgnored(t *testing.T) {
	c := New(&fakeSender{}, testPersona())
	p, err := c.Begin("Hi")
	require.NoError(t, err)

	_ = c.Finish("turn_other", errors.New("x"))
	assert.True(t, c.Busy())
	assert.Empty(t, c.LastError())

	assert.True(t, c.Append(p.AssistantID, "ok"))
	assert.False(t, c.Append("turn_other", "dropped"))
	require.NoError(t, c.Finish(p.AssistantID, nil))
	assert.Equal(t, "ok", c.Conversation().Last().Content)
}

func TestFinish_SuccessClearsPreviousError(t *testing.T) {
	sender := &fakeSender{err: errors.New("first failure")}
	c := New(sender, testPersona())

	require.Error(t, c.Submit(context.Background(), "one", nil))
	require.NotEmpty(t, c.LastError())

	sender.err = nil
	sender.fragments = []string{"fine"}
	require.NoError(t, c.Submit(context.Background(), "two", nil))
	assert.Empty(t, c.LastError())
}

// =============================================================================
// STATE TESTS
// =============================================================================

func TestReset(t *testing.T) {
	c := New(&fakeSender{fragments: []string{"x"}}, testPersona())
	require.NoError(t, c.Submit(context.Background(), "Hi", nil))
	require.False(t, c.ShowSuggestions())

	require.NoError(t, c.Reset())
	assert.Equal(t, []string{"Hello student"}, contents(c.Turns()))
	assert.True(t, c.ShowSuggestions())
}

func TestSetPersona(t *testing.T) {
	sender := &fakeSender{fragments: []string{"x"}}
	c := New(sender, testPersona())

	p := testPersona()
	p.SystemPrompt = "Be brief."
	p.Greeting = "Yo"
	c.SetPersona(p)

	require.NoError(t, c.Submit(context.Background(), "Hi", nil))
	assert.Equal(t, "Be brief.", sender.got[0].Content)
	assert.Equal(t, "Hello student", c.Turns()[0].Content, "greeting changes only on reset")

	require.NoError(t, c.Reset())
	assert.Equal(t, "Yo", c.Turns()[0].Content)
}

func TestShowSuggestions(t *testing.T) {
	c := New(&fakeSender{}, testPersona())
	assert.True(t, c.ShowSuggestions())

	p, err := c.Begin("Hi")
	require.NoError(t, err)
	assert.False(t, c.ShowSuggestions(), "three turns including the placeholder")
	_ = c.Finish(p.AssistantID, errors.New("x"))
	assert.True(t, c.ShowSuggestions(), "placeholder rolled back")
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"service", &cloud.ServiceError{Status: 500, Message: "Status 500"}, "API Error: Status 500"},
		{"wrapped service", fmt.Errorf("send: %w", &cloud.ServiceError{Status: 401, Message: "invalid key"}), "API Error: invalid key"},
		{"plain", errors.New("odd failure"), "odd failure"},
		{"blank", errors.New("  "), FallbackError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Describe(tc.err))
		})
	}
}
