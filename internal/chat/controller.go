// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives one conversation: it accepts user input, builds the
// outbound request, applies streamed fragments to the reply in place and
// rolls back a reply that failed before producing any text.
//
// A Controller has exactly one writer. The TUI calls it from its update loop;
// the line REPL and the ask command call Submit from a single goroutine. The
// busy flag, not a lock, is what keeps a second submission out.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/revise-tui/internal/cloud"
	"github.com/jeranaias/revise-tui/internal/model"
	"github.com/jeranaias/revise-tui/internal/persona"
)

// Defaults for controller options.
const (
	DefaultHistoryWindow = 100
	DefaultTimeout       = 300 * time.Second

	// FallbackError is shown when a failure carries no message of its own.
	FallbackError = "Failed to reach the server, please try again later."

	// SuggestionThreshold is the turn count below which suggestions are offered.
	SuggestionThreshold = 3
)

var (
	// ErrEmptyInput is returned by Begin for blank input.
	ErrEmptyInput = errors.New("input is empty")

	// ErrBusy is returned while a submission is in flight.
	ErrBusy = errors.New("a reply is still streaming")
)

// Sender streams a reply for the given history. *cloud.Client implements it.
type Sender interface {
	Send(ctx context.Context, messages []cloud.ChatMessage, onDelta func(string)) error
}

// Pending describes an accepted submission.
type Pending struct {
	UserID      string
	AssistantID string
	Payload     []cloud.ChatMessage

	sender  Sender
	timeout time.Duration
}

// Run performs the network call for this submission. It does not touch the
// conversation, so it may run on any goroutine; deliver each fragment back to
// the owning goroutine and apply it with Controller.Append.
func (p *Pending) Run(ctx context.Context, onDelta func(string)) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.sender.Send(ctx, p.Payload, onDelta)
}

// Option configures a Controller.
type Option func(*Controller)

// WithHistoryWindow limits how many recent turns are sent upstream.
// n <= 0 sends the whole conversation.
func WithHistoryWindow(n int) Option {
	return func(c *Controller) { c.historyWindow = n }
}

// WithTimeout bounds each submission. d <= 0 disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithLogger sets the controller's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger.With().Str("component", "chat").Logger() }
}

// Controller owns the conversation and the in-flight flag.
type Controller struct {
	conv          *model.Conversation
	persona       persona.Persona
	sender        Sender
	historyWindow int
	timeout       time.Duration
	logger        zerolog.Logger

	busy      bool
	pendingID string
	lastError string
}

// New creates a controller whose conversation starts with the persona greeting.
func New(sender Sender, p persona.Persona, opts ...Option) *Controller {
	c := &Controller{
		conv:          model.NewConversation(p.Greeting),
		persona:       p,
		sender:        sender,
		historyWindow: DefaultHistoryWindow,
		timeout:       DefaultTimeout,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Begin accepts a submission: it appends the user turn and an empty assistant
// placeholder, marks the controller busy and returns the request payload.
// Blank input yields ErrEmptyInput and a submission in flight yields ErrBusy;
// neither changes any state.
func (c *Controller) Begin(text string) (*Pending, error) {
	if c.busy {
		return nil, ErrBusy
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	user := c.conv.AddUserTurn(text)
	payload := c.buildPayload()
	reply := c.conv.AddAssistantPlaceholder()

	c.busy = true
	c.pendingID = reply.ID
	c.lastError = ""

	c.logger.Debug().
		Str("turn", reply.ID).
		Int("payload", len(payload)).
		Int("chars", len(text)).
		Msg("submission accepted")

	return &Pending{
		UserID:      user.ID,
		AssistantID: reply.ID,
		Payload:     payload,
		sender:      c.sender,
		timeout:     c.timeout,
	}, nil
}

// Append adds a streamed fragment to the turn with the given ID.
// Fragments for an unknown turn are dropped.
func (c *Controller) Append(id, fragment string) bool {
	return c.conv.AppendTo(id, fragment)
}

// Finish ends the submission whose placeholder has the given ID.
//
// The busy flag is always cleared. On failure an empty placeholder is removed
// while a partial reply is kept, and LastError is set. The error is returned
// unchanged so callers can inspect it.
func (c *Controller) Finish(id string, err error) error {
	if id != c.pendingID {
		c.logger.Debug().Str("turn", id).Msg("ignoring finish for stale submission")
		return err
	}
	c.busy = false
	c.pendingID = ""

	if err == nil {
		c.lastError = ""
		return nil
	}

	removed := c.conv.RemoveEmpty(id)
	c.lastError = Describe(err)
	c.logger.Warn().Err(err).Str("turn", id).Bool("rolled_back", removed).Msg("submission failed")
	return err
}

// Submit performs a whole submission synchronously. onDelta, if non-nil, sees
// each fragment after it has been applied.
func (c *Controller) Submit(ctx context.Context, text string, onDelta func(string)) (err error) {
	p, err := c.Begin(text)
	if err != nil {
		return err
	}
	defer func() {
		err = c.Finish(p.AssistantID, err)
	}()

	return p.Run(ctx, func(fragment string) {
		c.Append(p.AssistantID, fragment)
		if onDelta != nil {
			onDelta(fragment)
		}
	})
}

// buildPayload returns the system turn followed by the windowed history.
func (c *Controller) buildPayload() []cloud.ChatMessage {
	history := c.conv.Window(c.historyWindow)
	payload := make([]cloud.ChatMessage, 0, len(history)+1)

	if prompt := strings.TrimSpace(c.persona.SystemPrompt); prompt != "" {
		payload = append(payload, cloud.NewSystemMessage(prompt))
	}
	for _, t := range history {
		if t.IsEmpty() {
			continue
		}
		payload = append(payload, cloud.ChatMessage{Role: t.Role.String(), Content: t.Content})
	}
	return payload
}

// =============================================================================
// STATE
// =============================================================================

// Reset restores the greeting-only conversation. It fails with ErrBusy while
// a reply is streaming.
func (c *Controller) Reset() error {
	if c.busy {
		return ErrBusy
	}
	c.conv.Reset()
	c.lastError = ""
	return nil
}

// SetPersona applies a new persona to future requests and the next Reset.
func (c *Controller) SetPersona(p persona.Persona) {
	c.persona = p
	c.conv.SetGreeting(p.Greeting)
}

// Apply reconfigures the controller. A submission already in flight keeps
// the settings it started with.
func (c *Controller) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// SetSender swaps the backend used by future submissions.
func (c *Controller) SetSender(s Sender) {
	c.sender = s
}

// Persona returns the active persona.
func (c *Controller) Persona() persona.Persona {
	return c.persona
}

// Turns returns the visible conversation in order.
func (c *Controller) Turns() []*model.Turn {
	return c.conv.Turns()
}

// Conversation exposes the underlying conversation for read access.
func (c *Controller) Conversation() *model.Conversation {
	return c.conv
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	return c.busy
}

// PendingID returns the placeholder ID of the submission in flight, or "".
func (c *Controller) PendingID() string {
	return c.pendingID
}

// LastError returns the message of the most recent failure, or "".
func (c *Controller) LastError() string {
	return c.lastError
}

// ShowSuggestions reports whether the conversation is short enough for
// suggestion chips.
func (c *Controller) ShowSuggestions() bool {
	return c.conv.Len() < SuggestionThreshold
}

// =============================================================================
// ERROR TEXT
// =============================================================================

// Describe converts a submission error to the text shown to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var (
		se *cloud.ServiceError
		te *cloud.TransportError
	)
	switch {
	case errors.Is(err, cloud.ErrNotConfigured):
		return "API key is missing. Set REVISE_API_KEY or api.key in the config file."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out, please try again."
	case errors.As(err, &se):
		return se.Error()
	case errors.As(err, &te):
		return te.Error()
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackError
}
