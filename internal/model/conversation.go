// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the visible chat history.
//
// Turns are only ever appended, with two exceptions: RemoveEmpty rolls back an
// assistant turn that never received any text, and Reset restores the
// greeting-only state on an explicit user request.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	turns    []*Turn
	greeting string
}

// NewConversation creates a conversation. A non-empty greeting becomes the
// first assistant turn.
func NewConversation(greeting string) *Conversation {
	c := &Conversation{
		ID:        newID(),
		CreatedAt: time.Now(),
		greeting:  greeting,
	}
	c.Reset()
	return c
}

// =============================================================================
// TURN MANAGEMENT
// =============================================================================

// AddTurn appends a turn to the conversation.
func (c *Conversation) AddTurn(t *Turn) {
	c.turns = append(c.turns, t)
	c.UpdatedAt = time.Now()
}

// AddUserTurn creates and appends a user turn.
func (c *Conversation) AddUserTurn(content string) *Turn {
	t := NewTurn(RoleUser, content)
	c.AddTurn(t)
	return t
}

// AddAssistantPlaceholder creates and appends an empty assistant turn that
// streamed text is appended to.
func (c *Conversation) AddAssistantPlaceholder() *Turn {
	t := NewTurn(RoleAssistant, "")
	c.AddTurn(t)
	return t
}

// AppendTo appends a fragment to the turn with the given ID.
// Returns false when no such turn exists.
func (c *Conversation) AppendTo(id, fragment string) bool {
	t := c.Get(id)
	if t == nil {
		return false
	}
	t.Append(fragment)
	c.UpdatedAt = time.Now()
	return true
}

// RemoveEmpty removes the turn with the given ID if it has no content.
// Non-empty turns are never removed. Returns true if a turn was removed.
func (c *Conversation) RemoveEmpty(id string) bool {
	for i, t := range c.turns {
		if t.ID != id {
			continue
		}
		if !t.IsEmpty() {
			return false
		}
		c.turns = append(c.turns[:i], c.turns[i+1:]...)
		c.UpdatedAt = time.Now()
		return true
	}
	return false
}

// Reset drops every turn and restores the greeting.
func (c *Conversation) Reset() {
	c.turns = make([]*Turn, 0, 16)
	if c.greeting != "" {
		c.turns = append(c.turns, NewTurn(RoleAssistant, c.greeting))
	}
	c.UpdatedAt = time.Now()
}

// SetGreeting changes the greeting used by the next Reset.
func (c *Conversation) SetGreeting(greeting string) {
	c.greeting = greeting
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Get returns the turn with the given ID, or nil.
func (c *Conversation) Get(id string) *Turn {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].ID == id {
			return c.turns[i]
		}
	}
	return nil
}

// Turns returns the turns in order. The slice is a copy; the turns are shared.
func (c *Conversation) Turns() []*Turn {
	out := make([]*Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Last returns the most recent turn, or nil if empty.
func (c *Conversation) Last() *Turn {
	if len(c.turns) == 0 {
		return nil
	}
	return c.turns[len(c.turns)-1]
}

// LastAssistant returns the most recent assistant turn with content.
func (c *Conversation) LastAssistant() *Turn {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role == RoleAssistant && !c.turns[i].IsEmpty() {
			return c.turns[i]
		}
	}
	return nil
}

// Window returns at most n of the most recent turns, oldest first.
// n <= 0 returns every turn.
func (c *Conversation) Window(n int) []*Turn {
	turns := c.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]*Turn, len(turns))
	copy(out, turns)
	return out
}
