// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is a single message in a conversation.
//
// ID is unique within its conversation and never changes. Content only grows
// while a reply streams in; it is never trimmed character by character.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn creates a turn with a fresh ID.
func NewTurn(role Role, content string) *Turn {
	return &Turn{
		ID:        newID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Append adds a fragment to the end of the turn's content.
func (t *Turn) Append(fragment string) {
	t.Content += fragment
}

// IsEmpty reports whether the turn has no content at all.
func (t *Turn) IsEmpty() bool {
	return t.Content == ""
}

// Preview returns a rune-safe truncated preview of the content.
func (t *Turn) Preview(maxLen int) string {
	runes := []rune(t.Content)
	if maxLen <= 3 || len(runes) <= maxLen {
		return t.Content
	}
	return string(runes[:maxLen-3]) + "..."
}

// Clone returns an independent copy of the turn.
func (t *Turn) Clone() *Turn {
	c := *t
	return &c
}

func newID() string {
	return "turn_" + uuid.NewString()
}
