// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the visible conversation.
//
// # Key Types
//
//   - Turn: one message with a stable ID, a role, and content that may grow
//     while a reply streams in
//   - Conversation: ordered list of turns, append-only except for rolling
//     back an empty assistant placeholder and an explicit reset
//   - Role: speaker enumeration (user, assistant, system)
//
// The persona instructions are never stored here. They are prepended to the
// outbound request by the chat controller.
//
// # Usage
//
//	conv := model.NewConversation("Hi! What are we revising today?")
//	conv.AddUserTurn("Explain eigenvalues")
//	reply := conv.AddAssistantPlaceholder()
//	conv.AppendTo(reply.ID, "An eigenvalue is...")
package model
