// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat view for revise.

The package is a Bubble Tea program around a chat.Controller. The controller
owns the conversation; this package only renders it and turns key presses into
controller calls.

# Key Components

## Model (model.go)

The Model holds the controller, the input box, the scrolling transcript, the
spinner and the markdown renderer. Every controller call happens inside
Update, so the conversation has a single writer.

## View Rendering (view.go)

  - Header with the persona name, subtitle and model badge
  - Message bubbles: user turns right-aligned, assistant turns rendered as
    markdown on the left
  - A typing indicator while the reply placeholder is still empty
  - Error banner, suggestion chips, clear confirmation and the input box

## Streaming (streaming.go)

The network call runs in a tea.Cmd goroutine and posts DeltaMsg values through
the program. Deltas are collected in a StreamingBuffer and applied to the
controller on a 30fps tick, which keeps rendering smooth without reordering
any text. DoneMsg flushes the remainder before the controller finishes the
turn.

# Usage

	m := chat.New(ctrl, theme, chat.WithModelName(client.Model()))
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.Attach(p)
	_, err := p.Run()
*/
package chat
