// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud streams chat completions from an OpenAI-compatible endpoint.
//
// The default endpoint is DashScope's compatible mode, but any server that
// speaks the chat/completions protocol with "stream": true works.
//
// # Key Types
//
//   - Client: HTTP client that posts the conversation and streams the reply
//   - ChatMessage: one role/content pair of the outbound history
//   - LineAssembler: owned byte accumulator that yields complete lines
//   - ServiceError, TransportError: typed failures; ErrNotConfigured for a
//     missing API key
//
// # Usage
//
//	client := cloud.NewClient(apiKey).WithModel("qwen-plus")
//	err := client.Send(ctx, []cloud.ChatMessage{
//	    cloud.NewSystemMessage("You are a helpful tutor."),
//	    cloud.NewUserMessage("Hi"),
//	}, func(delta string) {
//	    fmt.Print(delta)
//	})
//
// # Stream Format
//
// The body is a sequence of newline-terminated event lines. Lines of the form
// "data: {json}" carry a delta in choices[0].delta.content, and the line
// "data: [DONE]" marks the end. Lines that fail to parse are logged and
// skipped; they never abort the stream.
package cloud
