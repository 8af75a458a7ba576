// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the CLI and the TUI.
//
//   - AtomicWriteFile: crash-safe file writing with fsync, used for the config file
//   - TruncateWidth, PadRight, Width: display-width aware text helpers for chips
//     and headers that may contain CJK text or emoji
package util
