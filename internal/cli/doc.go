// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the command-line interface for revise.
//
// Commands are built with cobra. Every command shares one App, which carries
// the loaded configuration, the logger and the I/O streams, so tests can run
// commands against buffers and a fake backend.
//
// # Commands Overview
//
//	revise                 full-screen chat (line chat when stdout is not a terminal)
//	revise chat            line-mode chat with history
//	revise ask QUESTION    one question, reply on stdout
//	revise config path     print the config file path
//	revise config show     print the effective config (key redacted)
//	revise config get KEY  print one setting
//	revise config set KEY VALUE
//
// # Usage
//
//	app := cli.NewApp()
//	app.RunTUI = runTUI
//	os.Exit(cli.Execute(ctx, app, os.Args[1:]))
package cli
