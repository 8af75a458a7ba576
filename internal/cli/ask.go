// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command for the revise CLI.
//
// Command: ask [question]
// Short:   Ask a single question
//
// Examples:
//   revise ask "What is the Krebs cycle?"
//   echo "Summarize chapter 3" | revise ask
//   revise ask --render "Give me a revision table for WW1"

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// maxStdinQuestion bounds a question read from a pipe.
const maxStdinQuestion = 1 << 20

func newAskCmd(app *App) *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Long: `Ask one question and print the reply. Without arguments the question is
read from stdin. The exit code is 1 when the request fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if strings.TrimSpace(question) == "" && !IsTerminalReader(app.Stdin) {
				b, err := io.ReadAll(io.LimitReader(app.Stdin, maxStdinQuestion))
				if err != nil {
					return fmt.Errorf("failed to read question: %w", err)
				}
				question = string(b)
			}
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("no question given; usage: %s", cmd.UseLine())
			}
			return app.ask(cmd, question, render)
		},
	}

	cmd.Flags().BoolVarP(&render, "render", "r", false, "render the finished reply as markdown instead of streaming it")
	return cmd
}

// ask runs one submission. Streaming output goes straight to stdout; with
// render the whole reply is formatted once it is complete.
func (a *App) ask(cmd *cobra.Command, question string, render bool) error {
	ctrl := a.NewController(a.Config)

	printed := false
	onDelta := func(fragment string) {
		printed = true
		fmt.Fprint(a.Stdout, fragment)
	}
	if render {
		onDelta = nil
	}

	err := ctrl.Submit(cmd.Context(), question, onDelta)
	if err != nil {
		if printed {
			fmt.Fprintln(a.Stdout)
		}
		fmt.Fprintln(a.Stderr, ErrorStyle.Render("Error:"), ctrl.LastError())
		return errReported
	}

	reply := ctrl.Conversation().Last().Content
	if !render {
		fmt.Fprintln(a.Stdout)
		return nil
	}

	out, rerr := renderMarkdown(reply, GetTerminalWidth())
	if rerr != nil {
		a.Logger.Debug().Err(rerr).Msg("markdown render failed")
		out = reply + "\n"
	}
	fmt.Fprint(a.Stdout, out)
	return nil
}

// renderMarkdown formats text for the terminal with glamour.
func renderMarkdown(text string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}
