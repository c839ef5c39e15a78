// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-based research REPL.
//
// Command: chat
// Shares the session history with the TUI. Answers stream inline.
//
// Interactive Commands:
//   /help, /h           Show available commands
//   /new                Start a new session
//   /sessions, /ls      List sessions
//   /switch N           Make session N (from /sessions) active
//   /quit, /q           Exit
//   Ctrl+C              Abandon the current request
//   Ctrl+D              Exit

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/research-buddy/internal/config"
	"github.com/jeranaias/research-buddy/internal/controller"
	"github.com/jeranaias/research-buddy/internal/session"
	"github.com/jeranaias/research-buddy/internal/storage"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// historyFile is where REPL input history is kept, under the config dir.
const historyFile = "chat_history"

// lineReader provides line editing and history for the REPL.
type lineReader struct {
	line *liner.State
	path string
}

func newLineReader() *lineReader {
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)

	r := &lineReader{line: l}
	if dir, err := config.Dir(); err == nil {
		r.path = filepath.Join(dir, historyFile)
		if f, err := os.Open(r.path); err == nil {
			_, _ = l.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

// Prompt reads one line and records it in history.
func (r *lineReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with 0600 permissions and restores the terminal.
func (r *lineReader) Close() {
	defer r.line.Close()
	if r.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = r.line.WriteHistory(f)
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a line-based research session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			// Ctrl+C abandons the current request instead of ending the REPL.
			signal.Reset(os.Interrupt)

			return runChat(cmd.Context(), a, newLineReader(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// prompter abstracts the line editor.
type prompter interface {
	Prompt(prompt string) (string, error)
	Close()
}

// runChat is the REPL loop.
func runChat(ctx context.Context, a *app, in prompter, out, errOut io.Writer) error {
	defer in.Close()

	fmt.Fprintln(out, titleStyle.Render("Research Buddy")+" "+dimStyle.Render(a.cfg.Backend.URL))
	fmt.Fprintln(out, dimStyle.Render("Type a question, /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(out)

	for {
		input, err := in.Prompt(promptStyle.Render("research> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or closed stdin
			fmt.Fprintln(out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleSlashCommand(a, input, out, errOut); quit {
				return nil
			}
			continue
		}

		if err := chatQuery(ctx, a, input, out, errOut); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// chatQuery streams one answer. Ctrl+C while streaming cancels only this
// request; the controller records the cancellation on the message.
func chatQuery(ctx context.Context, a *app, query string, out, errOut io.Writer) error {
	reqCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprintln(out)
	res, err := runQuery(reqCtx, a, out, query)
	switch {
	case errors.Is(err, controller.ErrBusy), errors.Is(err, controller.ErrEmptyQuery):
		return nil
	case err != nil:
		return err
	}
	if res.State == controller.StateFailed {
		fmt.Fprintln(errOut, errorStyle.Render(res.Text))
	}
	fmt.Fprintln(out)
	return nil
}

// handleSlashCommand runs a REPL command and reports whether to exit.
func handleSlashCommand(a *app, input string, out, errOut io.Writer) bool {
	fields := strings.Fields(input)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		fmt.Fprintln(out, titleStyle.Render("Commands"))
		fmt.Fprintln(out, "  /new           start a new session")
		fmt.Fprintln(out, "  /sessions      list sessions")
		fmt.Fprintln(out, "  /switch N      make session N active")
		fmt.Fprintln(out, "  /quit          exit")

	case "/new":
		a.store.CreateSession()
		fmt.Fprintln(out, dimStyle.Render("Started a new session."))

	case "/sessions", "/ls":
		snap := a.store.Snapshot()
		fmt.Fprintln(out, storage.FormatSessionList(snap.Sessions, snap.ActiveID))

	case "/switch":
		if len(args) != 1 {
			fmt.Fprintln(errOut, errorStyle.Render("usage: /switch N"))
			return false
		}
		if err := switchSession(a.store, args[0]); err != nil {
			fmt.Fprintln(errOut, errorStyle.Render(err.Error()))
			return false
		}
		active, _ := a.store.ActiveSession()
		fmt.Fprintln(out, dimStyle.Render("Switched to: "+active.Title))

	default:
		fmt.Fprintln(errOut, errorStyle.Render("unknown command "+name+" (try /help)"))
	}
	return false
}

// switchSession activates the session at 1-based position ref.
func switchSession(store *session.Store, ref string) error {
	n, err := strconv.Atoi(ref)
	sessions := store.Snapshot().Sessions
	if err != nil || n < 1 || n > len(sessions) {
		return fmt.Errorf("no session %q (1-%d)", ref, len(sessions))
	}
	store.SelectSession(sessions[n-1].ID)
	return nil
}
