// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Saved session commands.
//
// Command: sessions [list|show|export]
// Reads the persisted session list without starting a new session.
//
// Examples:
//   buddy sessions                       List sessions
//   buddy sessions show 1                Newest session as Markdown
//   buddy sessions show 3f2a             Session whose id starts with 3f2a
//   buddy sessions export --format yaml  All sessions as YAML
//   buddy sessions export -o out.md --format markdown 1 2

package cli

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/research-buddy/internal/model"
	"github.com/jeranaias/research-buddy/internal/storage"
	"github.com/jeranaias/research-buddy/internal/util"
)

func newSessionsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "List, show and export saved sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSessions(cmd, opts)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved sessions, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return listSessions(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "show REF",
			Short: "Print one session as Markdown",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sessions, err := loadSessions(cmd, opts)
				if err != nil {
					return err
				}
				s, err := resolveSession(sessions, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), storage.ExportMarkdown(s))
				return nil
			},
		},
		newExportCommand(opts),
	)
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export [REF...]",
		Short: "Export sessions as json, yaml or markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := loadSessions(cmd, opts)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				picked := make([]model.Session, 0, len(args))
				for _, ref := range args {
					s, err := resolveSession(sessions, ref)
					if err != nil {
						return err
					}
					picked = append(picked, s)
				}
				sessions = picked
			}

			if output == "" {
				return storage.Export(cmd.OutOrStdout(), format, sessions)
			}

			var buf bytes.Buffer
			if err := storage.Export(&buf, format, sessions); err != nil {
				return err
			}
			if err := util.AtomicWriteFile(output, buf.Bytes(), 0600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d session(s) to %s\n", len(sessions), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", storage.FormatJSON, "json, yaml or markdown")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func listSessions(cmd *cobra.Command, opts *rootOptions) error {
	sessions, err := loadSessions(cmd, opts)
	if err != nil {
		return err
	}
	active := ""
	if len(sessions) > 0 {
		active = sessions[0].ID
	}
	fmt.Fprintln(cmd.OutOrStdout(), storage.FormatSessionList(sessions, active))
	return nil
}

// loadSessions reads the persisted list through the repository only, so
// listing never creates a session.
func loadSessions(cmd *cobra.Command, opts *rootOptions) ([]model.Session, error) {
	a, err := openStorage(opts, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	defer a.Close()

	sessions, err := a.repo.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return sessions, nil
}

// resolveSession finds a session by 1-based position or id prefix.
func resolveSession(sessions []model.Session, ref string) (model.Session, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(sessions) {
			return model.Session{}, fmt.Errorf("no session at position %d (have %d)", n, len(sessions))
		}
		return sessions[n-1], nil
	}

	var match *model.Session
	for i := range sessions {
		if strings.HasPrefix(sessions[i].ID, ref) {
			if match != nil {
				return model.Session{}, fmt.Errorf("session id prefix %q is ambiguous", ref)
			}
			match = &sessions[i]
		}
	}
	if match == nil {
		return model.Session{}, fmt.Errorf("no session matches %q", ref)
	}
	return *match, nil
}
