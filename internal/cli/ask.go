// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot research query.
//
// Command: ask QUERY...
// The answer streams to stdout as it arrives; sources follow once the
// backend reports completion. Each ask starts a new session unless
// --continue is given, and the exchange is saved like any other.
//
// Examples:
//   buddy ask "latest advancements in fusion energy"
//   echo "who won the 2024 Super Bowl?" | buddy ask
//   buddy ask --continue "and the year before?"

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/research-buddy/internal/controller"
)

// failurePrefix is how the controller marks a failed answer's text.
const failurePrefix = "Error: "

func newAskCommand(opts *rootOptions) *cobra.Command {
	var cont bool

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Stream one research answer to stdout",
		Example: `  buddy ask "latest advancements in fusion energy"
  echo "who won the 2024 Super Bowl?" | buddy ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if strings.TrimSpace(query) == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read query from stdin: %w", err)
				}
				query = string(data)
			}
			if strings.TrimSpace(query) == "" {
				return errors.New("no query given")
			}

			a, err := openApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			// A fresh store already has an empty session to write into.
			if active, ok := a.store.ActiveSession(); !cont && ok && !active.IsEmpty() {
				a.store.CreateSession()
			}

			res, err := runQuery(cmd.Context(), a, cmd.OutOrStdout(), query)
			if err != nil {
				return err
			}
			if res.State == controller.StateFailed {
				return errors.New(strings.TrimPrefix(res.Text, failurePrefix))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&cont, "continue", "c", false, "add to the most recent session instead of starting a new one")
	return cmd
}
