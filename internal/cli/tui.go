// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/research-buddy/internal/config"
	"github.com/jeranaias/research-buddy/internal/ui/chat"
)

func newTUICommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the terminal UI (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}
}

// runTUI starts the Bubble Tea UI and keeps the backend URL in step with
// the config file while it runs.
func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	if err := RequiresTTY("start the terminal UI"); err != nil {
		return err
	}

	a, err := openApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	// Quitting abandons any in-flight request before a.Close waits for it.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := chat.New(ctx, a.store, a.ctrl, a.client, chat.Options{
		SidebarOpen:   a.cfg.UI.SidebarOpen,
		SidebarWidth:  a.cfg.UI.SidebarWidth,
		RedrawPerSec:  a.cfg.UI.RedrawPerSec,
		HealthTimeout: a.cfg.HealthTimeout(),
		BackendURL:    a.cfg.Backend.URL,
	})
	defer m.Close()

	p := chat.Program(ctx, m)

	// A --backend flag pins the URL; reloads only apply without it.
	if a.cfg.Source != "" && opts.backendURL == "" {
		w, err := config.Watch(a.cfg.Source, 0, func(next *config.Config, err error) {
			if err != nil {
				a.logger.Warn("config reload failed", zap.Error(err))
				return
			}
			if next.Backend.URL == a.client.BaseURL() {
				return
			}
			a.client.SetBaseURL(next.Backend.URL)
			a.logger.Info("config reloaded", zap.String("backend", next.Backend.URL))
			p.Send(chat.BackendURLMsg{URL: next.Backend.URL})
		})
		if err != nil {
			a.logger.Warn("config watch unavailable", zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	a.logger.Info("tui started", zap.String("backend", a.cfg.Backend.URL))
	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}
	return nil
}
