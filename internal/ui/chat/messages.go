// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/research-buddy/internal/session"
)

// =============================================================================
// TEA MESSAGES
// =============================================================================

// SnapshotMsg carries a store snapshot into the update loop.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// storeClosedMsg is sent when the subscription channel closes.
type storeClosedMsg struct{}

// redrawMsg fires when a throttled transcript frame is due.
type redrawMsg struct{}

// HealthMsg reports the backend health probe result.
type HealthMsg struct {
	Err error
}

// BackendURLMsg tells the UI the backend moved after a config reload.
type BackendURLMsg struct {
	URL string
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForSnapshot blocks on the next snapshot from ch.
func waitForSnapshot(ch <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return storeClosedMsg{}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

// redrawAfter schedules a redraw.
func redrawAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return redrawMsg{}
	})
}

// checkHealth probes the backend once.
func checkHealth(ctx context.Context, p Pinger, timeout time.Duration) tea.Cmd {
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return HealthMsg{Err: p.Health(ctx)}
	}
}
