// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/research-buddy/internal/controller"
	"github.com/jeranaias/research-buddy/internal/ui/styles"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.render()
		return m, nil

	case SnapshotMsg:
		return m.handleSnapshot(msg)

	case storeClosedMsg:
		return m, nil

	case redrawMsg:
		m.redrawPending = false
		if m.dirty {
			m.render()
		}
		return m, nil

	case HealthMsg:
		m.healthKnown = true
		m.healthErr = msg.Err
		return m, nil

	case BackendURLMsg:
		m.backendURL = msg.URL
		m.healthKnown = false
		return m, checkHealth(m.ctx, m.pinger, m.opts.HealthTimeout)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if handled, cmd := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleSnapshot installs a new snapshot and decides whether to redraw now.
// Session switches and the end of a stream draw immediately; streaming
// updates draw at most RedrawPerSec times a second.
func (m Model) handleSnapshot(msg SnapshotMsg) (tea.Model, tea.Cmd) {
	prevActive := m.snap.ActiveID
	m.snap = msg.Snapshot
	m.dirty = true

	next := waitForSnapshot(m.updates)

	if m.snap.ActiveID != prevActive {
		m.starter = 0
		m.render()
		return m, next
	}

	if !m.snap.Streaming() || m.limiter.Allow() {
		m.render()
		return m, next
	}

	if !m.redrawPending {
		m.redrawPending = true
		return m, tea.Batch(next, redrawAfter(m.frameInterval()))
	}
	return m, next
}

// handleKey processes app-level bindings. Keys it does not claim go to the
// input.
func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return true, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		m.render()
		return true, nil

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.sidebarOpen = !m.sidebarOpen
		m.layout()
		m.render()
		return true, nil

	case key.Matches(msg, m.keys.NewSession):
		m.store.CreateSession()
		return true, nil

	case key.Matches(msg, m.keys.PrevSession):
		m.selectRelative(-1)
		return true, nil

	case key.Matches(msg, m.keys.NextSession):
		m.selectRelative(1)
		return true, nil

	case key.Matches(msg, m.keys.PageUp):
		m.vp.HalfViewUp()
		return true, nil

	case key.Matches(msg, m.keys.PageDown):
		m.vp.HalfViewDown()
		return true, nil

	case key.Matches(msg, m.keys.NextStarter):
		if m.showingWelcome() {
			m.starter = (m.starter + 1) % len(Starters)
			m.render()
			return true, nil
		}
		return false, nil

	case key.Matches(msg, m.keys.Submit):
		m.submit()
		return true, nil
	}
	return false, nil
}

// submit sends the input, or the highlighted starter when the input is
// blank in an empty session. Guard rejections leave the input as is.
func (m *Model) submit() {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" && m.showingWelcome() {
		text = Starters[m.starter]
	}

	err := m.sender.Go(m.ctx, text, nil)
	switch {
	case err == nil:
		m.input.Reset()
		m.notice = ""
	case errors.Is(err, controller.ErrBusy),
		errors.Is(err, controller.ErrEmptyQuery),
		errors.Is(err, controller.ErrNoActiveSession):
		// ignored; nothing changed
	default:
		m.notice = err.Error()
	}
}

// selectRelative moves the active session up or down the sidebar list.
func (m *Model) selectRelative(delta int) {
	sessions := m.snap.Sessions
	if len(sessions) == 0 {
		return
	}
	cur := 0
	for i, s := range sessions {
		if s.ID == m.snap.ActiveID {
			cur = i
			break
		}
	}
	next := cur + delta
	if next < 0 || next >= len(sessions) {
		return
	}
	m.store.SelectSession(sessions[next].ID)
}

// showingWelcome reports whether the active session has no messages.
func (m Model) showingWelcome() bool {
	active, ok := m.snap.Active()
	return ok && len(active.Messages) == 0
}

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight = 1
	inputHeight  = 5 // textarea rows plus border
)

// sidebarVisible reports whether the sidebar is drawn at the current width.
func (m Model) sidebarVisible() bool {
	return m.sidebarOpen && styles.LayoutFor(m.width) != styles.LayoutNarrow
}

// mainWidth is the width left for the transcript and the input.
func (m Model) mainWidth() int {
	w := m.width
	if m.sidebarVisible() {
		w -= m.opts.SidebarWidth
	}
	if w < 1 {
		w = 1
	}
	return w
}

// bodyHeight is the height between header and footer.
func (m Model) bodyHeight() int {
	footer := 1
	if m.help.ShowAll {
		footer = 4
	}
	h := m.height - headerHeight - footer
	if h < inputHeight+1 {
		h = inputHeight + 1
	}
	return h
}

func (m *Model) layout() {
	main := m.mainWidth()
	m.vp.Width = main
	m.vp.Height = m.bodyHeight() - inputHeight
	m.input.SetWidth(max(main-4, 1))
	m.help.Width = m.width
}

// render rebuilds the transcript. The view follows the latest message when
// the message list or the streaming flag changed, or when the reader was
// already at the bottom.
func (m *Model) render() {
	m.dirty = false
	if !m.ready {
		return
	}

	active, _ := m.snap.Active()
	atBottom := m.vp.AtBottom()
	m.vp.SetContent(m.renderTranscript(active, m.vp.Width))

	streaming := active.HasStreaming()
	changed := active.ID != m.shownSession ||
		len(active.Messages) != m.shownMessages ||
		streaming != m.shownStreaming
	if changed || atBottom {
		m.vp.GotoBottom()
	}

	m.shownSession = active.ID
	m.shownMessages = len(active.Messages)
	m.shownStreaming = streaming
}
