// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/research-buddy/internal/controller"
	"github.com/jeranaias/research-buddy/internal/model"
	"github.com/jeranaias/research-buddy/internal/session"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeSender struct {
	calls []string
	err   error
	busy  bool
}

func (f *fakeSender) Go(_ context.Context, text string, _ func(controller.Result)) error {
	f.calls = append(f.calls, text)
	return f.err
}

func (f *fakeSender) Busy() bool { return f.busy }

func newTestModel(t *testing.T, opts Options) (Model, *session.Store, *fakeSender) {
	t.Helper()
	store := session.NewStore()
	store.Bootstrap(nil)

	sender := &fakeSender{}
	m := New(context.Background(), store, sender, nil, opts)
	t.Cleanup(m.Close)

	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, store, sender
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func press(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	return update(t, m, k)
}

func resync(t *testing.T, m Model, store *session.Store) Model {
	t.Helper()
	return update(t, m, SnapshotMsg{Snapshot: store.Snapshot()})
}

// =============================================================================
// INPUT
// =============================================================================

func TestSubmit_SendsInput(t *testing.T) {
	m, _, sender := newTestModel(t, Options{SidebarOpen: true})
	m.input.SetValue("fusion energy")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"fusion energy"}, sender.calls)
	assert.Empty(t, m.input.Value())
}

func TestSubmit_StarterInEmptySession(t *testing.T) {
	m, _, sender := newTestModel(t, Options{})

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, sender.calls, 1)
	assert.Equal(t, Starters[1], sender.calls[0])
}

func TestSubmit_StarterCycleWraps(t *testing.T) {
	m, _, _ := newTestModel(t, Options{})
	for range Starters {
		m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
	assert.Equal(t, 0, m.starter)
}

func TestSubmit_GuardErrorsAreSilent(t *testing.T) {
	for _, guard := range []error{controller.ErrBusy, controller.ErrEmptyQuery, controller.ErrNoActiveSession} {
		t.Run(guard.Error(), func(t *testing.T) {
			m, _, sender := newTestModel(t, Options{})
			sender.err = guard
			m.input.SetValue("second question")

			m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

			assert.Equal(t, "second question", m.input.Value(), "rejected input is kept")
			assert.Empty(t, m.notice)
		})
	}
}

func TestSubmit_UnexpectedErrorShown(t *testing.T) {
	m, _, sender := newTestModel(t, Options{})
	sender.err = errors.New("failed to append user message: session not found")
	m.input.SetValue("q")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Contains(t, m.View(), "session not found")
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t, Options{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

// =============================================================================
// SESSIONS AND SIDEBAR
// =============================================================================

func TestNewSessionAndNavigate(t *testing.T) {
	m, store, _ := newTestModel(t, Options{SidebarOpen: true})
	first := store.ActiveID()

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	m = resync(t, m, store)
	second := store.ActiveID()
	require.NotEqual(t, first, second)
	require.Len(t, m.Snapshot().Sessions, 2)

	// Newest is on top; moving down reaches the older session.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown, Alt: true})
	assert.Equal(t, first, store.ActiveID())
	m = resync(t, m, store)

	// Already at the bottom; nothing changes.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown, Alt: true})
	assert.Equal(t, first, store.ActiveID())

	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp, Alt: true})
	assert.Equal(t, second, store.ActiveID())
}

func TestToggleSidebar(t *testing.T) {
	m, _, _ := newTestModel(t, Options{SidebarOpen: true})
	assert.Contains(t, m.View(), "Research Sessions")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	assert.False(t, m.SidebarOpen())
	assert.NotContains(t, m.View(), "Research Sessions")
}

func TestSidebarHiddenWhenNarrow(t *testing.T) {
	m, _, _ := newTestModel(t, Options{SidebarOpen: true})
	m = update(t, m, tea.WindowSizeMsg{Width: 50, Height: 30})

	assert.True(t, m.SidebarOpen())
	assert.False(t, m.sidebarVisible())
	assert.Equal(t, 50, m.mainWidth())
}

func TestSidebarItem_FitsWidth(t *testing.T) {
	m, store, _ := newTestModel(t, Options{SidebarOpen: true})
	active := store.ActiveID()
	_, err := store.AppendUserMessage(active, "量子コンピュータの最新の研究動向について教えてください")
	require.NoError(t, err)
	m = resync(t, m, store)

	sess, ok := m.Snapshot().Active()
	require.True(t, ok)

	for _, width := range []int{10, 17, 28} {
		row := m.sidebarItem(sess, width)
		assert.Equal(t, width, lipgloss.Width(row), "width %d", width)
		assert.True(t, strings.Contains(row, "> "), "active marker")
	}
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func TestView_WelcomePanel(t *testing.T) {
	m, _, _ := newTestModel(t, Options{})
	view := m.View()

	assert.Contains(t, view, "Ready to Research")
	for _, q := range Starters {
		assert.Contains(t, view, q)
	}
}

func TestView_CompletedResponseWithSources(t *testing.T) {
	m, store, _ := newTestModel(t, Options{})
	sid := store.ActiveID()

	_, err := store.AppendUserMessage(sid, "Who won the 2024 Super Bowl?")
	require.NoError(t, err)
	require.NoError(t, store.AppendAgentPlaceholder(sid, "agent-1"))
	meta := &model.GroundingMetadata{
		GroundingChunks: []model.GroundingChunk{
			{Web: &model.WebSource{URI: "https://a.example/1", Title: "Recap"}},
			{Web: &model.WebSource{URI: "", Title: "No link"}},
		},
	}
	require.NoError(t, store.PatchAgentMessage(sid, "agent-1", session.ContentPatch("Kansas City won.", meta)))
	require.NoError(t, store.FinalizeAgentMessage(sid, "agent-1"))

	m = resync(t, m, store)
	view := m.View()

	assert.Contains(t, view, "Who won the 2024 Super Bowl?")
	assert.Contains(t, view, "Kansas City won.")
	assert.Contains(t, view, "Sources")
	assert.Contains(t, view, "[1] Recap")
	assert.Contains(t, view, "https://a.example/1")
	assert.NotContains(t, view, "No link")
	assert.NotContains(t, view, "Ready to Research")
}

func TestView_StreamingPlaceholderAndFailure(t *testing.T) {
	m, store, _ := newTestModel(t, Options{})
	sid := store.ActiveID()

	_, err := store.AppendUserMessage(sid, "q")
	require.NoError(t, err)
	require.NoError(t, store.AppendAgentPlaceholder(sid, "agent-1"))
	m = resync(t, m, store)
	assert.Contains(t, m.View(), "Researching...")

	require.NoError(t, store.PatchAgentMessage(sid, "agent-1", session.FailurePatch("No response body")))
	m = resync(t, m, store)
	assert.Contains(t, m.View(), "Error: No response body")
}

func TestView_StreamingHidesSources(t *testing.T) {
	m, store, _ := newTestModel(t, Options{})
	sid := store.ActiveID()

	_, err := store.AppendUserMessage(sid, "q")
	require.NoError(t, err)
	require.NoError(t, store.AppendAgentPlaceholder(sid, "agent-1"))
	meta := &model.GroundingMetadata{
		GroundingChunks: []model.GroundingChunk{{Web: &model.WebSource{URI: "https://a.example/1"}}},
	}
	require.NoError(t, store.PatchAgentMessage(sid, "agent-1", session.ContentPatch("partial", meta)))

	m = resync(t, m, store)
	assert.Contains(t, m.View(), "partial")
	assert.NotContains(t, m.View(), "https://a.example/1")
}

func TestHeader_Health(t *testing.T) {
	m, _, sender := newTestModel(t, Options{BackendURL: "http://127.0.0.1:8000"})
	assert.Contains(t, m.View(), "http://127.0.0.1:8000")

	m = update(t, m, HealthMsg{})
	assert.Contains(t, m.View(), "[OK]")

	m = update(t, m, HealthMsg{Err: errors.New("refused")})
	assert.Contains(t, m.View(), "backend unreachable")

	sender.busy = true
	assert.Contains(t, m.View(), "Researching...")
}

func TestBackendURLMsg(t *testing.T) {
	m, _, _ := newTestModel(t, Options{BackendURL: "http://old:8000"})
	m = update(t, m, HealthMsg{})

	m = update(t, m, BackendURLMsg{URL: "http://new:9000"})
	assert.Equal(t, "http://new:9000", m.backendURL)
	assert.False(t, m.healthKnown)
}

// =============================================================================
// REDRAW THROTTLING
// =============================================================================

func TestSnapshot_ThrottledWhileStreaming(t *testing.T) {
	m, store, _ := newTestModel(t, Options{RedrawPerSec: 1})
	sid := store.ActiveID()

	_, err := store.AppendUserMessage(sid, "q")
	require.NoError(t, err)
	require.NoError(t, store.AppendAgentPlaceholder(sid, "agent-1"))

	// The first streaming frame spends the limiter's burst.
	m = resync(t, m, store)
	require.False(t, m.dirty)

	require.NoError(t, store.PatchAgentMessage(sid, "agent-1", session.ContentPatch("one", nil)))
	next, cmd := m.Update(SnapshotMsg{Snapshot: store.Snapshot()})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.dirty, "frame deferred")
	assert.True(t, m.redrawPending)
	assert.NotContains(t, m.vp.View(), "one")

	m = update(t, m, redrawMsg{})
	assert.False(t, m.dirty)
	assert.False(t, m.redrawPending)
	assert.Contains(t, m.vp.View(), "one")
}

func TestSnapshot_EndOfStreamDrawsImmediately(t *testing.T) {
	m, store, _ := newTestModel(t, Options{RedrawPerSec: 1})
	sid := store.ActiveID()

	_, err := store.AppendUserMessage(sid, "q")
	require.NoError(t, err)
	require.NoError(t, store.AppendAgentPlaceholder(sid, "agent-1"))
	m = resync(t, m, store)

	require.NoError(t, store.PatchAgentMessage(sid, "agent-1", session.ContentPatch("done text", nil)))
	require.NoError(t, store.FinalizeAgentMessage(sid, "agent-1"))
	m = resync(t, m, store)

	assert.False(t, m.dirty)
	assert.Contains(t, m.vp.View(), "done text")
}

func TestStoreClosed(t *testing.T) {
	m, store, _ := newTestModel(t, Options{})
	store.Close()

	msg := waitForSnapshot(m.updates)()
	// The buffered initial snapshot may still be pending.
	if _, ok := msg.(SnapshotMsg); ok {
		msg = waitForSnapshot(m.updates)()
	}
	assert.IsType(t, storeClosedMsg{}, msg)
}
