// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/research-buddy/internal/controller"
	"github.com/jeranaias/research-buddy/internal/session"
	"github.com/jeranaias/research-buddy/internal/ui/styles"
)

// Starters are offered in an empty session.
var Starters = []string{
	"Latest advancements in fusion energy",
	"Compare iPhone 15 Pro vs Pixel 9 Pro",
	"Summary of yesterday's stock market",
	"Who won the 2024 Super Bowl?",
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Sender starts research requests. *controller.Controller implements it.
type Sender interface {
	Go(ctx context.Context, text string, done func(controller.Result)) error
	Busy() bool
}

// Pinger probes the backend. *research.Client implements it.
type Pinger interface {
	Health(ctx context.Context) error
}

// Options tunes the UI.
type Options struct {
	SidebarOpen   bool
	SidebarWidth  int
	RedrawPerSec  int
	HealthTimeout time.Duration
	BackendURL    string
}

func (o *Options) setDefaults() {
	if o.SidebarWidth <= 0 {
		o.SidebarWidth = 32
	}
	if o.RedrawPerSec <= 0 {
		o.RedrawPerSec = 20
	}
	if o.HealthTimeout <= 0 {
		o.HealthTimeout = 10 * time.Second
	}
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the research UI.
type Model struct {
	ctx    context.Context
	store  *session.Store
	sender Sender
	pinger Pinger
	opts   Options

	theme   *styles.Theme
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	input   textarea.Model
	vp      viewport.Model

	// Latest snapshot from the store
	snap        session.Snapshot
	updates     <-chan session.Snapshot
	unsubscribe func()

	width  int
	height int
	ready  bool

	sidebarOpen bool

	// Redraw throttling
	limiter       *rate.Limiter
	dirty         bool
	redrawPending bool

	// What the transcript last showed, for scroll-to-latest
	shownSession   string
	shownMessages  int
	shownStreaming bool

	starter int

	backendURL  string
	healthKnown bool
	healthErr   error
	notice      string
}

// New creates a UI bound to store. It subscribes immediately; call Close
// when the program exits.
func New(ctx context.Context, store *session.Store, sender Sender, pinger Pinger, opts Options) Model {
	opts.setDefaults()

	ta := textarea.New()
	ta.Placeholder = "Ask a research question..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	theme := styles.NewTheme()
	sp.Style = theme.Spinner

	updates, unsubscribe := store.Subscribe()

	return Model{
		ctx:         ctx,
		store:       store,
		sender:      sender,
		pinger:      pinger,
		opts:        opts,
		theme:       theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     sp,
		input:       ta,
		vp:          viewport.New(0, 0),
		snap:        store.Snapshot(),
		updates:     updates,
		unsubscribe: unsubscribe,
		sidebarOpen: opts.SidebarOpen,
		limiter:     rate.NewLimiter(rate.Limit(opts.RedrawPerSec), 1),
		backendURL:  opts.BackendURL,
	}
}

// Init starts the subscription pump, the spinner and the health probe.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.updates),
		m.spinner.Tick,
		textarea.Blink,
		checkHealth(m.ctx, m.pinger, m.opts.HealthTimeout),
	)
}

// Close unsubscribes from the store.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Snapshot returns the snapshot the model last received.
func (m Model) Snapshot() session.Snapshot {
	return m.snap
}

// SidebarOpen reports whether the sidebar is toggled on.
func (m Model) SidebarOpen() bool {
	return m.sidebarOpen
}

// frameInterval is the minimum time between throttled redraws.
func (m Model) frameInterval() time.Duration {
	return time.Second / time.Duration(m.opts.RedrawPerSec)
}

// Program builds the tea.Program for m. Callers keep the program to inject
// messages such as BackendURLMsg with Send. Canceling ctx stops the
// program and abandons any in-flight request, since requests share it.
func Program(ctx context.Context, m Model) *tea.Program {
	return tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
}
