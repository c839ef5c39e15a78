// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/research-buddy/internal/model"
	"github.com/jeranaias/research-buddy/internal/ui/styles"
	"github.com/jeranaias/research-buddy/internal/util"
)

// failurePrefix marks agent text written for a failed request.
const failurePrefix = "Error: "

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.vp.View(),
		m.theme.InputContainer.Width(max(m.mainWidth()-2, 1)).Render(m.input.View()),
	)

	body := main
	if m.sidebarVisible() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderFooter(),
	)
}

// renderHeader shows the brand, the backend status and request activity.
func (m Model) renderHeader() string {
	left := m.theme.HeaderTitle.Render("Research Buddy")

	var status string
	switch {
	case !m.healthKnown:
		status = m.theme.Timestamp.Render(m.backendURL)
	case m.healthErr != nil:
		status = m.theme.HeaderOffline.Render("[X] backend unreachable")
	default:
		status = m.theme.HeaderOnline.Render("[OK] " + m.backendURL)
	}

	activity := ""
	if m.sender != nil && m.sender.Busy() {
		activity = m.spinner.View() + " " + m.theme.ThinkingText.Render("Researching...")
	}

	line := left + "  " + status
	if activity != "" {
		line += "  " + activity
	}
	return m.theme.Header.Width(m.width).MaxWidth(m.width).MaxHeight(headerHeight).Render(line)
}

// renderFooter shows key help, or the last unexpected send error.
func (m Model) renderFooter() string {
	if m.notice != "" {
		return m.theme.Footer.Render(styles.RenderError(m.notice))
	}
	return m.theme.Footer.Render(m.help.View(m.keys))
}

// =============================================================================
// SIDEBAR
// =============================================================================

// renderSidebar lists sessions newest first, marking the active one and any
// still streaming.
func (m Model) renderSidebar() string {
	width := m.opts.SidebarWidth
	inner := width - 3 // padding and border
	if inner < 4 {
		inner = 4
	}

	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Research Sessions"))
	b.WriteString("\n")

	for _, sess := range m.snap.Sessions {
		b.WriteString(m.sidebarItem(sess, inner))
		b.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(width - 1).
		Height(m.bodyHeight()).
		Render(strings.TrimRight(b.String(), "\n"))
}

// sidebarItem renders one session row fitted to width columns.
func (m Model) sidebarItem(sess model.Session, width int) string {
	marker := "  "
	if sess.HasStreaming() {
		marker = "~ "
	}
	if sess.ID == m.snap.ActiveID {
		marker = "> "
	}

	title := util.SingleLine(sess.Title)
	row := util.PadRight(marker+util.FitWidth(title, width-2), width)

	switch {
	case sess.ID == m.snap.ActiveID:
		return m.theme.SessionItemActive.Render(row)
	case sess.HasStreaming():
		return m.theme.SessionItemBusy.Render(row)
	default:
		return m.theme.SessionItem.Render(row)
	}
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders every message of sess, or the welcome panel.
func (m Model) renderTranscript(sess model.Session, width int) string {
	if width < 10 {
		width = 10
	}
	if len(sess.Messages) == 0 {
		return m.renderWelcome(width)
	}

	parts := make([]string, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		parts = append(parts, m.renderMessage(msg, width))
	}
	return strings.Join(parts, "\n\n")
}

// renderMessage renders a label line and a bubble.
func (m Model) renderMessage(msg model.Message, width int) string {
	stamp := m.theme.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))
	bubbleWidth := width - 2

	if msg.Role == model.RoleUser {
		label := m.theme.UserLabel.Render(msg.Role.DisplayName()) + " " + stamp
		return label + "\n" + m.theme.UserBubble.Width(bubbleWidth).Render(msg.Text)
	}

	label := m.theme.AgentLabel.Render(msg.Role.DisplayName()) + " " + stamp
	text := model.CleanText(msg.Text)

	switch {
	case msg.IsStreaming && text == "":
		return label + "\n" + m.theme.AgentBubble.Width(bubbleWidth).Render(
			m.theme.ThinkingText.Render("Researching..."))
	case !msg.IsStreaming && strings.HasPrefix(msg.Text, failurePrefix):
		return label + "\n" + m.theme.ErrorBubble.Width(bubbleWidth).Render(text)
	}

	bubble := m.theme.AgentBubble.Width(bubbleWidth).Render(text)
	if msg.IsStreaming {
		return label + "\n" + bubble
	}
	if sources := m.renderSources(msg.GroundingMetadata); sources != "" {
		bubble += "\n" + sources
	}
	return label + "\n" + bubble
}

// renderSources lists citations that have a URI.
func (m Model) renderSources(meta *model.GroundingMetadata) string {
	sources := meta.Sources()
	if len(sources) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.SourcesTitle.Render("Sources"))
	for _, src := range sources {
		b.WriteString("\n")
		b.WriteString(m.theme.SourceItem.Render(fmt.Sprintf("[%d] %s ", src.Index, src.Title)))
		b.WriteString(m.theme.SourceLink.Render(src.URI))
	}
	return b.String()
}

// renderWelcome shows the empty-session panel with starter prompts.
func (m Model) renderWelcome(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.WelcomeTitle.Render("Ready to Research"))
	b.WriteString("\n")
	b.WriteString(m.theme.WelcomeText.Width(width).Render(
		"Ask me to find information, compare products, or summarize recent events."))
	b.WriteString("\n\n")

	for i, q := range Starters {
		style := m.theme.Starter
		if i == m.starter {
			style = m.theme.StarterActive
		}
		b.WriteString(style.Render(util.FitWidth(fmt.Sprintf("%q", q), width-4)))
		b.WriteString("\n")
	}
	b.WriteString(m.theme.WelcomeText.Render("Tab to pick a suggestion, Enter to send it."))
	return b.String()
}
