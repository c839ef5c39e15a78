// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the research-buddy TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

  - Purple - agent messages and selections
  - Cyan - brand, prompts and user messages
  - Emerald - reachable backend, completed responses
  - Amber - in-flight requests
  - Rose - failures

Status text always carries an ASCII indicator ([OK], [X]) next to the color.

# Theme (theme.go)

Theme groups the styles for the header, the session sidebar, the transcript,
the welcome panel with starter prompts, and the input area:

	theme := styles.NewTheme()
	title := theme.HeaderTitle.Render("research-buddy")
*/
package styles
