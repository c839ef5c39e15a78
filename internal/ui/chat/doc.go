// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea terminal UI for research-buddy.

The model never owns conversation state. It subscribes to a session.Store
and renders whatever snapshot arrives last, and it sends queries through a
controller.Controller. Layout:

	┌ header: title, backend status, request state ─────────────┐
	│ sidebar: sessions │ transcript viewport                   │
	│  (newest first)   │  (welcome panel + starters when empty)│
	│                   ├───────────────────────────────────────┤
	│                   │ input                                 │
	└ footer: key help ─────────────────────────────────────────┘

While a response streams the store may publish many snapshots per second.
Transcript rebuilds are capped by a rate limiter; the last snapshot is
always drawn once its frame is due.

# Key Bindings

	Enter        send the query (or the highlighted starter)
	Tab          cycle starter prompts in an empty session
	Ctrl+N       new session
	Alt+Up/Down  previous/next session
	Ctrl+B       toggle the sidebar
	PgUp/PgDn    scroll the transcript
	F1           toggle full help
	Ctrl+C/Esc   quit
*/
package chat
