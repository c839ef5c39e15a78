// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for research sessions and messages.
package model

import (
	"encoding/json"
	"strings"
)

var escapeReplacer = strings.NewReplacer(
	`\n`, "\n",
	`\t`, "\t",
	`\r`, "\r",
	`\/`, "/",
	`\"`, `"`,
)

// CleanText prepares agent text for display. Some upstream models return the
// article as a JSON string literal or with escape sequences left in; those
// are decoded here. Stored text is never rewritten.
func CleanText(text string) string {
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(text), &unquoted); err == nil {
			text = unquoted
		}
	}
	return escapeReplacer.Replace(text)
}
