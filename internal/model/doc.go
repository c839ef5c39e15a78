// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for research sessions and messages.
//
// All types here are plain values. The session store never mutates a value
// after handing it out; updates produce new values with one element replaced.
//
// # Key Types
//
//   - Session: a research conversation with an immutable title and ordered messages
//   - Message: one user query or one agent response (streamed in place)
//   - GroundingMetadata: citation/provenance payload attached to agent responses
//   - Role: message sender (user or agent)
//
// # Usage
//
//	s := model.NewSession()
//	s = s.WithMessage(model.NewUserMessage("fusion energy"))
//	fmt.Println(s.Title)
package model
