// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for research sessions and messages.
package model

import (
	"bytes"
	"encoding/json"
)

// UnknownSourceTitle labels a citation whose title is empty.
const UnknownSourceTitle = "Unknown Source"

// =============================================================================
// GROUNDING METADATA
// =============================================================================

// GroundingMetadata is the citation/provenance payload attached to an agent
// message. It is replaced wholesale, never merged field by field.
//
// FetchedData and SelectedArticles are opaque upstream payloads kept verbatim.
type GroundingMetadata struct {
	Topic            string           `json:"topic,omitempty"`
	Field            string           `json:"field,omitempty"`
	FetchedData      json.RawMessage  `json:"fetchedData,omitempty"`
	SelectedArticles json.RawMessage  `json:"selectedArticles,omitempty"`
	GroundingChunks  []GroundingChunk `json:"groundingChunks,omitempty"`
}

// GroundingChunk is one citation candidate.
type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

// WebSource is a web citation.
type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Source is a citation that is meaningful to display: it always has a URI.
type Source struct {
	Index int
	URI   string
	Title string
}

// Clone returns a deep copy of g. A nil receiver yields nil.
func (g *GroundingMetadata) Clone() *GroundingMetadata {
	if g == nil {
		return nil
	}
	c := *g
	c.FetchedData = cloneRaw(g.FetchedData)
	c.SelectedArticles = cloneRaw(g.SelectedArticles)
	if g.GroundingChunks != nil {
		c.GroundingChunks = make([]GroundingChunk, len(g.GroundingChunks))
		for i, ch := range g.GroundingChunks {
			if ch.Web != nil {
				web := *ch.Web
				ch.Web = &web
			}
			c.GroundingChunks[i] = ch
		}
	}
	return &c
}

// IsZero reports whether no field carries data.
func (g *GroundingMetadata) IsZero() bool {
	return g == nil || (g.Topic == "" && g.Field == "" &&
		len(g.FetchedData) == 0 && len(g.SelectedArticles) == 0 &&
		len(g.GroundingChunks) == 0)
}

// Sources lists the citations worth showing, numbered from 1. Grounding
// chunks without a URI are skipped. Selected articles contribute their
// url (or uri) when the payload is a list of objects; any other shape is
// ignored.
func (g *GroundingMetadata) Sources() []Source {
	if g == nil {
		return nil
	}

	var out []Source
	seen := make(map[string]bool)
	add := func(uri, title string) {
		if uri == "" || seen[uri] {
			return
		}
		seen[uri] = true
		if title == "" {
			title = UnknownSourceTitle
		}
		out = append(out, Source{Index: len(out) + 1, URI: uri, Title: title})
	}

	for _, ch := range g.GroundingChunks {
		if ch.Web != nil {
			add(ch.Web.URI, ch.Web.Title)
		}
	}

	if len(g.SelectedArticles) > 0 {
		var articles []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
			URI   string `json:"uri"`
		}
		if err := json.Unmarshal(g.SelectedArticles, &articles); err == nil {
			for _, a := range articles {
				uri := a.URL
				if uri == "" {
					uri = a.URI
				}
				add(uri, a.Title)
			}
		}
	}

	return out
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return bytes.Clone(r)
}
