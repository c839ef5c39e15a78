// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"strings"

	"github.com/jeranaias/research-buddy/internal/model"
)

// SummarySeparator is inserted between the article body and the summary.
const SummarySeparator = "\n\n---\n\n## Summary\n\n"

// =============================================================================
// RESPONSE ACCUMULATOR
// =============================================================================

// Delta is the change a record makes to the agent message.
type Delta struct {
	// Text is the full accumulated text after the record.
	Text string

	// Metadata is the latest grounding metadata. It is a private copy.
	Metadata *model.GroundingMetadata

	// Streaming is false once the response has completed.
	Streaming bool

	// Terminal is true for records that end the stream (complete or error).
	Terminal bool

	// Err is set for backend-reported errors.
	Err error
}

// StreamError is a failure reported by the backend inside the stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// Accumulator folds records into the evolving text and metadata of one
// response. An Accumulator is used for a single stream and is not safe for
// concurrent use.
type Accumulator struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	text     strings.Builder
	metadata *model.GroundingMetadata
	done     bool
}

// NewAccumulator returns an accumulator with empty text and empty metadata.
func NewAccumulator() *Accumulator {
	return &Accumulator{metadata: &model.GroundingMetadata{}}
}

// Fold applies rec. The boolean reports whether the agent message should be
// patched with the returned Delta; metadata and unrecognized records only
// update internal state.
func (a *Accumulator) Fold(rec Record) (Delta, bool) {
	switch r := rec.(type) {
	case MetadataRecord:
		a.metadata = &model.GroundingMetadata{
			Topic:            r.Topic,
			Field:            r.Field,
			FetchedData:      r.FetchedData,
			SelectedArticles: r.SelectedArticles,
		}
		a.metadata = a.metadata.Clone()
		return Delta{}, false

	case ArticleRecord:
		a.text.WriteString(r.Text)
		return a.delta(true, false), true

	case SummaryRecord:
		a.text.WriteString(SummarySeparator)
		a.text.WriteString(r.Text)
		return a.delta(true, false), true

	case CompleteRecord:
		a.done = true
		return a.delta(false, true), true

	case ErrorRecord:
		a.done = true
		d := a.delta(false, true)
		d.Err = &StreamError{Message: r.Message}
		return d, true
	}
	return Delta{}, false
}

// Text returns the accumulated text.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Metadata returns a copy of the latest metadata.
func (a *Accumulator) Metadata() *model.GroundingMetadata {
	return a.metadata.Clone()
}

// Done reports whether a terminal record has been folded.
func (a *Accumulator) Done() bool {
	return a.done
}

func (a *Accumulator) delta(streaming, terminal bool) Delta {
	return Delta{
		Text:      a.text.String(),
		Metadata:  a.metadata.Clone(),
		Streaming: streaming,
		Terminal:  terminal,
	}
}
