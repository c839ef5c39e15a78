// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// RecordKind identifies the variant of a parsed line.
type RecordKind string

const (
	KindMetadata     RecordKind = "metadata"
	KindArticle      RecordKind = "article"
	KindSummary      RecordKind = "summary"
	KindError        RecordKind = "error"
	KindComplete     RecordKind = "complete"
	KindUnrecognized RecordKind = "unrecognized"
)

// Record is one decoded line of the research stream. The concrete type is
// one of MetadataRecord, ArticleRecord, SummaryRecord, ErrorRecord,
// CompleteRecord or UnrecognizedRecord.
type Record interface {
	Kind() RecordKind
	record()
}

// MetadataRecord carries grounding information for the response. The data
// fields are kept verbatim.
type MetadataRecord struct {
	Topic            string
	Field            string
	FetchedData      json.RawMessage
	SelectedArticles json.RawMessage
}

// ArticleRecord is a fragment of the article body.
type ArticleRecord struct {
	Text string
}

// SummaryRecord is the closing summary.
type SummaryRecord struct {
	Text string
}

// ErrorRecord is a backend-reported failure.
type ErrorRecord struct {
	Message string
}

// CompleteRecord marks the normal end of the stream.
type CompleteRecord struct{}

// UnrecognizedRecord is a well-formed object whose type is missing or
// unknown. It is ignored by the accumulator.
type UnrecognizedRecord struct {
	Type string
	Raw  json.RawMessage
}

func (MetadataRecord) Kind() RecordKind     { return KindMetadata }
func (ArticleRecord) Kind() RecordKind      { return KindArticle }
func (SummaryRecord) Kind() RecordKind      { return KindSummary }
func (ErrorRecord) Kind() RecordKind        { return KindError }
func (CompleteRecord) Kind() RecordKind     { return KindComplete }
func (UnrecognizedRecord) Kind() RecordKind { return KindUnrecognized }

func (MetadataRecord) record()     {}
func (ArticleRecord) record()      {}
func (SummaryRecord) record()      {}
func (ErrorRecord) record()        {}
func (CompleteRecord) record()     {}
func (UnrecognizedRecord) record() {}

// =============================================================================
// PARSING
// =============================================================================

// ErrEmptyLine is returned for lines that are blank after trimming. Callers
// skip them silently.
var ErrEmptyLine = errors.New("empty line")

// ParseError reports a line that is not a JSON object.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return "malformed record: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// errNotObject is the ParseError cause for valid JSON that is not an object.
var errNotObject = errors.New("not a JSON object")

// wireRecord is the union of every field the backend sends.
type wireRecord struct {
	Type             *string         `json:"type"`
	Text             string          `json:"text"`
	Message          string          `json:"message"`
	Topic            string          `json:"topic"`
	Field            string          `json:"field"`
	FetchedData      json.RawMessage `json:"fetched_data"`
	SelectedArticles json.RawMessage `json:"selected_articles"`
}

// ParseRecord decodes one line. It is pure: the same line always yields an
// equal result.
func ParseRecord(line string) (Record, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, ErrEmptyLine
	}

	raw := []byte(trimmed)
	if raw[0] != '{' {
		if json.Valid(raw) {
			return nil, &ParseError{Line: line, Err: errNotObject}
		}
	}

	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &ParseError{Line: line, Err: err}
	}

	if w.Type == nil {
		return UnrecognizedRecord{Raw: raw}, nil
	}

	switch RecordKind(*w.Type) {
	case KindMetadata:
		return MetadataRecord{
			Topic:            w.Topic,
			Field:            w.Field,
			FetchedData:      nonNull(w.FetchedData),
			SelectedArticles: nonNull(w.SelectedArticles),
		}, nil
	case KindArticle:
		return ArticleRecord{Text: w.Text}, nil
	case KindSummary:
		return SummaryRecord{Text: w.Text}, nil
	case KindError:
		return ErrorRecord{Message: w.Message}, nil
	case KindComplete:
		return CompleteRecord{}, nil
	default:
		return UnrecognizedRecord{Type: *w.Type, Raw: raw}, nil
	}
}

// IsMalformed reports whether err came from a line that failed to parse.
func IsMalformed(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}
