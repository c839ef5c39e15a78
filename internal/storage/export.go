// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/research-buddy/internal/model"
	"github.com/jeranaias/research-buddy/internal/util"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// =============================================================================
// EXPORT DOCUMENT
// =============================================================================

// exportSession is the YAML view of a session. Raw metadata payloads are
// decoded so they render as structure rather than byte lists.
type exportSession struct {
	ID        string          `yaml:"id"`
	Title     string          `yaml:"title"`
	CreatedAt time.Time       `yaml:"created_at"`
	Messages  []exportMessage `yaml:"messages"`
}

type exportMessage struct {
	ID        string          `yaml:"id"`
	Role      string          `yaml:"role"`
	Text      string          `yaml:"text"`
	Timestamp time.Time       `yaml:"timestamp"`
	Streaming bool            `yaml:"streaming,omitempty"`
	Grounding *exportMetadata `yaml:"grounding,omitempty"`
}

type exportMetadata struct {
	Topic            string         `yaml:"topic,omitempty"`
	Field            string         `yaml:"field,omitempty"`
	FetchedData      any            `yaml:"fetched_data,omitempty"`
	SelectedArticles any            `yaml:"selected_articles,omitempty"`
	Sources          []model.Source `yaml:"sources,omitempty"`
}

func toExport(s model.Session) exportSession {
	out := exportSession{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		Messages:  make([]exportMessage, 0, len(s.Messages)),
	}
	for _, m := range s.Messages {
		em := exportMessage{
			ID:        m.ID,
			Role:      m.Role.String(),
			Text:      m.Text,
			Timestamp: m.Timestamp,
			Streaming: m.IsStreaming,
		}
		if g := m.GroundingMetadata; g != nil && !g.IsZero() {
			em.Grounding = &exportMetadata{
				Topic:            g.Topic,
				Field:            g.Field,
				FetchedData:      decodeRaw(g.FetchedData),
				SelectedArticles: decodeRaw(g.SelectedArticles),
				Sources:          g.Sources(),
			}
		}
		out.Messages = append(out.Messages, em)
	}
	return out
}

func decodeRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportJSON returns the sessions pretty-printed in their persisted shape.
func ExportJSON(sessions []model.Session) ([]byte, error) {
	if sessions == nil {
		sessions = []model.Session{}
	}
	return json.MarshalIndent(sessions, "", "  ")
}

// ExportYAML returns the sessions as a YAML document.
func ExportYAML(sessions []model.Session) ([]byte, error) {
	docs := make([]exportSession, 0, len(sessions))
	for _, s := range sessions {
		docs = append(docs, toExport(s))
	}
	return yaml.Marshal(docs)
}

// ExportMarkdown renders one session as a Markdown transcript, with a
// numbered source list under each grounded answer.
func ExportMarkdown(s model.Session) string {
	var sb strings.Builder
	sb.WriteString("# " + s.Title + "\n\n")
	sb.WriteString("Created: " + s.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range s.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "** (" + msg.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(model.CleanText(msg.Text))
		sb.WriteString("\n\n")

		if msg.GroundingMetadata != nil {
			if sources := msg.GroundingMetadata.Sources(); len(sources) > 0 {
				sb.WriteString("Sources:\n\n")
				for _, src := range sources {
					sb.WriteString(strconv.Itoa(src.Index) + ". [" + src.Title + "](" + src.URI + ")\n")
				}
				sb.WriteString("\n")
			}
		}
		sb.WriteString("---\n\n")
	}

	return sb.String()
}

// Export writes sessions to w in format. Markdown concatenates each
// session's transcript.
func Export(w io.Writer, format string, sessions []model.Session) error {
	var data []byte
	var err error

	switch strings.ToLower(format) {
	case FormatJSON, "":
		data, err = ExportJSON(sessions)
		if err == nil {
			data = append(data, '\n')
		}
	case FormatYAML, "yml":
		data, err = ExportYAML(sessions)
	case FormatMarkdown, "md":
		var sb strings.Builder
		for _, s := range sessions {
			sb.WriteString(ExportMarkdown(s))
		}
		data = []byte(sb.String())
	default:
		return fmt.Errorf("unknown export format %q (want json, yaml or markdown)", format)
	}
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList formats sessions for display in a table. The active
// session is marked with "*".
func FormatSessionList(sessions []model.Session, activeID string) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString("Sessions:\n")
	sb.WriteString("-----------------------------------------------------\n")
	sb.WriteString("  " + util.PadRight("ID", 10) + " " + util.PadRight("Created", 17) + " " + util.PadRight("Messages", 8) + " Title\n")
	sb.WriteString("-----------------------------------------------------\n")

	for _, s := range sessions {
		marker := "  "
		if s.ID == activeID {
			marker = "* "
		}
		idStr := s.ID
		if len(idStr) > 8 {
			idStr = idStr[:8]
		}
		sb.WriteString(marker +
			util.PadRight(idStr, 10) + " " +
			util.PadRight(s.CreatedAt.Format("2006-01-02 15:04"), 17) + " " +
			util.PadRight(strconv.Itoa(len(s.Messages)), 8) + " " +
			util.FitWidth(s.Title, 40) + "\n")
	}
	return sb.String()
}
