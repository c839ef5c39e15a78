// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/research-buddy/internal/controller"
	"github.com/jeranaias/research-buddy/internal/model"
	"github.com/jeranaias/research-buddy/internal/session"
	"github.com/jeranaias/research-buddy/internal/ui/styles"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes the growth of one agent message to a writer as store
// snapshots arrive. Only appended text is printed; a replaced text (the
// failure message) is left to the caller.
type streamPrinter struct {
	out       io.Writer
	sessionID string
	messageID string
	consumed  string
	wrote     bool
}

// show prints whatever msg gained since the last call.
func (p *streamPrinter) show(snap session.Snapshot) {
	sess, ok := snap.Session(p.sessionID)
	if !ok {
		return
	}
	msg, ok := sess.Message(p.messageID)
	if !ok || !strings.HasPrefix(msg.Text, p.consumed) {
		return
	}

	pending := msg.Text[len(p.consumed):]
	// Hold back a lone trailing backslash so a split escape decodes whole.
	if msg.IsStreaming && strings.HasSuffix(pending, `\`) {
		pending = pending[:len(pending)-1]
	}
	if pending == "" {
		return
	}
	fmt.Fprint(p.out, model.CleanText(pending))
	p.consumed += pending
	p.wrote = true
}

// finish ends the output line and, for a completed answer, lists sources.
func (p *streamPrinter) finish(snap session.Snapshot, res controller.Result) {
	if p.wrote && !strings.HasSuffix(p.consumed, "\n") {
		fmt.Fprintln(p.out)
	}
	if res.State != controller.StateCompleted {
		return
	}

	sess, _ := snap.Session(p.sessionID)
	msg, _ := sess.Message(p.messageID)
	sources := msg.GroundingMetadata.Sources()
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, titleStyle.Render("Sources"))
	for _, src := range sources {
		fmt.Fprintf(p.out, "  [%d] %s %s\n", src.Index, src.Title, styles.RenderLink(src.URI))
	}
}

// runQuery sends query through the controller into the active session and
// streams the answer to out. It returns the request result; guard errors
// are returned as errors.
func runQuery(ctx context.Context, a *app, out io.Writer, query string) (controller.Result, error) {
	updates, unsubscribe := a.store.Subscribe()
	defer unsubscribe()

	done := make(chan controller.Result, 1)
	if err := a.ctrl.Go(ctx, query, func(res controller.Result) { done <- res }); err != nil {
		return controller.Result{}, err
	}

	// Go appended the placeholder before returning, so it is the active
	// session's last message.
	active, _ := a.store.ActiveSession()
	placeholder, _ := active.LastMessage()
	p := &streamPrinter{out: out, sessionID: active.ID, messageID: placeholder.ID}

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			p.show(snap)
		case res := <-done:
			snap := a.store.Snapshot()
			p.show(snap)
			p.finish(snap, res)
			return res, nil
		}
	}
}
