// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jeranaias/research-buddy/internal/research"
	"github.com/jeranaias/research-buddy/internal/session"
	"github.com/jeranaias/research-buddy/internal/util"
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's position in the request lifecycle.
type State int32

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Guard errors. A rejected call has changed nothing; the UI ignores them.
var (
	ErrBusy            = errors.New("a research request is already in flight")
	ErrNoActiveSession = errors.New("no active session")
	ErrEmptyQuery      = errors.New("query is empty")
)

// errStreamComplete stops the read loop after a complete record.
var errStreamComplete = errors.New("stream complete")

// maxLoggedLine bounds how much of a malformed line is logged.
const maxLoggedLine = 200

// =============================================================================
// CONTROLLER
// =============================================================================

// Researcher opens a research stream. *research.Client implements it.
type Researcher interface {
	Research(ctx context.Context, query string) (*research.StreamReader, error)
}

// Result describes how one request ended.
type Result struct {
	SessionID      string
	UserMessageID  string
	AgentMessageID string

	// State is StateCompleted or StateFailed.
	State State

	// Text is the agent message's final text.
	Text string

	// Err is the failure cause when State is StateFailed.
	Err error

	Duration time.Duration
}

// Controller drives one research request at a time from the user's text to
// a finalized agent message.
type Controller struct {
	store  *session.Store
	client Researcher
	logger *zap.Logger

	inflight *semaphore.Weighted
	state    atomic.Int32
	wg       sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a controller that writes into store and reads from client.
func New(store *session.Store, client Researcher, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		client:   client,
		logger:   zap.NewNop(),
		inflight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool {
	s := c.State()
	return s == StateSending || s == StateStreaming
}

// SendMessage sends text as a query in the active session and blocks until
// the response ends. Request failures are recorded on the agent message and
// reported in Result; the returned error is only ever a guard error.
func (c *Controller) SendMessage(ctx context.Context, text string) (Result, error) {
	req, err := c.begin(text)
	if err != nil {
		return Result{}, err
	}
	return c.stream(ctx, req), nil
}

// Go is the non-blocking form of SendMessage. The guard and the two message
// appends happen before Go returns, so a second call while streaming is
// rejected with ErrBusy. done, if non-nil, is called with the result from
// the streaming goroutine.
func (c *Controller) Go(ctx context.Context, text string, done func(Result)) error {
	req, err := c.begin(text)
	if err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := c.stream(ctx, req)
		if done != nil {
			done(res)
		}
	}()
	return nil
}

// Wait blocks until every request started with Go has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// request is an accepted send that has its messages in place.
type request struct {
	query     string
	sessionID string
	userID    string
	agentID   string
	started   time.Time
}

// begin applies the entry guard and performs the Sending phase appends. On
// success the caller owns the in-flight slot and must pass req to stream.
func (c *Controller) begin(text string) (*request, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if !c.inflight.TryAcquire(1) {
		return nil, ErrBusy
	}

	sessionID := c.store.ActiveID()
	if sessionID == "" {
		c.inflight.Release(1)
		return nil, ErrNoActiveSession
	}

	c.setState(StateSending)

	userID, err := c.store.AppendUserMessage(sessionID, query)
	if err != nil {
		c.setState(StateIdle)
		c.inflight.Release(1)
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}

	agentID := uuid.NewString()
	if err := c.store.AppendAgentPlaceholder(sessionID, agentID); err != nil {
		c.setState(StateIdle)
		c.inflight.Release(1)
		return nil, fmt.Errorf("failed to append agent placeholder: %w", err)
	}

	return &request{
		query:     query,
		sessionID: sessionID,
		userID:    userID,
		agentID:   agentID,
		started:   time.Now(),
	}, nil
}

// stream runs the Sending and Streaming phases. The deferred block always
// finalizes the agent message and frees the in-flight slot, even on panic.
func (c *Controller) stream(ctx context.Context, req *request) (res Result) {
	res = Result{
		SessionID:      req.sessionID,
		UserMessageID:  req.userID,
		AgentMessageID: req.agentID,
	}
	log := c.logger.With(zap.String("session", req.sessionID), zap.String("message", req.agentID))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("unexpected failure: %v", r)
			log.Error("research request panicked", zap.Any("panic", r))
			c.fail(log, req, err)
			res.State, res.Err = StateFailed, err
		}

		if err := c.store.FinalizeAgentMessage(req.sessionID, req.agentID); err != nil {
			log.Error("failed to finalize agent message", zap.Error(err))
		}
		if sess, ok := c.store.Snapshot().Session(req.sessionID); ok {
			if msg, ok := sess.Message(req.agentID); ok {
				res.Text = msg.Text
			}
		}
		res.Duration = time.Since(req.started)

		c.setState(res.State)
		log.Info("research request finished",
			zap.String("outcome", res.State.String()),
			zap.Duration("duration", res.Duration),
			zap.Int("text_len", len(res.Text)),
			zap.Error(res.Err))

		c.setState(StateIdle)
		c.inflight.Release(1)
	}()

	log.Info("research request started", zap.Int("query_len", len(req.query)))

	if err := c.run(ctx, log, req); err != nil {
		c.fail(log, req, err)
		res.State, res.Err = StateFailed, err
		return res
	}
	res.State = StateCompleted
	return res
}

// run issues the request and folds the stream into the agent message.
func (c *Controller) run(ctx context.Context, log *zap.Logger, req *request) error {
	stream, err := c.client.Research(ctx, req.query)
	if err != nil {
		return err
	}
	defer stream.Close()

	c.setState(StateStreaming)
	acc := research.NewAccumulator()

	err = stream.Process(ctx, func(line string) error {
		rec, err := research.ParseRecord(line)
		if errors.Is(err, research.ErrEmptyLine) {
			return nil
		}
		if err != nil {
			log.Warn("skipping malformed record",
				zap.String("line", util.TruncateTitle(line, maxLoggedLine)),
				zap.Error(err))
			return nil
		}

		delta, ok := acc.Fold(rec)
		if !ok {
			if rec.Kind() == research.KindUnrecognized {
				log.Debug("ignoring unrecognized record", zap.String("type", rec.(research.UnrecognizedRecord).Type))
			}
			return nil
		}
		if delta.Err != nil {
			return delta.Err
		}

		patch := session.ContentPatch(delta.Text, delta.Metadata)
		if delta.Terminal {
			patch = session.CompletePatch(delta.Metadata)
		}
		if err := c.store.PatchAgentMessage(req.sessionID, req.agentID, patch); err != nil {
			log.Error("failed to patch agent message", zap.Error(err))
		}
		if delta.Terminal {
			return errStreamComplete
		}
		return nil
	})

	if rem := stream.Remainder(); rem != "" {
		log.Warn("dropping unterminated trailing line", zap.Int("bytes", len(rem)))
	}
	if errors.Is(err, errStreamComplete) {
		return nil
	}
	return err
}

// fail overwrites the agent message with the formatted error.
func (c *Controller) fail(log *zap.Logger, req *request, err error) {
	if err := c.store.PatchAgentMessage(req.sessionID, req.agentID, session.FailurePatch(err.Error())); err != nil {
		log.Error("failed to record failure on agent message", zap.Error(err))
	}
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}
