// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/research-buddy/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// StoreError represents a session store error.
// It can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = &StoreError{Message: "session not found"}

	// ErrMessageNotFound is returned for an unknown message id.
	ErrMessageNotFound = &StoreError{Message: "message not found"}

	// ErrNotAgentMessage is returned when patching a user message.
	ErrNotAgentMessage = &StoreError{Message: "message is not an agent message"}

	// ErrDuplicateMessage is returned when a placeholder id is already used.
	ErrDuplicateMessage = &StoreError{Message: "message id already exists"}
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable view of the store. Sessions are newest first.
// Consecutive snapshots share unchanged sessions and messages, so callers
// must treat the contents as read-only.
type Snapshot struct {
	Sessions []model.Session
	ActiveID string

	// Version increases by one with every published change.
	Version uint64
}

// Session returns the session with id.
func (s Snapshot) Session(id string) (model.Session, bool) {
	for _, sess := range s.Sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return model.Session{}, false
}

// Active returns the active session.
func (s Snapshot) Active() (model.Session, bool) {
	if s.ActiveID == "" {
		return model.Session{}, false
	}
	return s.Session(s.ActiveID)
}

// Streaming reports whether any message in any session is still streaming.
func (s Snapshot) Streaming() bool {
	for _, sess := range s.Sessions {
		if sess.HasStreaming() {
			return true
		}
	}
	return false
}

// =============================================================================
// PATCH
// =============================================================================

// Patch lists the fields PatchAgentMessage replaces. Nil fields are left
// untouched.
type Patch struct {
	Text              *string
	GroundingMetadata *model.GroundingMetadata
	IsStreaming       *bool
}

// ContentPatch replaces text and metadata.
func ContentPatch(text string, meta *model.GroundingMetadata) Patch {
	return Patch{Text: &text, GroundingMetadata: meta}
}

// CompletePatch ends streaming and attaches the final metadata.
func CompletePatch(meta *model.GroundingMetadata) Patch {
	streaming := false
	return Patch{IsStreaming: &streaming, GroundingMetadata: meta}
}

// FailurePatch overwrites the text with a formatted error.
func FailurePatch(message string) Patch {
	text := "Error: " + message
	streaming := false
	return Patch{Text: &text, IsStreaming: &streaming}
}

func (p Patch) apply(msg model.Message) model.Message {
	if p.Text != nil {
		msg.Text = *p.Text
	}
	if p.GroundingMetadata != nil {
		msg.GroundingMetadata = p.GroundingMetadata.Clone()
	}
	if p.IsStreaming != nil {
		msg.IsStreaming = *p.IsStreaming
	}
	return msg
}

// =============================================================================
// PERSISTENCE HOOKS
// =============================================================================

// Persister stores the full session list after every change.
type Persister interface {
	Save(sessions []model.Session) error
}

// Loader returns the persisted session list at startup.
type Loader interface {
	Load() ([]model.Session, error)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the single source of truth for sessions and messages.
//
// Every mutation builds a new Snapshot and publishes it to subscribers;
// published snapshots are never modified. The Store is safe for concurrent
// use.
type Store struct {
	mu     sync.RWMutex
	snap   Snapshot
	subs   map[int]chan Snapshot
	nextID int
	closed bool

	persistMu sync.Mutex
	persister Persister
	logger    *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersister saves the session list after every change.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns an empty store with no active session.
func NewStore(opts ...Option) *Store {
	s := &Store{
		subs:   make(map[int]chan Snapshot),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap installs the persisted sessions from loader and activates the
// newest. An absent, empty or unreadable list starts a fresh session
// instead. Messages left streaming by a previous run are finalized.
// It returns the active session id.
func (s *Store) Bootstrap(loader Loader) string {
	var restored []model.Session
	if loader != nil {
		sessions, err := loader.Load()
		if err != nil {
			s.logger.Info("discarding persisted sessions", zap.Error(err))
		} else {
			restored = sessions
		}
	}

	if len(restored) == 0 {
		s.logger.Info("no persisted sessions, starting fresh")
		return s.CreateSession()
	}

	repaired := false
	sessions := make([]model.Session, len(restored))
	for i, sess := range restored {
		if sess.HasStreaming() {
			sess = clearStreaming(sess)
			repaired = true
		}
		sessions[i] = sess
	}

	s.mu.Lock()
	s.publishLocked(sessions, sessions[0].ID)
	s.mu.Unlock()

	s.logger.Info("restored sessions", zap.Int("count", len(sessions)), zap.Bool("repaired", repaired))
	if repaired {
		s.persist()
	}
	return sessions[0].ID
}

// CreateSession inserts a new empty session at the front and makes it
// active.
func (s *Store) CreateSession() string {
	sess := model.NewSession()

	s.mu.Lock()
	sessions := make([]model.Session, 0, len(s.snap.Sessions)+1)
	sessions = append(sessions, sess)
	sessions = append(sessions, s.snap.Sessions...)
	s.publishLocked(sessions, sess.ID)
	s.mu.Unlock()

	s.persist()
	return sess.ID
}

// SelectSession switches the active session. It reports false, changing
// nothing, for an unknown id. The active pointer is not persisted.
func (s *Store) SelectSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOf(s.snap.Sessions, id) < 0 {
		return false
	}
	if s.snap.ActiveID != id {
		s.publishLocked(s.snap.Sessions, id)
	}
	return true
}

// AppendUserMessage appends a user message to the session. The first
// message of a session fixes its title. It returns the new message id.
func (s *Store) AppendUserMessage(sessionID, text string) (string, error) {
	msg := model.NewUserMessage(text)
	err := s.update(sessionID, func(sess model.Session) (model.Session, bool, error) {
		return sess.WithMessage(msg), true, nil
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// AppendAgentPlaceholder appends an empty streaming agent message with the
// caller's id.
func (s *Store) AppendAgentPlaceholder(sessionID, messageID string) error {
	return s.update(sessionID, func(sess model.Session) (model.Session, bool, error) {
		if sess.IndexOf(messageID) >= 0 {
			return sess, false, ErrDuplicateMessage
		}
		return sess.WithMessage(model.NewAgentPlaceholder(messageID)), true, nil
	})
}

// PatchAgentMessage replaces the non-nil fields of p on the agent message.
// All other messages and sessions are untouched.
func (s *Store) PatchAgentMessage(sessionID, messageID string, p Patch) error {
	return s.update(sessionID, func(sess model.Session) (model.Session, bool, error) {
		i := sess.IndexOf(messageID)
		if i < 0 {
			return sess, false, ErrMessageNotFound
		}
		msg := sess.Messages[i]
		if msg.Role != model.RoleAgent {
			return sess, false, ErrNotAgentMessage
		}
		return sess.WithReplaced(i, p.apply(msg)), true, nil
	})
}

// FinalizeAgentMessage marks the agent message as no longer streaming. It
// is safe to call more than once.
func (s *Store) FinalizeAgentMessage(sessionID, messageID string) error {
	return s.update(sessionID, func(sess model.Session) (model.Session, bool, error) {
		i := sess.IndexOf(messageID)
		if i < 0 {
			return sess, false, ErrMessageNotFound
		}
		msg := sess.Messages[i]
		if !msg.IsStreaming {
			return sess, false, nil
		}
		msg.IsStreaming = false
		return sess.WithReplaced(i, msg), true, nil
	})
}

// Snapshot returns the current state. The Sessions slice is a fresh copy.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.copy()
}

// ActiveSession returns the active session.
func (s *Store) ActiveSession() (model.Session, bool) {
	return s.Snapshot().Active()
}

// ActiveID returns the active session id, or "" before initialization.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.ActiveID
}

// Subscribe returns a channel that receives the current snapshot and then
// every later one. A slow reader only ever sees the latest snapshot. Call
// the returned function to unsubscribe; it closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.snap.copy()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close unsubscribes every observer. Mutations still work afterwards but
// are no longer broadcast.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// =============================================================================
// INTERNALS
// =============================================================================

// update applies fn to one session and publishes the result if fn reports a
// change.
func (s *Store) update(sessionID string, fn func(model.Session) (model.Session, bool, error)) error {
	s.mu.Lock()
	i := indexOf(s.snap.Sessions, sessionID)
	if i < 0 {
		s.mu.Unlock()
		return ErrSessionNotFound
	}

	next, changed, err := fn(s.snap.Sessions[i])
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}

	sessions := make([]model.Session, len(s.snap.Sessions))
	copy(sessions, s.snap.Sessions)
	sessions[i] = next
	s.publishLocked(sessions, s.snap.ActiveID)
	s.mu.Unlock()

	s.persist()
	return nil
}

// publishLocked installs a new snapshot and offers it to every subscriber,
// replacing any snapshot they have not read yet. Caller holds s.mu.
func (s *Store) publishLocked(sessions []model.Session, activeID string) {
	s.snap = Snapshot{
		Sessions: sessions,
		ActiveID: activeID,
		Version:  s.snap.Version + 1,
	}
	for _, ch := range s.subs {
		snap := s.snap.copy()
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// persist hands the latest session list to the persister. Writes are
// serialized so the last write always carries the newest state.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := s.Snapshot()
	if err := s.persister.Save(snap.Sessions); err != nil {
		s.logger.Error("failed to persist sessions",
			zap.Error(err),
			zap.Int("sessions", len(snap.Sessions)),
			zap.Uint64("version", snap.Version))
	}
}

func (s Snapshot) copy() Snapshot {
	out := s
	if s.Sessions != nil {
		out.Sessions = make([]model.Session, len(s.Sessions))
		copy(out.Sessions, s.Sessions)
	}
	return out
}

func indexOf(sessions []model.Session, id string) int {
	for i, sess := range sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

func clearStreaming(sess model.Session) model.Session {
	for i, msg := range sess.Messages {
		if msg.IsStreaming {
			msg.IsStreaming = false
			sess = sess.WithReplaced(i, msg)
		}
	}
	return sess
}
