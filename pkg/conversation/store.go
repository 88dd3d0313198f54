package conversation

import (
	"sync"
	"time"

	"github.com/andrew/tutor-chat/pkg/models"
	"github.com/google/uuid"
)

// Store owns the state of a single in-memory conversation session: the
// display timeline, the wire history replayed to the backend and the
// pending flag. It performs no I/O.
//
// The store does not gate concurrent turns. A second AppendUserMessage while
// a reply is pending is accepted; the Dispatcher decides whether to allow it.
type Store struct {
	mu       sync.RWMutex
	messages []models.DisplayMessage
	history  []models.WireTurn
	pending  bool

	now   func() time.Time
	newID func() string

	subMu       sync.Mutex
	subscribers map[int]func(models.Snapshot)
	nextSub     int
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides the message id generator
func WithIDFunc(newID func() string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates an empty session
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		now:         time.Now,
		newID:       newMessageID,
		subscribers: make(map[int]func(models.Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newMessageID returns a time-ordered UUID so ids sort by creation order
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// AppendUserMessage appends a user message and its wire turn, and marks the
// session as awaiting a reply.
func (s *Store) AppendUserMessage(text string) models.DisplayMessage {
	s.mu.Lock()
	msg := s.appendLocked(text, models.OriginUser, false)
	s.history = append(s.history, models.WireTurn{Role: models.RoleUser, Content: text})
	s.pending = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return msg
}

// AppendAssistantMessage appends a backend reply and its wire turn, and
// returns the session to idle.
func (s *Store) AppendAssistantMessage(text string) models.DisplayMessage {
	s.mu.Lock()
	msg := s.appendLocked(text, models.OriginAssistant, false)
	s.history = append(s.history, models.WireTurn{Role: models.RoleAssistant, Content: text})
	s.pending = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return msg
}

// AppendAssistantError appends a failure explanation to the timeline only.
// No wire turn is recorded, so error prose never reaches the backend.
func (s *Store) AppendAssistantError(text string) models.DisplayMessage {
	s.mu.Lock()
	msg := s.appendLocked(text, models.OriginAssistant, true)
	s.pending = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return msg
}

func (s *Store) appendLocked(text string, origin models.Origin, failed bool) models.DisplayMessage {
	msg := models.DisplayMessage{
		ID:        s.newID(),
		Seq:       len(s.messages) + 1,
		Text:      text,
		Timestamp: s.now(),
		Origin:    origin,
		Failed:    failed,
	}
	s.messages = append(s.messages, msg)
	return msg
}

// SnapshotWireHistory returns a copy of the wire history for transmission
func (s *Store) SnapshotWireHistory() []models.WireTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHistory(s.history)
}

// Messages returns a copy of the display timeline
func (s *Store) Messages() []models.DisplayMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

// Pending reports whether a turn is awaiting its reply
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// CurrentMode derives the view mode from the timeline
func (s *Store) CurrentMode() models.ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ModeFor(len(s.messages))
}

// Snapshot returns a value copy of the whole session
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Messages: cloneMessages(s.messages),
		History:  cloneHistory(s.history),
		Pending:  s.pending,
		Mode:     models.ModeFor(len(s.messages)),
	}
}

// Subscribe registers fn to be called with a snapshot after every mutation.
// The returned function removes the subscription.
//
// fn runs on the mutating goroutine, possibly while the Dispatcher holds its
// turn lock: it must not block and must not call back into the Dispatcher.
func (s *Store) Subscribe(fn func(models.Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap models.Snapshot) {
	s.subMu.Lock()
	fns := make([]func(models.Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func cloneMessages(in []models.DisplayMessage) []models.DisplayMessage {
	out := make([]models.DisplayMessage, len(in))
	copy(out, in)
	return out
}

func cloneHistory(in []models.WireTurn) []models.WireTurn {
	out := make([]models.WireTurn, len(in))
	copy(out, in)
	return out
}
