package consultation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"medical-review-assistant/internal/review"
)

type sessionEntry struct {
	mu      sync.Mutex
	session *review.Session
	outbox  []Notification
	closed  bool
}

// Sessions keeps one review session per consultation in memory. Every
// operation on an entry runs under its lock, so a session only ever sees one
// operation at a time. Review state is never persisted.
type Sessions struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*sessionEntry
	log     *logrus.Logger
	now     func() time.Time
}

func NewSessions(logger *logrus.Logger) *Sessions {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sessions{
		entries: make(map[uuid.UUID]*sessionEntry),
		log:     logger,
		now:     time.Now,
	}
}

// Seed starts a fresh review of content, replacing any state held for id.
func (s *Sessions) Seed(id uuid.UUID, content review.Content) {
	e := s.entry(id, content)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Seed(content)
	e.outbox = nil
	e.closed = false
}

// Drop forgets the review of id.
func (s *Sessions) Drop(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// With runs fn against the session of id, creating it from seed when the
// process holds none. It returns the resulting snapshot and the notifications
// raised since the last call.
func (s *Sessions) With(id uuid.UUID, seed review.Content, fn func(*review.Session) error) (review.Snapshot, []Notification, error) {
	e := s.entry(id, seed)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.session.Snapshot(), nil, ErrAlreadyFinalized
	}
	err := fn(e.session)
	notes := e.outbox
	e.outbox = nil
	return e.session.Snapshot(), notes, err
}

// Close runs fn like With and, when it succeeds, retires the session in the
// same critical section. Operations queued behind it fail with
// ErrAlreadyFinalized instead of editing content that is being stored.
func (s *Sessions) Close(id uuid.UUID, seed review.Content, fn func(*review.Session) error) error {
	e := s.entry(id, seed)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrAlreadyFinalized
	}
	if err := fn(e.session); err != nil {
		return err
	}
	e.closed = true
	return nil
}

// Reopen makes a closed session editable again, keeping its content and
// flags. It is a no-op when the process holds no session for id.
func (s *Sessions) Reopen(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = false
}

func (s *Sessions) entry(id uuid.UUID, seed review.Content) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		return e
	}
	e := &sessionEntry{}
	log := s.log.WithField("consultation_id", id)
	e.session = review.NewSession(seed, review.NotifierFunc(func(title, message string) {
		// Raised from inside With, so e.mu is already held.
		e.outbox = append(e.outbox, Notification{Title: title, Message: message, At: s.now().UTC()})
		log.WithField("title", title).Info(message)
	}), s.log)
	s.entries[id] = e
	return e
}
