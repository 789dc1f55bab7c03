package review

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Notifier receives the user-facing feedback raised by Commit and Cancel.
type Notifier interface {
	Notify(title, message string)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(title, message string)

func (f NotifierFunc) Notify(title, message string) { f(title, message) }

// Session tracks the clinician review of one consultation document.
//
// committed is the single rollback checkpoint shared by all sections: it is
// overwritten with the full current content by every BeginEdit and Commit.
// A Session is not safe for concurrent use; callers serialise access.
type Session struct {
	current   Content
	committed Content
	editing   map[SectionID]bool
	validated map[SectionID]bool

	notifier Notifier
	log      *logrus.Logger
}

// NewSession returns a session seeded from src.
func NewSession(src Content, notifier Notifier, logger *logrus.Logger) *Session {
	if notifier == nil {
		notifier = NotifierFunc(func(string, string) {})
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Session{notifier: notifier, log: logger}
	s.Seed(src)
	return s
}

// Seed replaces every section with src and clears all flags.
func (s *Session) Seed(src Content) {
	s.current = src.Clone()
	s.committed = src.Clone()
	s.editing = make(map[SectionID]bool, len(Sections))
	s.validated = make(map[SectionID]bool, len(Sections))
}

func (s *Session) BeginEdit(section SectionID) error {
	if !section.Valid() {
		return fieldError(section, "")
	}
	s.committed = s.current.Clone()
	s.editing[section] = true
	return nil
}

func (s *Session) SetField(section SectionID, field, value string) error {
	p, err := s.current.scalar(section, field)
	if err != nil {
		return err
	}
	*p = value
	s.touch(section)
	return nil
}

func (s *Session) SetListItem(section SectionID, field string, index int, value string) error {
	p, err := s.current.list(section, field)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(*p) {
		s.outOfRange("set", section, field, index, len(*p))
		return nil
	}
	(*p)[index] = value
	s.touch(section)
	return nil
}

// AddListItem appends an empty entry to the named list.
func (s *Session) AddListItem(section SectionID, field string) error {
	p, err := s.current.list(section, field)
	if err != nil {
		return err
	}
	*p = append(*p, "")
	s.touch(section)
	return nil
}

// RemoveListItem deletes the entry at index. An index outside the list is
// ignored.
func (s *Session) RemoveListItem(section SectionID, field string, index int) error {
	p, err := s.current.list(section, field)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(*p) {
		s.outOfRange("remove", section, field, index, len(*p))
		return nil
	}
	items := make([]string, 0, len(*p)-1)
	items = append(items, (*p)[:index]...)
	*p = append(items, (*p)[index+1:]...)
	s.touch(section)
	return nil
}

// Commit makes the current content the new rollback checkpoint for every
// section and leaves edit mode. A freshly committed section is never
// validated.
func (s *Session) Commit(section SectionID) error {
	if err := s.requireEditing(section); err != nil {
		return err
	}
	s.committed = s.current.Clone()
	s.editing[section] = false
	s.validated[section] = false
	s.notifier.Notify("Changes saved", fmt.Sprintf("%s section has been updated.", section.Label()))
	return nil
}

// Cancel restores the section from the rollback checkpoint and leaves edit
// mode. The validated flag is kept.
func (s *Session) Cancel(section SectionID) error {
	if err := s.requireEditing(section); err != nil {
		return err
	}
	s.current.restore(section, s.committed)
	s.editing[section] = false
	s.notifier.Notify("Changes cancelled", fmt.Sprintf("Edits to the %s section were discarded.", section.Label()))
	return nil
}

// ToggleValidated flips the clinician sign-off flag. It is not gated on edit
// mode.
func (s *Session) ToggleValidated(section SectionID) error {
	if !section.Valid() {
		return fieldError(section, "")
	}
	s.validated[section] = !s.validated[section]
	return nil
}

func (s *Session) ValidatedCount() int {
	n := 0
	for _, id := range Sections {
		if s.validated[id] {
			n++
		}
	}
	return n
}

func (s *Session) IsFullyValidated() bool {
	return s.ValidatedCount() == len(Sections)
}

// Current returns a copy of the content being reviewed.
func (s *Session) Current() Content { return s.current.Clone() }

// Committed returns a copy of the rollback checkpoint.
func (s *Session) Committed() Content { return s.committed.Clone() }

func (s *Session) Editing(section SectionID) bool { return s.editing[section] }

func (s *Session) Validated(section SectionID) bool { return s.validated[section] }

// SectionState is the per-section flag pair exposed for rendering.
type SectionState struct {
	ID        SectionID `json:"id"`
	Label     string    `json:"label"`
	Editing   bool      `json:"editing"`
	Validated bool      `json:"validated"`
}

type Snapshot struct {
	Current        Content        `json:"current"`
	Committed      Content        `json:"committed"`
	Sections       []SectionState `json:"sections"`
	ValidatedCount int            `json:"validated_count"`
	FullyValidated bool           `json:"fully_validated"`
}

func (s *Session) Snapshot() Snapshot {
	states := make([]SectionState, 0, len(Sections))
	for _, id := range Sections {
		states = append(states, SectionState{
			ID:        id,
			Label:     id.Label(),
			Editing:   s.editing[id],
			Validated: s.validated[id],
		})
	}
	return Snapshot{
		Current:        s.Current(),
		Committed:      s.Committed(),
		Sections:       states,
		ValidatedCount: s.ValidatedCount(),
		FullyValidated: s.IsFullyValidated(),
	}
}

// touch records a content mutation: sign-off no longer applies.
func (s *Session) touch(section SectionID) {
	s.validated[section] = false
}

func (s *Session) requireEditing(section SectionID) error {
	if !section.Valid() {
		return fieldError(section, "")
	}
	if !s.editing[section] {
		return fmt.Errorf("%w: %s", ErrNotEditing, section)
	}
	return nil
}

func (s *Session) outOfRange(op string, section SectionID, field string, index, length int) {
	s.log.WithFields(logrus.Fields{
		"op":      op,
		"section": section,
		"field":   field,
		"index":   index,
		"length":  length,
		"error":   ErrIndexOutOfRange,
	}).Debug("Ignoring list operation outside bounds")
}
