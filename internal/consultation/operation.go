package consultation

import (
	"errors"
	"fmt"

	"medical-review-assistant/internal/review"
)

var ErrInvalidOperation = errors.New("invalid review operation")

const (
	OpBeginEdit       = "begin_edit"
	OpSetField        = "set_field"
	OpSetItem         = "set_item"
	OpAddItem         = "add_item"
	OpRemoveItem      = "remove_item"
	OpCommit          = "commit"
	OpCancel          = "cancel"
	OpToggleValidated = "toggle_validated"
)

// Operation is one clinician action on the review document, as sent by the UI.
type Operation struct {
	Op      string `json:"op"`
	Section string `json:"section"`
	Field   string `json:"field,omitempty"`
	Index   *int   `json:"index,omitempty"`
	Value   string `json:"value,omitempty"`
}

func (o Operation) Apply(s *review.Session) error {
	section, err := review.ParseSectionID(o.Section)
	if err != nil {
		return err
	}

	switch o.Op {
	case OpBeginEdit:
		return s.BeginEdit(section)
	case OpSetField:
		return s.SetField(section, o.Field, o.Value)
	case OpSetItem:
		if o.Index == nil {
			return fmt.Errorf("%w: %s requires an index", ErrInvalidOperation, o.Op)
		}
		return s.SetListItem(section, o.Field, *o.Index, o.Value)
	case OpAddItem:
		return s.AddListItem(section, o.Field)
	case OpRemoveItem:
		if o.Index == nil {
			return fmt.Errorf("%w: %s requires an index", ErrInvalidOperation, o.Op)
		}
		return s.RemoveListItem(section, o.Field, *o.Index)
	case OpCommit:
		return s.Commit(section)
	case OpCancel:
		return s.Cancel(section)
	case OpToggleValidated:
		return s.ToggleValidated(section)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, o.Op)
	}
}
