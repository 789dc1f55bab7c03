package review

import "errors"

var (
	// ErrInvalidSectionReference is returned when an operation names a section
	// or field outside the document schema. No state is changed.
	ErrInvalidSectionReference = errors.New("invalid section reference")

	// ErrIndexOutOfRange classifies list operations whose index is outside the
	// current bounds. Sessions swallow it and leave the content untouched.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNotEditing is returned by Commit and Cancel when the section is not in
	// edit mode.
	ErrNotEditing = errors.New("section is not in edit mode")
)
