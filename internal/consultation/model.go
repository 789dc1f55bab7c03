package consultation

import (
	"time"

	"github.com/google/uuid"

	"medical-review-assistant/internal/review"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
)

// Patient is the clinical context sent to the model.
type Patient struct {
	Name        string   `json:"name"`
	Age         int      `json:"age,omitempty"`
	Sex         string   `json:"sex,omitempty"`
	Complaint   string   `json:"complaint"`
	History     string   `json:"history,omitempty"`
	Medications []string `json:"medications,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
	Vitals      string   `json:"vitals,omitempty"`
}

// Consultation represents the aggregate root
type Consultation struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PatientID uuid.UUID `json:"patient_id" db:"patient_id"`
	Patient   Patient   `json:"patient" db:"patient"`

	// Model output as received, and the document parsed from it.
	RawOutput string         `json:"raw_output" db:"raw_output"`
	Source    review.Content `json:"source" db:"source"`

	// Clinician validated document, set once on finalize.
	Final *review.Content `json:"final,omitempty" db:"final"`

	Status      Status     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty" db:"finalized_at"`
}

// Notification is a user-facing message raised by the review workflow.
type Notification struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// ReviewState is what the review UI renders after every call.
type ReviewState struct {
	ConsultationID uuid.UUID       `json:"consultation_id"`
	Status         Status          `json:"status"`
	Review         review.Snapshot `json:"review"`
	Notifications  []Notification  `json:"notifications"`
}

type FinalizeResult struct {
	Consultation *Consultation `json:"consultation"`
	ReportSent   bool          `json:"report_sent"`
	ReportError  string        `json:"report_error,omitempty"`
}
