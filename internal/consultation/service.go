package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"medical-review-assistant/internal/evidence"
	"medical-review-assistant/internal/extract"
	"medical-review-assistant/internal/review"
)

var (
	ErrNotFullyValidated = errors.New("every section must be validated before finalizing")
	ErrAlreadyFinalized  = errors.New("consultation is already finalized")
	ErrEmptyComplaint    = errors.New("patient complaint is required")
)

const evidenceArticleLimit = 5

// AgentClient generates the consultation write-up.
// We define it here to decouple from the specific agent implementation
type AgentClient interface {
	GenerateConsultation(ctx context.Context, p Patient) (string, error)
}

// EvidenceFinder looks up literature for the principal diagnosis.
type EvidenceFinder interface {
	SearchLiterature(ctx context.Context, query string, limit int) (*evidence.LiteratureResult, error)
}

// ReportService defines the interface for sending reports
type ReportService interface {
	SendDoctorReport(ctx context.Context, c Consultation) error
}

// STTClient transcribes dictated audio.
type STTClient interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

type Service interface {
	CreateConsultation(ctx context.Context, patientID uuid.UUID, p Patient) (*Consultation, error)
	GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Regenerate(ctx context.Context, id uuid.UUID) (*ReviewState, error)
	Review(ctx context.Context, id uuid.UUID) (*ReviewState, error)
	Apply(ctx context.Context, id uuid.UUID, op Operation) (*ReviewState, error)
	Dictate(ctx context.Context, id uuid.UUID, audio []byte) (*ReviewState, string, error)
	Finalize(ctx context.Context, id uuid.UUID) (*FinalizeResult, error)
}

type service struct {
	repo      Repository
	aiClient  AgentClient
	evidence  EvidenceFinder
	sttClient STTClient
	reportSvc ReportService
	sessions  *Sessions
	log       *logrus.Logger
}

func NewService(repo Repository, ai AgentClient, finder EvidenceFinder, stt STTClient, report ReportService, sessions *Sessions, logger *logrus.Logger) Service {
	return &service{
		repo:      repo,
		aiClient:  ai,
		evidence:  finder,
		sttClient: stt,
		reportSvc: report,
		sessions:  sessions,
		log:       logger,
	}
}

func (s *service) CreateConsultation(ctx context.Context, patientID uuid.UUID, p Patient) (*Consultation, error) {
	if strings.TrimSpace(p.Complaint) == "" {
		return nil, ErrEmptyComplaint
	}

	c := &Consultation{
		ID:        uuid.New(),
		PatientID: patientID,
		Patient:   p,
		Status:    StatusDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.generate(ctx, c); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.sessions.Seed(c.ID, c.Source)

	s.log.WithFields(logrus.Fields{
		"consultation_id": c.ID,
		"patient_id":      c.PatientID,
		"diagnosis":       c.Source.Diagnosis.Principal,
	}).Info("Consultation generated")
	return c, nil
}

func (s *service) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

// Regenerate replaces the consultation result and restarts its review from
// scratch.
func (s *service) Regenerate(ctx context.Context, id uuid.UUID) (*ReviewState, error) {
	c, err := s.draft(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.generate(ctx, c); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.sessions.Seed(c.ID, c.Source)

	s.log.WithField("consultation_id", id).Info("Consultation regenerated, review restarted")
	return s.with(c, func(*review.Session) error { return nil })
}

func (s *service) Review(ctx context.Context, id uuid.UUID) (*ReviewState, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusFinalized {
		if c.Final == nil {
			return nil, fmt.Errorf("%w: no validated document stored", ErrAlreadyFinalized)
		}
		return finalizedState(c, s.log), nil
	}
	return s.with(c, func(*review.Session) error { return nil })
}

// finalizedState renders a finalized document as fully validated without
// keeping a live session for it.
func finalizedState(c *Consultation, logger *logrus.Logger) *ReviewState {
	sess := review.NewSession(*c.Final, nil, logger)
	for _, id := range review.Sections {
		sess.ToggleValidated(id)
	}
	return &ReviewState{
		ConsultationID: c.ID,
		Status:         c.Status,
		Review:         sess.Snapshot(),
		Notifications:  []Notification{},
	}
}

func (s *service) Apply(ctx context.Context, id uuid.UUID, op Operation) (*ReviewState, error) {
	c, err := s.draft(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.with(c, op.Apply)
}

// Dictate appends the transcription of audio to the report text.
func (s *service) Dictate(ctx context.Context, id uuid.UUID, audio []byte) (*ReviewState, string, error) {
	c, err := s.draft(ctx, id)
	if err != nil {
		return nil, "", err
	}

	text, err := s.sttClient.Transcribe(ctx, audio)
	if err != nil {
		return nil, "", fmt.Errorf("transcription failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		state, err := s.with(c, func(*review.Session) error { return nil })
		return state, "", err
	}

	state, err := s.with(c, func(sess *review.Session) error {
		report := strings.TrimRight(sess.Current().Report, "\n ")
		if report != "" {
			report += "\n"
		}
		return sess.SetField(review.SectionReport, review.FieldText, report+text)
	})
	return state, text, err
}

// Finalize stores the validated document and sends the doctor report. A
// failed delivery does not undo the finalization.
func (s *service) Finalize(ctx context.Context, id uuid.UUID) (*FinalizeResult, error) {
	c, err := s.draft(ctx, id)
	if err != nil {
		return nil, err
	}

	var final review.Content
	if err := s.sessions.Close(c.ID, c.Source, func(sess *review.Session) error {
		if !sess.IsFullyValidated() {
			return fmt.Errorf("%w: %d/%d validated", ErrNotFullyValidated, sess.ValidatedCount(), len(review.Sections))
		}
		final = sess.Current()
		return nil
	}); err != nil {
		return nil, err
	}

	now := time.Now()
	c.Final = &final
	c.Status = StatusFinalized
	c.FinalizedAt = &now
	if err := s.repo.Save(ctx, c); err != nil {
		s.sessions.Reopen(c.ID)
		return nil, err
	}
	s.sessions.Drop(c.ID)

	res := &FinalizeResult{Consultation: c, ReportSent: true}
	if err := s.reportSvc.SendDoctorReport(ctx, *c); err != nil {
		s.log.WithFields(logrus.Fields{
			"consultation_id": c.ID,
			"error":           err,
		}).Error("Failed to send doctor report")
		res.ReportSent = false
		res.ReportError = err.Error()
	}

	s.log.WithField("consultation_id", c.ID).Info("Consultation finalized")
	return res, nil
}

// generate asks the model for a new result, parses it and attaches
// literature evidence. A failed evidence lookup leaves the section empty.
func (s *service) generate(ctx context.Context, c *Consultation) error {
	raw, err := s.aiClient.GenerateConsultation(ctx, c.Patient)
	if err != nil {
		return fmt.Errorf("consultation generation failed: %w", err)
	}

	content := extract.Parse(raw)
	if q := content.Diagnosis.Principal; q != "" {
		lit, err := s.evidence.SearchLiterature(ctx, q, evidenceArticleLimit)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"consultation_id": c.ID,
				"query":           q,
				"error":           err,
			}).Warn("Evidence lookup failed")
		} else if content.Evidence, err = lit.JSON(); err != nil {
			return fmt.Errorf("encoding evidence: %w", err)
		}
	}

	c.RawOutput = raw
	c.Source = content
	return nil
}

func (s *service) draft(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusFinalized {
		return nil, ErrAlreadyFinalized
	}
	return c, nil
}

func (s *service) with(c *Consultation, fn func(*review.Session) error) (*ReviewState, error) {
	snap, notes, err := s.sessions.With(c.ID, c.Source, fn)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []Notification{}
	}
	return &ReviewState{
		ConsultationID: c.ID,
		Status:         c.Status,
		Review:         snap,
		Notifications:  notes,
	}, nil
}
