package consultation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medical-review-assistant/internal/review"
)

var ErrNotFound = errors.New("consultation not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Save(ctx context.Context, c *Consultation) error
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	query := `SELECT id, patient_id, patient, raw_output, source, final, status, created_at, updated_at, finalized_at FROM consultations WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	var c Consultation
	var patientJSON, sourceJSON, finalJSON []byte
	var finalizedAt sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.PatientID,
		&patientJSON,
		&c.RawOutput,
		&sourceJSON,
		&finalJSON,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
		&finalizedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(patientJSON) > 0 {
		if err := json.Unmarshal(patientJSON, &c.Patient); err != nil {
			return nil, fmt.Errorf("failed to unmarshal patient: %w", err)
		}
	}
	if len(sourceJSON) > 0 {
		if err := json.Unmarshal(sourceJSON, &c.Source); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source: %w", err)
		}
	}
	if len(finalJSON) > 0 {
		var final review.Content
		if err := json.Unmarshal(finalJSON, &final); err != nil {
			return nil, fmt.Errorf("failed to unmarshal final: %w", err)
		}
		c.Final = &final
	}
	if finalizedAt.Valid {
		t := finalizedAt.Time
		c.FinalizedAt = &t
	}

	return &c, nil
}

func (r *postgresRepo) Save(ctx context.Context, c *Consultation) error {
	patientJSON, err := json.Marshal(c.Patient)
	if err != nil {
		return err
	}
	sourceJSON, err := json.Marshal(c.Source)
	if err != nil {
		return err
	}
	var finalJSON any
	if c.Final != nil {
		b, err := json.Marshal(c.Final)
		if err != nil {
			return err
		}
		finalJSON = b
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()

	query := `
		INSERT INTO consultations (id, patient_id, patient, raw_output, source, final, status, created_at, updated_at, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			patient = $3,
			raw_output = $4,
			source = $5,
			final = $6,
			status = $7,
			updated_at = $9,
			finalized_at = $10
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.PatientID, patientJSON, c.RawOutput, sourceJSON, finalJSON, c.Status, c.CreatedAt, c.UpdatedAt, c.FinalizedAt)
	return err
}
