package consultation

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"medical-review-assistant/internal/review"
)

const maxAudioUpload = 10 << 20

type Handler struct {
	svc Service
	log *logrus.Logger
}

func NewHandler(svc Service, logger *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: logger}
}

type CreateConsultationRequest struct {
	PatientID string  `json:"patient_id"`
	Patient   Patient `json:"patient"`
}

func (h *Handler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	var req CreateConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	pid, err := uuid.Parse(req.PatientID)
	if err != nil {
		// Anonymous consultations get a fresh patient id.
		pid = uuid.New()
	}

	c, err := h.svc.CreateConsultation(r.Context(), pid, req.Patient)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetConsultation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	state, err := h.svc.Regenerate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	state, err := h.svc.Review(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) ApplyOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	var op Operation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	state, err := h.svc.Apply(r.Context(), id, op)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) Dictate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error retrieving audio file")
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audio file")
		return
	}

	state, text, err := h.svc.Dictate(r.Context(), id, buf.Bytes())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":  text,
		"state": state,
	})
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Finalize(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) consultationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid consultation ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, review.ErrInvalidSectionReference),
		errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrEmptyComplaint):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, review.ErrNotEditing),
		errors.Is(err, ErrNotFullyValidated),
		errors.Is(err, ErrAlreadyFinalized):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err,
		}).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "Processing failed: "+err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/consultations", h.CreateConsultation)
	r.Route("/consultations/{id}", func(r chi.Router) {
		r.Get("/", h.GetConsultation)
		r.Post("/regenerate", h.Regenerate)
		r.Post("/finalize", h.Finalize)
		r.Get("/review", h.GetReview)
		r.Post("/review/operations", h.ApplyOperation)
		r.Post("/review/dictation", h.Dictate)
	})
}
