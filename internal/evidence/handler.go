package evidence

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type LiteratureRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type DrugsRequest struct {
	Drugs []string `json:"drugs"`
}

func (h *Handler) SearchLiterature(w http.ResponseWriter, r *http.Request) {
	var req LiteratureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	res, err := h.svc.SearchLiterature(r.Context(), req.Query, req.Limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) NormalizeDrugs(w http.ResponseWriter, r *http.Request) {
	var req DrugsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	res, err := h.svc.NormalizeDrugs(r.Context(), req.Drugs)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.svc.log.WithError(err).Error("Evidence request failed")
	writeError(w, http.StatusBadGateway, "Language model request failed")
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
	r.Post("/evidence/literature", h.SearchLiterature)
	r.Post("/evidence/drugs", h.NormalizeDrugs)
}
