package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openscioly/results-api/models"
	"github.com/openscioly/results-api/services"
)

type SchoolHandler struct {
	schoolService services.SchoolService
}

func NewSchoolHandler(schoolService services.SchoolService) *SchoolHandler {
	return &SchoolHandler{schoolService: schoolService}
}

func (h *SchoolHandler) Letters(w http.ResponseWriter, r *http.Request) {
	letters, err := h.schoolService.FirstLetters(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, letters, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SchoolHandler) ByLetter(w http.ResponseWriter, r *http.Request) {
	rankings, err := h.schoolService.RankingsByLetter(r.Context(), chi.URLParam(r, "letter"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, rankings, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// History serves one school's ranking history. The school identity is the
// literal query tuple; no normalization is applied.
func (h *SchoolHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	school := models.SchoolIdentity{
		Name:    query.Get("name"),
		City:    query.Get("city"),
		State:   query.Get("state"),
		Country: query.Get("country"),
	}

	history, err := h.schoolService.History(r.Context(), school)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, history, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
