package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openscioly/results-api/services"
)

type SeasonHandler struct {
	seasonService services.SeasonService
}

func NewSeasonHandler(seasonService services.SeasonService) *SeasonHandler {
	return &SeasonHandler{seasonService: seasonService}
}

func (h *SeasonHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("full") == "true" {
		seasons, err := h.seasonService.AllTournamentsBySeason(r.Context())
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		if err := writeJSON(w, http.StatusOK, seasons, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}

	seasons, err := h.seasonService.AllSeasons(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, seasons, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) BySeason(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entries, err := h.seasonService.TournamentsBySeason(r.Context(), year)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, entries, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
