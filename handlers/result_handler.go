package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openscioly/results-api/middleware"
	"github.com/openscioly/results-api/services"
)

type ResultHandler struct {
	resultService services.ResultService
	logger        *slog.Logger
}

func NewResultHandler(resultService services.ResultService, logger *slog.Logger) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		logger:        logger,
	}
}

func (h *ResultHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	documents, err := h.resultService.GetAllComplete(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, documents, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Create exists only to reserve the route: results are added through the
// YAML endpoints, never as raw JSON.
func (h *ResultHandler) Create(w http.ResponseWriter, r *http.Request) {
	admin, err := middleware.IsAdminFromContext(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if admin {
		w.WriteHeader(http.StatusMethodNotAllowed)
	} else {
		w.WriteHeader(http.StatusForbidden)
	}
}

func (h *ResultHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.resultService.DeleteAll(r.Context()); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "all results deleted"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) GetAllMeta(w http.ResponseWriter, r *http.Request) {
	results, err := h.resultService.GetAllMeta(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, results, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegenerateAllMeta kicks off regeneration in the background and returns
// immediately.
func (h *ResultHandler) RegenerateAllMeta(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.resultService.RegenerateAllMetadata(ctx); err != nil {
			h.logger.Error("metadata regeneration failed", slog.Any("error", err))
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (h *ResultHandler) Latest(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.resultService.Latest(r.Context(), limitParam(r, 5))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, summaries, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) Recent(w http.ResponseWriter, r *http.Request) {
	results, err := h.resultService.Recent(r.Context(), limitParam(r, 24))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, results, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) Count(w http.ResponseWriter, r *http.Request) {
	counts, err := h.resultService.CountByLevel(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, counts, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) AddYAML(w http.ResponseWriter, r *http.Request) {
	file, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 16<<20))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(file) == 0 {
		badRequestResponse(w, r, errors.New("request body must contain a YAML result file"))
		return
	}

	canonicalID, err := h.resultService.AddYAML(r.Context(), file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"canonical_id": canonicalID}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) AddManyYAML(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		badRequestResponse(w, r, errors.New("multipart form must contain at least one file under \"files\""))
		return
	}

	files := make([][]byte, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		files = append(files, data)
	}

	canonicalIDs, err := h.resultService.AddManyYAML(r.Context(), files)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"canonical_ids": canonicalIDs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	doc, err := h.resultService.GetComplete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, doc, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	canonicalID := chi.URLParam(r, "id")
	if err := h.resultService.Delete(r.Context(), canonicalID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"canonical_id": canonicalID}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) GetMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.resultService.GetMeta(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, meta, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) RegenerateMeta(w http.ResponseWriter, r *http.Request) {
	canonicalID := chi.URLParam(r, "id")

	exists, err := h.resultService.Exists(r.Context(), canonicalID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if !exists {
		notFoundResponse(w, r)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.resultService.RegenerateMetadata(ctx, canonicalID); err != nil {
			h.logger.Error("metadata regeneration failed",
				slog.String("id", canonicalID),
				slog.Any("error", err))
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (h *ResultHandler) Titles(w http.ResponseWriter, r *http.Request) {
	titles, err := h.resultService.Titles(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, titles, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Superscore is intentionally unimplemented.
func (h *ResultHandler) Superscore(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusMethodNotAllowed)
}
