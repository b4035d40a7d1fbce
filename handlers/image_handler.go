package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openscioly/results-api/services"
	"github.com/openscioly/results-api/storage"
)

// Logos are small raster images; anything bigger than this is a mistake.
const maxLogoBytes = 5 << 20

type ImageHandler struct {
	resultService services.ResultService
	objects       storage.ObjectStore
}

func NewImageHandler(resultService services.ResultService, objects storage.ObjectStore) *ImageHandler {
	return &ImageHandler{
		resultService: resultService,
		objects:       objects,
	}
}

func (h *ImageHandler) ListLogos(w http.ResponseWriter, r *http.Request) {
	names, err := h.resultService.LogoNames(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	if err := writeJSON(w, http.StatusOK, names, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// logoName reads and validates the {name} URL parameter. Names are plain
// file names; path separators and parent references are rejected.
func logoName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", errors.New("invalid logo name")
	}
	return name, nil
}

// GetLogo streams one logo's bytes from object storage.
func (h *ImageHandler) GetLogo(w http.ResponseWriter, r *http.Request) {
	name, err := logoName(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if h.objects == nil {
		mapServiceErrorToHTTP(w, r, services.ErrStorageNotConfigured)
		return
	}

	data, err := h.objects.Download(r.Context(), "logos/"+name)
	if err != nil {
		notFoundResponse(w, r)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// UploadLogo adds or replaces one logo in the pool.
func (h *ImageHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	name, err := logoName(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := http.MaxBytesReader(w, r.Body, maxLogoBytes)
	result, err := h.resultService.UploadLogo(r.Context(), name, contentType, body)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"logo": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteLogo removes one logo from the pool.
func (h *ImageHandler) DeleteLogo(w http.ResponseWriter, r *http.Request) {
	name, err := logoName(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.resultService.DeleteLogo(r.Context(), name); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
