package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/metaedit/internal/apperr"
	"github.com/starford/metaedit/internal/export"
	"github.com/starford/metaedit/internal/filter"
	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/photometa"
	"github.com/starford/metaedit/internal/photoservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *photoservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *photoservice.Service) *Handler {
	return &Handler{svc: svc}
}

// photoPath extracts the photo path from the URL (everything after the
// route prefix). Supports encoded slashes (e.g. 2021%2Fimg.jpg).
func photoPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// criteriaFromQuery reads one criterion per field from the query string.
func criteriaFromQuery(q url.Values) filter.Criteria {
	var c filter.Criteria
	for _, f := range models.Fields {
		c.Set(f, q.Get(string(f)))
	}
	return c
}

// writeError maps domain errors to HTTP responses.
func writeError(w http.ResponseWriter, op, path string, err error) {
	var encErr *photometa.EncodeError
	var expErr *export.ExportError
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrUnknownPath):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrNoLibrary):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("no library open"))
	case errors.As(err, &encErr):
		slog.Error(op+" failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("metadata write failed"))
	case errors.As(err, &expErr):
		slog.Error(op+" failed", slog.String("path", expErr.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(expErr.Kind.String()+": "+expErr.Path))
	default:
		slog.Error(op+" failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListPhotos handles GET /api/photos.
//
//	@Summary		List photos matching field filters
//	@Tags			photos
//	@Produce		json
//	@Param			people		query		string	false	"Comma-separated names, all required"
//	@Param			location	query		string	false	"Location substring"
//	@Param			date		query		string	false	"Date substring"
//	@Param			group		query		string	false	"Group substring"
//	@Param			comment		query		string	false	"Comment substring"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200		{object}	PhotoListResponse
//	@Security		BearerAuth
//	@Router			/photos [get]
func (h *Handler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.Search(r.Context(), criteriaFromQuery(q), limit, offset)
	if err != nil {
		writeError(w, "list photos", "", err)
		return
	}
	writeJSON(w, http.StatusOK, PhotoListResponse{Photos: items, Total: total})
}

// GetPhoto handles GET /api/photos/*.
//
//	@Summary		Get the metadata of a single photo
//	@Tags			photos
//	@Produce		json
//	@Param			path	path		string	true	"Photo path"
//	@Success		200		{object}	PhotoDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{path} [get]
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	path := photoPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	photo, err := h.svc.GetPhoto(r.Context(), path)
	if err != nil {
		writeError(w, "get photo", path, err)
		return
	}
	w.Header().Set("ETag", etag(photo.Checksum))
	writeJSON(w, http.StatusOK, photo)
}

// UpdatePhoto handles PUT /api/photos/*.
//
//	@Summary		Edit photo metadata with optimistic concurrency
//	@Tags			photos
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Photo path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdatePhotoRequest	true	"Fields to change"
//	@Success		200		{object}	PhotoDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{path} [put]
func (h *Handler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	path := photoPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdatePhotoRequest
	if err := readJSON(w, r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	edits := req.edits()
	if len(edits) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("at least one field is required"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	photo, err := h.svc.UpdatePhoto(r.Context(), path, edits, ifMatch)
	if err != nil {
		writeError(w, "update photo", path, err)
		return
	}
	w.Header().Set("ETag", etag(photo.Checksum))
	writeJSON(w, http.StatusOK, photo)
}

func (req UpdatePhotoRequest) edits() map[models.Field]string {
	edits := make(map[models.Field]string)
	for f, v := range map[models.Field]*string{
		models.FieldPeople:   req.People,
		models.FieldLocation: req.Location,
		models.FieldDate:     req.Date,
		models.FieldGroup:    req.Group,
		models.FieldComment:  req.Comment,
	} {
		if v != nil {
			edits[f] = *v
		}
	}
	return edits
}

// ServeFile handles GET /api/files/*.
//
//	@Summary		Download the image file of a photo
//	@Tags			files
//	@Produce		image/jpeg
//	@Param			path	path	string	true	"Photo path"
//	@Success		200
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [get]
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	path := photoPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	abs, err := h.svc.FilePath(path)
	if err != nil {
		writeError(w, "serve file", path, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, abs)
}

// Export handles POST /api/export.
//
//	@Summary		Copy the photos matching the criteria into the export directory
//	@Tags			export
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExportRequest	false	"Criteria; empty exports everything"
//	@Success		200		{object}	ExportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := readJSON(w, r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rep, err := h.svc.Export(r.Context(), req.Criteria.Normalize())
	if err != nil {
		writeError(w, "export", "", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
