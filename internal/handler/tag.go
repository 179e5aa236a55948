package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/service"
)

// TagHandler exposes tag CRUD and entry-tag assignment.
type TagHandler struct {
	tags   *service.TagService
	logger *slog.Logger
}

func NewTagHandler(tags *service.TagService, logger *slog.Logger) *TagHandler {
	return &TagHandler{tags: tags, logger: logger}
}

// HandleCreate creates a tag.
//
// HTTP: POST /api/tags
func (h *TagHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tag, err := h.tags.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

// HandleList returns all tags with usage counts, most used first.
//
// HTTP: GET /api/tags
func (h *TagHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// HandleUpdate renames a tag or changes its color.
//
// HTTP: PATCH /api/tags/{id}
func (h *TagHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := tagID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req service.UpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tag, err := h.tags.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// HandleDelete removes a tag everywhere it is used. Refused while offline.
//
// HTTP: DELETE /api/tags/{id}
func (h *TagHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := tagID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.tags.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAssign adds a tag to an entry.
//
// HTTP: POST /api/entries/{id}/tags
func (h *TagHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.tags.Assign(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleRemove takes a tag off an entry.
//
// HTTP: DELETE /api/entries/{id}/tags/{name}
func (h *TagHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	entry, err := h.tags.Remove(r.Context(), id, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func tagID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("id", "tag id must be an integer")
	}
	return id, nil
}
