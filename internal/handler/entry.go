package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/repository"
	"github.com/cliptray/cliptrayd/internal/service"
)

// EntryHandler exposes clipboard-history CRUD.
type EntryHandler struct {
	entries *service.EntryService
	logger  *slog.Logger
}

func NewEntryHandler(entries *service.EntryService, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{entries: entries, logger: logger}
}

// HandleSave stores a clipboard capture.
//
// HTTP: POST /api/entries
func (h *EntryHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req service.SaveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.entries.Save(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// HandleList returns the history, newest first.
//
// HTTP: GET /api/entries?q=&tag=&pinned=&hours=&limit=&offset=
func (h *EntryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.EntryFilter{
		Query:      q.Get("q"),
		Tag:        q.Get("tag"),
		PinnedOnly: q.Get("pinned") == "true",
	}
	if v := q.Get("hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			writeError(w, apperror.ValidationFailed("hours", "hours must be a positive integer"))
			return
		}
		filter.Since = time.Now().Add(-time.Duration(hours) * time.Hour)
	}
	opts := repository.ListOptions{}
	if v := q.Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}

	entries, err := h.entries.List(r.Context(), filter, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGet returns one entry.
//
// HTTP: GET /api/entries/{id}
func (h *EntryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.entries.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleUpdate applies a partial update (pin state, tags).
//
// HTTP: PATCH /api/entries/{id}
func (h *EntryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var update model.EntryUpdate
	if err := decodeStrict(r, &update); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.entries.Update(r.Context(), id, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleDelete removes one entry. Deleting an already-deleted entry
// succeeds with deleted=false.
//
// HTTP: DELETE /api/entries/{id}
func (h *EntryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	deleted, err := h.entries.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// HandleClear wipes the whole history.
//
// HTTP: DELETE /api/entries
func (h *EntryHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	n, err := h.entries.Clear(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func entryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("id", "entry id must be an integer")
	}
	return id, nil
}
