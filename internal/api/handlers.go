package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/memman/internal/apperr"
	"github.com/starford/memman/internal/memservice"
	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *memservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *memservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List memory entries
//	@Tags			entries
//	@Produce		json
//	@Param			q				query		string	false	"Full-text query; other filters are ignored when set"
//	@Param			category		query		string	false	"Filter by category"
//	@Param			scope			query		string	false	"Filter by scope kind"	Enums(global, project, directory)
//	@Param			min_staleness	query		number	false	"Lower staleness bound"
//	@Param			limit			query		int		false	"Page size"
//	@Success		200				{object}	EntryListResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if text := q.Get("q"); text != "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		entries, err := h.svc.SearchEntries(r.Context(), text, limit)
		if err != nil {
			slog.Error("search entries failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		writeJSON(w, http.StatusOK, EntryListResponse{Entries: entries, Total: len(entries)})
		return
	}
	f := store.EntryFilter{
		Category: models.Category(q.Get("category")),
		Scope:    models.ScopeKind(q.Get("scope")),
	}
	if f.Category != "" && !f.Category.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown category"))
		return
	}
	if v := q.Get("min_staleness"); v != "" {
		lo, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("min_staleness must be a number"))
			return
		}
		f.MinStaleness = &lo
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	entries, err := h.svc.ListEntries(r.Context(), f)
	if err != nil {
		slog.Error("list entries failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: entries, Total: len(entries)})
}

// GetEntry handles GET /api/entries/{id}.
//
//	@Summary		Get a memory entry
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry ID"
//	@Success		200	{object}	models.MemoryEntry
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.svc.GetEntry(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, "get entry", id, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /api/entries/{id}.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteEntry(r.Context(), id); err != nil {
		h.writeLookupError(w, "delete entry", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UseEntry handles POST /api/entries/{id}/use.
func (h *Handler) UseEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UseEntryRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if err := h.svc.UseEntry(r.Context(), id, req.Context); err != nil {
		h.writeLookupError(w, "use entry", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCorrections handles GET /api/corrections.
//
//	@Summary		List corrections, newest first
//	@Tags			corrections
//	@Produce		json
//	@Param			source			query		string	false	"Source channel"	Enums(pattern, llm, manual, mcp)
//	@Param			min_confidence	query		number	false	"Minimum confidence"
//	@Param			limit			query		int		false	"Page size"
//	@Success		200				{object}	CorrectionListResponse
//	@Security		BearerAuth
//	@Router			/corrections [get]
func (h *Handler) ListCorrections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.CorrectionFilter{Source: models.SourceChannel(q.Get("source"))}
	if v := q.Get("min_confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("min_confidence must be a number"))
			return
		}
		f.MinConfidence = c
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	cs, err := h.svc.ListCorrections(r.Context(), f)
	if err != nil {
		slog.Error("list corrections failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, CorrectionListResponse{Corrections: cs, Total: len(cs)})
}

// RecordCorrection handles POST /api/corrections.
//
//	@Summary		Record a manual correction
//	@Tags			corrections
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RecordCorrectionRequest	true	"Correction"
//	@Success		201		{object}	correction.Recorded
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/corrections [post]
func (h *Handler) RecordCorrection(w http.ResponseWriter, r *http.Request) {
	var req RecordCorrectionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Correct == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("correct is required"))
		return
	}
	if req.Category != "" && !req.Category.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown category"))
		return
	}
	rec, err := h.svc.RecordCorrection(r.Context(), memservice.RecordInput{
		Incorrect: req.Incorrect,
		Correct:   req.Correct,
		Category:  req.Category,
		Paths:     req.Paths,
		Source:    models.SourceManual,
		SessionID: req.SessionID,
	})
	if err != nil {
		slog.Error("record correction failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	status := http.StatusCreated
	if rec.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, rec)
}

// Capture handles POST /api/capture. The body is the raw session
// transcript; the session query parameter tags the recorded corrections.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("transcript too large or unreadable"))
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("transcript is required"))
		return
	}
	rep, err := h.svc.CaptureTranscript(r.Context(), string(body), r.URL.Query().Get("session"))
	if err != nil {
		slog.Error("capture failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		slog.Error("stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SyncState handles GET /api/sync-state.
func (h *Handler) SyncState(w http.ResponseWriter, r *http.Request) {
	states, err := h.svc.SyncStates(r.Context())
	if err != nil {
		slog.Error("sync state failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": states})
}

// Sync handles POST /api/sync.
//
//	@Summary		Run a sync between the primary and mirror documents
//	@Tags			sync
//	@Produce		json
//	@Param			dry_run		query		bool	false	"Report counts without writing"
//	@Param			direction	query		string	false	"Override direction"	Enums(primary-to-mirror, mirror-to-primary, bidirectional)
//	@Success		200			{object}	syncer.Result
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dryRun, _ := strconv.ParseBool(q.Get("dry_run"))
	dir := models.SyncDirection(q.Get("direction"))
	switch dir {
	case "", models.DirPrimaryToMirror, models.DirMirrorToPrimary, models.DirBidirectional:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown direction"))
		return
	}
	res, err := h.svc.Sync(r.Context(), dryRun, dir)
	if err != nil {
		slog.Error("sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Rescore handles POST /api/rescore.
func (h *Handler) Rescore(w http.ResponseWriter, r *http.Request) {
	apply, _ := strconv.ParseBool(r.URL.Query().Get("apply"))
	scores, err := h.svc.Rescore(r.Context(), apply)
	if err != nil {
		slog.Error("rescore failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, RescoreResponse{Applied: apply, Scores: scores})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, op, id string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error(op+" failed", slog.String("id", id), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
