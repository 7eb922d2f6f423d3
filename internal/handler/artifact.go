package handler

import (
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/recast/recast/internal/artifact"
	"github.com/recast/recast/internal/handler/dto"
	"github.com/recast/recast/internal/middleware"
	"github.com/recast/recast/internal/service"
)

// ArtifactHandler handles HTTP requests for generation history.
type ArtifactHandler struct {
	svc    *service.HistoryService
	logger *slog.Logger
}

// NewArtifactHandler creates a new ArtifactHandler.
func NewArtifactHandler(svc *service.HistoryService, logger *slog.Logger) *ArtifactHandler {
	return &ArtifactHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /api/v1/artifacts.
func (h *ArtifactHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	limit := artifact.DefaultPageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= artifact.MaxPageSize {
			limit = parsed
		}
	}

	result, err := h.svc.List(r.Context(), service.ListArtifactsInput{
		AccountID: middleware.GetAccountID(r.Context()),
		Filter:    filter,
		Cursor:    r.URL.Query().Get("cursor"),
		Limit:     limit,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToArtifactListResponse(result.Artifacts, result.NextCursor, result.HasMore))
}

// Get handles GET /api/v1/artifacts/{id}.
func (h *ArtifactHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), middleware.GetAccountID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToArtifactResponse(a))
}

// Export handles GET /api/v1/artifacts/{id}/export.
func (h *ArtifactHandler) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.Export(r.Context(), middleware.GetAccountID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeDownload(w, exp)
}

// ExportAll handles GET /api/v1/artifacts/export.
// Accepts the same filters as List.
func (h *ArtifactHandler) ExportAll(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	exp, err := h.svc.ExportAll(r.Context(), middleware.GetAccountID(r.Context()), filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeDownload(w, exp)
}

// Delete handles DELETE /api/v1/artifacts/{id}.
func (h *ArtifactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), accountID, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("artifact_deleted", "account_id", accountID, "artifact_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// parseFilter reads listing filters from the query string.
// It writes a 400 and returns false on malformed dates.
func parseFilter(w http.ResponseWriter, r *http.Request) (artifact.Filter, bool) {
	query := r.URL.Query()
	filter := artifact.Filter{
		FormatID: query.Get("format"),
		Search:   strings.TrimSpace(query.Get("q")),
	}

	if formats := query.Get("formats"); formats != "" {
		for _, f := range strings.Split(formats, ",") {
			if f = strings.TrimSpace(f); f != "" {
				filter.FormatIDs = append(filter.FormatIDs, f)
			}
		}
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"created_after", &filter.CreatedAfter},
		{"created_before", &filter.CreatedBefore},
	} {
		v := query.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATE", p.name+" must be an RFC 3339 timestamp")
			return artifact.Filter{}, false
		}
		*p.dst = &t
	}

	return filter, true
}

func writeDownload(w http.ResponseWriter, exp *service.Export) {
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exp.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Body)
}
