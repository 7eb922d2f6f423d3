package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recast/recast/internal/handler/dto"
	"github.com/recast/recast/internal/middleware"
	"github.com/recast/recast/internal/service"
)

// GenerationHandler handles HTTP requests that produce artifacts.
type GenerationHandler struct {
	contents    *service.ContentService
	accounts    *service.AccountService
	generations *service.GenerationService
	logger      *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(
	contents *service.ContentService,
	accounts *service.AccountService,
	generations *service.GenerationService,
	logger *slog.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		contents:    contents,
		accounts:    accounts,
		generations: generations,
		logger:      logger,
	}
}

// Generate handles POST /api/v1/content/{id}/generations.
// Each call is charged separately, so regenerating produces a new artifact.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Content ID is required")
		return
	}

	var req dto.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	ctx := r.Context()
	accountID := middleware.GetAccountID(ctx)

	item, err := h.contents.Get(ctx, accountID, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if _, err := h.accounts.Ensure(ctx, accountID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	art, err := h.generations.Generate(ctx, service.GenerateInput{
		AccountID:   accountID,
		ContentItem: item,
		FormatID:    req.Format,
		ToneID:      req.Tone,
		ModelID:     req.Model,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToArtifactResponse(art))
}
