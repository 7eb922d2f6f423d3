package handler

import (
	"log/slog"
	"net/http"

	"github.com/recast/recast/internal/handler/dto"
	"github.com/recast/recast/internal/middleware"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/service"
)

// AccountHandler handles HTTP requests for account quota state.
type AccountHandler struct {
	svc    *service.AccountService
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		svc:    svc,
		logger: logger,
	}
}

// Get handles GET /api/v1/account.
// First-time accounts are provisioned on the default plan.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.Ensure(r.Context(), middleware.GetAccountID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToAccountResponse(acc))
}

// ChangePlan handles PUT /api/v1/account/plan.
// Switching plans starts a new billing period with the plan's full allowance.
func (h *AccountHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	accountID := middleware.GetAccountID(r.Context())
	acc, err := h.svc.ChangePlan(r.Context(), accountID, model.Plan(req.Plan))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("plan_changed",
		"account_id", accountID,
		"plan", acc.Plan,
		"credits_total", acc.CreditsTotal,
	)
	writeJSON(w, http.StatusOK, dto.ToAccountResponse(acc))
}
