package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/recast/recast/internal/catalog"
	"github.com/recast/recast/internal/ledger"
	"github.com/recast/recast/internal/prompt"
	"github.com/recast/recast/internal/provider"
	"github.com/recast/recast/internal/service"
)

// StatusClientClosedRequest is the non-standard status logged when the caller went away.
const StatusClientClosedRequest = 499

const defaultProviderRetryAfter = 5 * time.Second

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownFormat):
		writeError(w, http.StatusBadRequest, "UNKNOWN_FORMAT", "Unknown output format")
	case errors.Is(err, catalog.ErrUnknownTone):
		writeError(w, http.StatusBadRequest, "UNKNOWN_TONE", "Unknown tone")
	case errors.Is(err, catalog.ErrUnknownModel):
		writeError(w, http.StatusBadRequest, "UNKNOWN_MODEL", "Unknown model")
	case errors.Is(err, prompt.ErrEmptySource), errors.Is(err, service.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "EMPTY_SOURCE", "Source text is empty")
	case errors.Is(err, service.ErrUnsupportedSourceType):
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_SOURCE_TYPE", "Only text sources are supported")
	case errors.Is(err, service.ErrContentTooLarge):
		writeError(w, http.StatusBadRequest, "CONTENT_TOO_LARGE", "Source text exceeds maximum length")
	case errors.Is(err, service.ErrTitleTooLong):
		writeError(w, http.StatusBadRequest, "TITLE_TOO_LONG", "Title exceeds maximum length")
	case errors.Is(err, service.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, ledger.ErrInvalidPlan):
		writeError(w, http.StatusBadRequest, "INVALID_PLAN", "Plan must be free, pro or business")
	case errors.Is(err, ledger.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "No credits left in the current period")
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
	case errors.Is(err, service.ErrContentNotFound):
		writeError(w, http.StatusNotFound, "CONTENT_NOT_FOUND", "Content item not found")
	case errors.Is(err, service.ErrArtifactNotFound):
		writeError(w, http.StatusNotFound, "ARTIFACT_NOT_FOUND", "Artifact not found")
	case errors.Is(err, service.ErrCancelled):
		writeError(w, StatusClientClosedRequest, "GENERATION_CANCELLED", "Generation was cancelled")
	case errors.Is(err, service.ErrGenerationFailed):
		writeGenerationError(w, logger, err)
	case errors.Is(err, service.ErrPersistenceFailed):
		logger.Error("persistence_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "PERSISTENCE_FAILED", "Generated content could not be saved; no credit was charged")
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeGenerationError maps a failed provider call. No credit is charged for any of these.
func writeGenerationError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var perr *provider.Error
	if !errors.As(err, &perr) {
		logger.Error("generation_failed", "error", err)
		writeError(w, http.StatusBadGateway, "PROVIDER_ERROR", "The model provider failed")
		return
	}

	switch perr.Kind {
	case provider.KindCancelled:
		writeError(w, StatusClientClosedRequest, "GENERATION_CANCELLED", "Generation was cancelled")
	case provider.KindRateLimited:
		retryAfter := perr.RetryAfter
		if retryAfter <= 0 {
			retryAfter = defaultProviderRetryAfter
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
		writeError(w, http.StatusServiceUnavailable, "PROVIDER_RATE_LIMITED", "The model provider is rate limiting requests")
	case provider.KindTimeout:
		writeError(w, http.StatusGatewayTimeout, "PROVIDER_TIMEOUT", "The model provider timed out")
	case provider.KindUnauthorized:
		logger.Error("provider_unauthorized", "error", err)
		writeError(w, http.StatusBadGateway, "PROVIDER_UNAUTHORIZED", "The model provider rejected our credentials")
	case provider.KindInvalidResponse:
		writeError(w, http.StatusBadGateway, "PROVIDER_INVALID_RESPONSE", "The model provider returned an unusable response")
	default:
		logger.Error("generation_failed", "error", err)
		writeError(w, http.StatusBadGateway, "PROVIDER_ERROR", "The model provider failed")
	}
}
