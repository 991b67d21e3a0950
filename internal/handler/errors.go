package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"noteenvelope-sync/internal/replication"
	"noteenvelope-sync/internal/service"
	"noteenvelope-sync/pkg/response"

	"github.com/go-playground/validator/v10"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoteNotFound),
		errors.Is(err, service.ErrVersionNotFound),
		errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrEnvelopeNotFound),
		errors.Is(err, service.ErrLabelNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSyncKeyMissing),
		errors.Is(err, service.ErrInvalidImport):
		return http.StatusBadRequest
	case errors.Is(err, replication.ErrEngineStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		response.InternalError(w, "internal error")
		return
	}
	response.Error(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request payload")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}
