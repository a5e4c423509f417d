package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// retryAfterSeconds is sent with every 503.
const retryAfterSeconds = "2"

func writeError(w http.ResponseWriter, status int, msg string) {
	kind := domain.KindInternal
	if status == http.StatusServiceUnavailable {
		kind = domain.KindTransientIO
	}
	writeJSON(w, status, domain.PixChargeError{
		ErrorKind: kind,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindAccessDenied:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadySettled:
		return http.StatusConflict
	case domain.KindCancelled:
		return http.StatusGone
	case domain.KindEncoding:
		return http.StatusUnprocessableEntity
	case domain.KindTransientIO:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError maps domain errors to HTTP responses. The body never
// carries internal detail: only the kind and its user message.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := domain.UserMessage(kind)

	var invalid *domain.ErrInvalidInput
	var unauthorized *domain.ErrUnauthorized

	switch {
	case errors.As(err, &invalid):
		logger.Debug("validation error", zap.String("field", invalid.Field), zap.String("error", err.Error()))
		if invalid.Field != "boletoId" {
			msg = invalid.Message
		}
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		msg = unauthorized.Message
	case status == http.StatusServiceUnavailable:
		logger.Error("transient failure", zap.Error(err))
		w.Header().Set("Retry-After", retryAfterSeconds)
	case status == http.StatusInternalServerError:
		logger.Error("unhandled error", zap.Error(err))
	default:
		logger.Debug("request rejected", zap.String("error_kind", string(kind)), zap.String("error", err.Error()))
	}

	writeJSON(w, status, domain.PixChargeError{
		Success:   false,
		ErrorKind: kind,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}
