package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/api"
)

// defaultRetryAfterSeconds is the Retry-After horizon suggested on busy
// responses when the error carries no better estimate.
const defaultRetryAfterSeconds = 30

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes data inside a success envelope with status 200.
func WriteSuccess[T any](w http.ResponseWriter, data T) error {
	return WriteJSON(w, http.StatusOK, api.Response[T]{
		Success: true,
		Data:    data,
	})
}

// WriteErrorWithRequestID writes an error envelope with an explicit
// status and code, for failures that never became a DomainError.
func WriteErrorWithRequestID(w http.ResponseWriter, statusCode int, code, message, requestID string) error {
	return WriteJSON(w, statusCode, api.Response[any]{
		Success: false,
		Error: &api.ErrorInfo{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

// WriteErrorResponse translates any error into the wire error envelope.
// Domain errors map to their HTTP status; everything else is a 500 with
// no internals leaked to the client.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	GetLogger(ctx).ErrorCtx(ctx, "API request failed", err)

	statusCode := http.StatusInternalServerError
	errorCode := apperrors.ErrCodeInternal
	message := "An internal server error occurred"
	metadata := make(map[string]any)

	var domainErr apperrors.DomainError
	if errors.As(err, &domainErr) {
		errorCode = domainErr.Code()
		metadata = domainErr.Metadata()
		statusCode, message = httpStatusFor(domainErr)

		if statusCode == http.StatusServiceUnavailable {
			setRetryAfter(w, metadata)
		}
	}

	_ = WriteJSON(w, statusCode, api.Response[any]{
		Success: false,
		Error: &api.ErrorInfo{
			Code:      errorCode,
			Message:   message,
			RequestID: GetRequestID(ctx),
			Metadata:  metadata,
		},
	})
}

// setRetryAfter tells a refused client when to come back. The error may
// carry its own estimate in metadata.
func setRetryAfter(w http.ResponseWriter, metadata map[string]any) {
	if retry, ok := metadata["retry_after_sec"]; ok {
		w.Header().Set("Retry-After", fmt.Sprintf("%v", retry))
		return
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", defaultRetryAfterSeconds))
}

// httpStatusFor picks the HTTP status and client-facing message for a
// domain error. Exhaustion and a down interface are 503 because both
// clear without client action; conflicts and unknown serials are the
// client's to resolve.
func httpStatusFor(err apperrors.DomainError) (int, string) {
	errMsg := err.Error()

	switch err.Code() {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeInvalidCIDR,
		apperrors.ErrCodeInvalidIPAddress:
		return http.StatusBadRequest, "Validation failed: " + errMsg

	case apperrors.ErrCodeDeviceNotFound:
		return http.StatusNotFound, "Device not found: " + errMsg

	case apperrors.ErrCodeDeviceExists, apperrors.ErrCodeKeyInUse:
		return http.StatusConflict, "Resource conflict: " + errMsg

	case apperrors.ErrCodeSubnetExhausted:
		return http.StatusServiceUnavailable, "Address pool exhausted. Please try again later."

	case apperrors.ErrCodeInterfaceDown:
		return http.StatusServiceUnavailable, "WireGuard interface is unavailable. Please try again later."

	case apperrors.ErrCodeWireGuardError, apperrors.ErrCodeTimeout,
		apperrors.ErrCodeStorage:
		return http.StatusInternalServerError, "Operation failed: " + errMsg

	default:
		return http.StatusInternalServerError, "An internal server error occurred"
	}
}
