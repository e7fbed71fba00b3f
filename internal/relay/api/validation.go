package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/api"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/crypto"
)

// ValidationError names one request field that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every failed field so a client can fix a
// request in one round trip.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve ValidationErrors) Error() string {
	messages := make([]string, 0, len(ve.Errors))
	for _, err := range ve.Errors {
		messages = append(messages, err.Field+": "+err.Message)
	}
	return strings.Join(messages, "; ")
}

// maxSerialLength mirrors the registry-side limit so malformed requests are
// rejected before they reach the coordinator.
const maxSerialLength = 64

// maxRequestBody caps request bodies. Registration payloads are under a
// kilobyte, so anything larger is garbage or abuse.
const maxRequestBody = 1 << 16

// ValidateRegisterRequest checks a registration request field by field,
// collecting every failure rather than stopping at the first.
func ValidateRegisterRequest(req *api.RegisterRequest) error {
	var fieldErrors []ValidationError

	serial := strings.TrimSpace(req.Serial)
	switch {
	case serial == "":
		fieldErrors = append(fieldErrors, ValidationError{
			Field:   "serial",
			Message: "serial is required and cannot be empty",
		})
	case len(serial) > maxSerialLength:
		fieldErrors = append(fieldErrors, ValidationError{
			Field:   "serial",
			Message: fmt.Sprintf("serial must be at most %d characters", maxSerialLength),
		})
	}

	if err := crypto.ValidatePublicKey(req.PublicKey); err != nil {
		fieldErrors = append(fieldErrors, ValidationError{
			Field:   "public_key",
			Message: err.Error(),
		})
	}

	if len(fieldErrors) > 0 {
		return ValidationErrors{Errors: fieldErrors}
	}
	return nil
}

// WriteValidationError writes a 400 response. Field-level details, when
// available, land in the error metadata so clients can map failures back
// to inputs.
func WriteValidationError(w http.ResponseWriter, err error, requestID string) error {
	validationErr, ok := err.(ValidationErrors)
	if !ok {
		return WriteErrorWithRequestID(w, http.StatusBadRequest, apperrors.ErrCodeValidation, err.Error(), requestID)
	}

	return WriteJSON(w, http.StatusBadRequest, api.Response[any]{
		Success: false,
		Error: &api.ErrorInfo{
			Code:      apperrors.ErrCodeValidation,
			Message:   validationErr.Error(),
			RequestID: requestID,
			Metadata:  map[string]any{"errors": validationErr.Errors},
		},
	})
}

// ParseJSONRequest decodes a JSON request body into target. Unknown
// fields are rejected so a typoed field name fails loudly instead of
// silently registering a half-formed device.
func ParseJSONRequest[T any](r *http.Request, target *T) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
