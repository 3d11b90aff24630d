package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fjod/go_food/internal/auth"
	"github.com/fjod/go_food/internal/domain"
	"github.com/go-playground/validator/v10"
)

// MaxRequestBodySize caps every JSON body the API accepts.
const MaxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// decodeJSON reads a size-limited JSON body into dst and validates its tags.
// On failure the response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "request validation failed",
			Code:    "validation_failed",
			Details: validationDetails(err),
		})
		return false
	}
	return true
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			out[field] = fe.Tag() + "=" + fe.Param()
		} else {
			out[field] = fe.Tag()
		}
	}
	return out
}

// handleServiceError converts a service error to a response. Only errors that
// carry a domain kind expose their message; everything else is logged and
// reported as an internal error.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var unavailable *domain.UnavailableItemsError
	if errors.As(err, &unavailable) {
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "some items are no longer available",
			Code:    "items_unavailable",
			Details: unavailable.Items,
		})
		return
	}

	var status int
	var code string
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	case errors.Is(err, domain.ErrBadRequest):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	message := err.Error()
	var derr *domain.Error
	if errors.As(err, &derr) {
		message = derr.Message
	}
	respondError(w, status, code, message)
}
