package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/florianilch/moonctl/internal/apierror"
)

// ErrorResponse is the JSON body of a failed proxied request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes a JSON error response with the given status code.
func writeJSONError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	writeJSON(ctx, w, ErrorResponse{Code: code, Message: message}, status)
}

// writeAPIError renders a client failure with the upstream status, or a
// gateway status when no response was received.
func writeAPIError(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := apierror.Normalize(err)
	writeJSON(ctx, w, ErrorResponse{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Error:   apiErr.UserError,
	}, errorStatus(apiErr))
}

func errorStatus(err *apierror.Error) int {
	if err.Status != 0 {
		return err.Status
	}

	switch err.Code {
	case apierror.CodeTimeout:
		return http.StatusGatewayTimeout
	case apierror.CodeInvalidRequest:
		return http.StatusBadRequest
	case apierror.CodeSessionExpired:
		return http.StatusUnauthorized
	case apierror.CodeCanceled:
		// Client went away; the status is only seen in logs.
		return 499
	default:
		return http.StatusBadGateway
	}
}
