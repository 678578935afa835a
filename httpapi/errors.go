package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/swahilipot/hubauth"
)

// Error codes returned in the "code" field.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRefreshInvalid      = "REFRESH_TOKEN_INVALID"
	CodeRefreshExpired      = "REFRESH_TOKEN_EXPIRED"
	CodeInvalid2FACode      = "INVALID_2FA_CODE"
	CodeNotFound            = "NOT_FOUND"
	CodeAccountLocked       = "ACCOUNT_LOCKED"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeReservedEmail       = "RESERVED_EMAIL"
	CodeRateLimited         = "RATE_LIMITED"
	CodeSessionsDisabled    = "SESSIONS_DISABLED"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeInternal            = "INTERNAL_ERROR"
	internalErrorMessage    = "Internal server error"
	invalidBodyErrorMessage = "Invalid request body"
)

type errorBody struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	LockedUntil string `json:"lockedUntil,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // the client may already be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// writeEngineError maps an engine error to its HTTP form. Unknown errors
// are logged and hidden behind a generic 500.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var locked *hubauth.LockedError
	if errors.As(err, &locked) {
		body := errorBody{Error: locked.Error(), Code: CodeAccountLocked}
		if !locked.JustLocked {
			body.LockedUntil = locked.Until.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusLocked, body)
		return
	}

	switch {
	case errors.Is(err, hubauth.ErrValidation):
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, hubauth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, capitalize(err.Error()))
	case errors.Is(err, hubauth.ErrRefreshTokenExpired):
		writeError(w, http.StatusUnauthorized, CodeRefreshExpired, "Refresh token expired. Please login again.")
	case errors.Is(err, hubauth.ErrRefreshTokenInvalid):
		writeError(w, http.StatusUnauthorized, CodeRefreshInvalid, "Invalid refresh token")
	case errors.Is(err, hubauth.ErrInvalidTOTPCode):
		writeError(w, http.StatusUnauthorized, CodeInvalid2FACode, "Invalid 2FA code")
	case errors.Is(err, hubauth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired token")
	case errors.Is(err, hubauth.ErrInvalidVerificationToken),
		errors.Is(err, hubauth.ErrInvalidResetToken),
		errors.Is(err, hubauth.ErrEmailAlreadyVerified),
		errors.Is(err, hubauth.ErrTOTPAlreadyEnabled),
		errors.Is(err, hubauth.ErrTOTPNotPending),
		errors.Is(err, hubauth.ErrTOTPNotEnabled):
		writeError(w, http.StatusBadRequest, CodeValidation, capitalize(err.Error()))
	case errors.Is(err, hubauth.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "Session not found or already revoked")
	case errors.Is(err, hubauth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "User not found")
	case errors.Is(err, hubauth.ErrEmailTaken):
		writeError(w, http.StatusConflict, CodeEmailTaken, "Email already registered")
	case errors.Is(err, hubauth.ErrReservedEmail):
		writeError(w, http.StatusForbidden, CodeReservedEmail, "Cannot use admin email for signup")
	case errors.Is(err, hubauth.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests. Please try again later.")
	case errors.Is(err, hubauth.ErrSessionTrackingDisabled):
		writeError(w, http.StatusNotImplemented, CodeSessionsDisabled, "Session tracking is not enabled")
	case errors.Is(err, hubauth.ErrStrictBackendDown):
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "Session validation unavailable")
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			"op", op,
			"error", err,
			"request_id", RequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, CodeInternal, internalErrorMessage)
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
