package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/swahilipot/hubauth"
	"github.com/swahilipot/hubauth/middleware"
	"github.com/swahilipot/hubauth/session"
)

type codeRequest struct {
	Code string `json:"code"`
}

type verify2FARequest struct {
	Code      string `json:"code"`
	UserID    int64  `json:"userId"`
	TempToken string `json:"tempToken"`
}

type sessionView struct {
	ID         int64     `json:"id"`
	DeviceInfo string    `json:"deviceInfo"`
	IPAddress  string    `json:"ipAddress"`
	LastActive time.Time `json:"lastActive"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func newSessionView(s session.Session) sessionView {
	return sessionView{
		ID:         s.ID,
		DeviceInfo: s.DeviceInfo,
		IPAddress:  s.IPAddress,
		LastActive: s.LastActive,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

func authFromRequest(w http.ResponseWriter, r *http.Request) (*hubauth.AuthResult, bool) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Access token required")
	}
	return auth, ok
}

func (s *Server) handleSetup2FA(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromRequest(w, r)
	if !ok {
		return
	}

	setup, err := s.engine.SetupTOTP(r.Context(), auth.AccountID)
	if err != nil {
		s.writeEngineError(w, r, "2fa_setup", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Scan the QR code with your authenticator app, then confirm with a code.",
		"secret":     setup.Secret,
		"otpauthUrl": setup.OTPAuthURL,
		"qrCode":     setup.QRCode,
	})
}

func (s *Server) handleEnable2FA(w http.ResponseWriter, r *http.Request) {
	s.handleToggle2FA(w, r, "2fa_enable", s.engine.EnableTOTP, "2FA enabled successfully")
}

func (s *Server) handleDisable2FA(w http.ResponseWriter, r *http.Request) {
	s.handleToggle2FA(w, r, "2fa_disable", s.engine.DisableTOTP, "2FA disabled successfully")
}

// handleToggle2FA serves enable and disable. A wrong code is a 400 here
// since the caller is already authenticated.
func (s *Server) handleToggle2FA(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, accountID int64, code string) error, okMessage string) {
	auth, ok := authFromRequest(w, r)
	if !ok {
		return
	}

	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := fn(r.Context(), auth.AccountID, req.Code); err != nil {
		if errors.Is(err, hubauth.ErrInvalidTOTPCode) {
			writeError(w, http.StatusBadRequest, CodeInvalid2FACode, "Invalid 2FA code")
			return
		}
		s.writeEngineError(w, r, op, err)
		return
	}
	writeMessage(w, okMessage)
}

func (s *Server) handleVerify2FA(w http.ResponseWriter, r *http.Request) {
	var req verify2FARequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.engine.VerifyTOTPLogin(r.Context(), hubauth.TOTPVerifyInput{
		Code:      req.Code,
		UserID:    req.UserID,
		TempToken: req.TempToken,
	})
	if err != nil {
		s.writeEngineError(w, r, "2fa_verify", err)
		return
	}
	s.writeLoginResult(w, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromRequest(w, r)
	if !ok {
		return
	}

	sessions, err := s.engine.ListSessions(r.Context(), auth.AccountID)
	if err != nil {
		s.writeEngineError(w, r, "list_sessions", err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, newSessionView(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromRequest(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, "Invalid session id")
		return
	}

	if err := s.engine.RevokeSession(r.Context(), auth.AccountID, id); err != nil {
		s.writeEngineError(w, r, "revoke_session", err)
		return
	}
	writeMessage(w, "Session revoked successfully")
}

func (s *Server) handleRevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromRequest(w, r)
	if !ok {
		return
	}

	count, err := s.engine.RevokeAllSessions(r.Context(), auth.AccountID)
	if err != nil {
		s.writeEngineError(w, r, "revoke_all_sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Logged out from %d session(s) successfully", count),
		"count":   count,
	})
}
