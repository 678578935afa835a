package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/swahilipot/hubauth"
)

type signupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	Department string `json:"department"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Message      string       `json:"message"`
	User         hubauth.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	SessionToken string       `json:"sessionToken,omitempty"`
}

type twoFactorChallenge struct {
	Require2FA bool   `json:"require2fa"`
	TempToken  string `json:"tempToken"`
	UserID     int64  `json:"userId"`
}

// decodeJSON reads a single JSON object into dst and writes the error
// response itself when that fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeValidation, invalidBodyErrorMessage)
		return false
	}
	return true
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.engine.Signup(r.Context(), hubauth.SignupInput{
		Email:      req.Email,
		Password:   req.Password,
		FullName:   req.FullName,
		Department: req.Department,
	})
	if err != nil {
		s.writeEngineError(w, r, "signup", err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message:      "User registered successfully. Please check your email to verify your account.",
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		SessionToken: res.Tokens.SessionToken,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeEngineError(w, r, "login", err)
		return
	}
	s.writeLoginResult(w, res)
}

func (s *Server) writeLoginResult(w http.ResponseWriter, res *hubauth.LoginResult) {
	if res.Require2FA {
		writeJSON(w, http.StatusOK, twoFactorChallenge{
			Require2FA: true,
			TempToken:  res.TempToken,
			UserID:     res.UserID,
		})
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message:      "Login successful",
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		SessionToken: res.Tokens.SessionToken,
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := s.engine.VerifyEmail(r.Context(), req.Token); err != nil {
		s.writeEngineError(w, r, "verify_email", err)
		return
	}
	writeMessage(w, "Email verified successfully. You can now log in.")
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.ResendVerification(r.Context(), req.Email); err != nil {
		s.writeEngineError(w, r, "resend_verification", err)
		return
	}
	writeMessage(w, "If that email exists, a verification link has been sent.")
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.ForgotPassword(r.Context(), req.Email); err != nil {
		s.writeEngineError(w, r, "forgot_password", err)
		return
	}
	writeMessage(w, "If that email is registered, a password reset link has been sent.")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.writeEngineError(w, r, "reset_password", err)
		return
	}
	writeMessage(w, "Password reset successfully. You can now log in with your new password.")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "Refresh token is required")
		return
	}

	res, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeEngineError(w, r, "refresh", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Token refreshed successfully",
		"accessToken": res.AccessToken,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromRequest(w, r)
	if !ok {
		return
	}

	user, err := s.engine.Me(r.Context(), auth.AccountID)
	if err != nil {
		s.writeEngineError(w, r, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
