package app

import (
	"net/http"
)

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.URL.Path {
	case "/api/auth/signup":
		s.handleAuthSignUp(w, r)
	case "/api/auth/signin":
		s.handleAuthSignIn(w, r)
	case "/api/auth/refresh":
		s.handleAuthRefresh(w, r)
	case "/api/auth/logout":
		s.handleAuthLogout(w, r)
	case "/api/auth/verify-email":
		s.handleAuthVerifyEmail(w, r)
	case "/api/auth/reset-password/request":
		s.handleAuthRequestReset(w, r)
	case "/api/auth/reset-password":
		s.handleAuthResetPassword(w, r)
	default:
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	payload, err := s.service.SignUp(r.Context(), remoteIP(r), body.Email, body.Password, body.DisplayName)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	session, err := s.service.SignIn(r.Context(), remoteIP(r), body.Email, body.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	_ = s.service.Logout(r.Context(), body.RefreshToken)
	writeSuccess(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := s.service.VerifyEmail(r.Context(), body.Token); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"message": "Email verified successfully"})
}

func (s *HTTPServer) handleAuthRequestReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	payload, err := s.service.RequestPasswordReset(r.Context(), remoteIP(r), body.Email)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleAuthResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := s.service.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"message": "Password reset successfully"})
}
