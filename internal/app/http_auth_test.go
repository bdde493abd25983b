package app

import (
	"context"
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"anilog/internal/store"
)

func TestSignUpReturnsDevVerificationToken(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	rr := doJSON(t, server, http.MethodPost, "/api/auth/signup", "",
		`{"email":"aki@example.com","password":"correct-horse","displayName":"Aki"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	payload := parseEnvelope(t, rr)
	if payload["success"] != true {
		t.Fatalf("expected success envelope, got %s", rr.Body.String())
	}
	data, ok := payload["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %s", rr.Body.String())
	}
	// SMTP is not configured in tests, so the token is surfaced directly.
	if data["devVerificationToken"] == "" || data["devVerificationToken"] == nil {
		t.Fatalf("expected devVerificationToken, got %s", rr.Body.String())
	}
}

func TestSignInAndRefreshRotation(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := store.User{
		ID:              "usr_1",
		Email:           "aki@example.com",
		DisplayName:     "Aki",
		PasswordHash:    string(hash),
		Role:            "user",
		IsEmailVerified: true,
	}
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) { return user, nil },
		getUserByIDFn:    func(context.Context, string) (store.User, error) { return user, nil },
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doJSON(t, server, http.MethodPost, "/api/auth/signin", "",
		`{"email":"aki@example.com","password":"correct-horse"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := parseEnvelope(t, rr)["data"].(map[string]any)
	refreshToken, _ := data["refreshToken"].(string)
	if data["accessToken"] == "" || refreshToken == "" {
		t.Fatalf("expected both tokens, got %s", rr.Body.String())
	}
	if data["role"] != "user" {
		t.Fatalf("expected role user, got %v", data["role"])
	}

	rr = doJSON(t, server, http.MethodPost, "/api/auth/refresh", "",
		`{"refreshToken":"`+refreshToken+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rotated := parseEnvelope(t, rr)["data"].(map[string]any)
	if rotated["refreshToken"] == refreshToken {
		t.Fatal("refresh must rotate the token")
	}

	// The presented token was revoked by the rotation.
	rr = doJSON(t, server, http.MethodPost, "/api/auth/refresh", "",
		`{"refreshToken":"`+refreshToken+`"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for reused refresh token, got %d", rr.Code)
	}
	payload := parseEnvelope(t, rr)
	if payload["errorCode"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED envelope, got %s", rr.Body.String())
	}
}

func TestSignInWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{ID: "usr_1", PasswordHash: string(hash), IsEmailVerified: true, Role: "user"}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doJSON(t, server, http.MethodPost, "/api/auth/signin", "",
		`{"email":"aki@example.com","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseEnvelope(t, rr)
	if payload["errorCode"] != "UNAUTHORIZED" || payload["error"] != "Invalid email or password" {
		t.Fatalf("unexpected envelope %s", rr.Body.String())
	}
}

func TestSignInUnverifiedEmail(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{ID: "usr_1", PasswordHash: string(hash), IsEmailVerified: false, Role: "user"}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doJSON(t, server, http.MethodPost, "/api/auth/signin", "",
		`{"email":"aki@example.com","password":"correct-horse"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPasswordResetRequestNeverRevealsAccounts(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	rr := doJSON(t, server, http.MethodPost, "/api/auth/reset-password/request", "",
		`{"email":"nobody@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown email, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := parseEnvelope(t, rr)["data"].(map[string]any)
	if _, leaked := data["devResetToken"]; leaked {
		t.Fatalf("unknown email must not produce a reset token: %s", rr.Body.String())
	}
}
