package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anilog/internal/auth"
	"anilog/internal/store"
)

func newServerAndToken(t *testing.T, fs *fakeStore, role string) (*HTTPServer, string) {
	t.Helper()
	userID := "usr-" + role
	// The session role comes from the user row, not the token claim, so the
	// fixture has to answer with the issued role.
	if fs.getUserByIDFn == nil {
		fs.getUserByIDFn = func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Test User", Role: role}, nil
		}
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	token, err := auth.IssueToken([]byte(svc.cfg.JWTSecret), auth.Claims{
		Sub:  userID,
		Name: "Test User",
		Role: role,
		JTI:  "jti-" + role,
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return server, token
}

func doJSON(t *testing.T, server *HTTPServer, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func parseEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestCurateEndpointsDeniedForRegularUsers(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "create series", method: http.MethodPost, path: "/api/series", body: `{"title":"X","kind":"anime","status":"airing"}`},
		{name: "update series", method: http.MethodPut, path: "/api/series/ser-1", body: `{"title":"X","kind":"anime","status":"airing"}`},
		{name: "delete series", method: http.MethodDelete, path: "/api/series/ser-1", body: ``},
		{name: "create genre", method: http.MethodPost, path: "/api/genres", body: `{"name":"Mecha"}`},
		{name: "delete studio", method: http.MethodDelete, path: "/api/studios/std-1", body: ``},
	}

	server, token := newServerAndToken(t, &fakeStore{}, "user")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, server, tc.method, tc.path, token, tc.body)
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
			}
			payload := parseEnvelope(t, rr)
			if payload["success"] != false || payload["errorCode"] != "FORBIDDEN" {
				t.Fatalf("expected FORBIDDEN envelope, got %s", rr.Body.String())
			}
		})
	}
}

func TestCurateMatrixOnSeriesRoutes(t *testing.T) {
	tests := []struct {
		role       string
		shouldDeny bool
	}{
		{role: "user", shouldDeny: true},
		{role: "moderator", shouldDeny: true},
		{role: "editor", shouldDeny: false},
		{role: "admin", shouldDeny: false},
	}

	for _, tc := range tests {
		t.Run(tc.role, func(t *testing.T) {
			server, token := newServerAndToken(t, &fakeStore{}, tc.role)
			rr := doJSON(t, server, http.MethodPost, "/api/series", token, `{"title":"Trigun","kind":"anime","status":"finished"}`)
			if tc.shouldDeny && rr.Code != http.StatusForbidden {
				t.Fatalf("expected forbidden for role=%s, got %d body=%s", tc.role, rr.Code, rr.Body.String())
			}
			if !tc.shouldDeny && rr.Code == http.StatusForbidden {
				t.Fatalf("expected role=%s to pass authz, got forbidden", tc.role)
			}
		})
	}
}

func TestAdminUserListAllowsModerators(t *testing.T) {
	for _, role := range []string{"user", "editor"} {
		t.Run(role, func(t *testing.T) {
			server, token := newServerAndToken(t, &fakeStore{}, role)
			rr := doJSON(t, server, http.MethodGet, "/api/admin/users", token, ``)
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403 for role=%s, got %d", role, rr.Code)
			}
		})
	}

	for _, role := range []string{"moderator", "admin"} {
		t.Run(role, func(t *testing.T) {
			server, token := newServerAndToken(t, &fakeStore{}, role)
			rr := doJSON(t, server, http.MethodGet, "/api/admin/users", token, ``)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200 for role=%s, got %d body=%s", role, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestAdminAccountMutationsStayAdminOnly(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "role change", method: http.MethodPut, path: "/api/admin/users/usr-2/role", body: `{"role":"editor"}`},
		{name: "deactivate", method: http.MethodPost, path: "/api/admin/users/usr-2/deactivate", body: ``},
		{name: "reindex", method: http.MethodPost, path: "/api/admin/search/reindex", body: ``},
	}

	server, token := newServerAndToken(t, &fakeStore{}, "moderator")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, server, tc.method, tc.path, token, tc.body)
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403 for moderator, got %d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

// Destructive catalog routes carry their own allowed-role sets instead of
// the blanket curate action.
func TestDeleteGatesFollowRoleMatrix(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		path       string
		wantStatus int
	}{
		{name: "editor cannot delete series", role: "editor", path: "/api/series/ser-1", wantStatus: http.StatusForbidden},
		{name: "moderator cannot delete series", role: "moderator", path: "/api/series/ser-1", wantStatus: http.StatusForbidden},
		{name: "admin deletes series", role: "admin", path: "/api/series/ser-1", wantStatus: http.StatusOK},
		{name: "editor cannot delete genre", role: "editor", path: "/api/genres/gen-1", wantStatus: http.StatusForbidden},
		{name: "moderator deletes genre", role: "moderator", path: "/api/genres/gen-1", wantStatus: http.StatusOK},
		{name: "moderator deletes tag", role: "moderator", path: "/api/tags/tag-1", wantStatus: http.StatusOK},
		{name: "moderator cannot delete studio", role: "moderator", path: "/api/studios/std-1", wantStatus: http.StatusForbidden},
		{name: "admin deletes studio", role: "admin", path: "/api/studios/std-1", wantStatus: http.StatusOK},
		{name: "moderator cannot delete platform", role: "moderator", path: "/api/platforms/plt-1", wantStatus: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, token := newServerAndToken(t, &fakeStore{}, tc.role)
			rr := doJSON(t, server, http.MethodDelete, tc.path, token, ``)
			if rr.Code != tc.wantStatus {
				t.Fatalf("role=%s path=%s: expected %d, got %d body=%s", tc.role, tc.path, tc.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

// The user row is the role authority; a stale token claim must not widen
// access after a demotion.
func TestSessionRoleComesFromUserRow(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Demoted", Role: "user"}, nil
		},
	}
	server, token := newServerAndToken(t, fs, "admin")

	rr := doJSON(t, server, http.MethodGet, "/api/admin/users", token, ``)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for demoted account, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestDeactivatedAccountTokenIsRejected(t *testing.T) {
	now := time.Now()
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Gone", Role: "admin", DeactivatedAt: &now}, nil
		},
	}
	server, token := newServerAndToken(t, fs, "admin")

	rr := doJSON(t, server, http.MethodGet, "/api/admin/users", token, ``)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deactivated account, got %d", rr.Code)
	}
}

func TestWriteEndpointsRequireSession(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	rr := doJSON(t, server, http.MethodPost, "/api/series/ser-1/favorite", "", ``)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	payload := parseEnvelope(t, rr)
	if payload["errorCode"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED envelope, got %s", rr.Body.String())
	}
}

func TestPublicCatalogReadsNeedNoSession(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	for _, path := range []string{"/api/series", "/api/genres", "/api/series/ser-1", "/api/users/usr-1"} {
		rr := doJSON(t, server, http.MethodGet, path, "", ``)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s without token, got %d body=%s", path, rr.Code, rr.Body.String())
		}
		payload := parseEnvelope(t, rr)
		if payload["success"] != true {
			t.Fatalf("expected success envelope for %s, got %s", path, rr.Body.String())
		}
	}
}
