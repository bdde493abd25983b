package app

import (
	"net/http"
	"strings"

	"anilog/internal/rbac"
)

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, parts []string) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	// /api/admin/users: moderators may inspect accounts, only admins may
	// change them.
	if len(parts) == 3 && parts[2] == "users" {
		if r.Method != http.MethodGet {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.service.Is(session.Role, rbac.RoleModerator, rbac.RoleAdmin) {
			writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		input, violations := s.service.Pagination(r.URL.Query())
		if len(violations) > 0 {
			writeErr(w, violationsError(violations))
			return
		}
		payload, err := s.service.ListUsersPage(r.Context(), input, strings.TrimSpace(r.URL.Query().Get("role")))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	// /api/admin/users/{id}/role
	if len(parts) == 5 && parts[2] == "users" && parts[4] == "role" {
		if r.Method != http.MethodPut {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.service.Can(session.Role, rbac.ActionAdmin) {
			writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateUserRole(r.Context(), session, parts[3], body.Role)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	// /api/admin/users/{id}/deactivate
	if len(parts) == 5 && parts[2] == "users" && parts[4] == "deactivate" {
		if r.Method != http.MethodPost {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.service.Can(session.Role, rbac.ActionAdmin) {
			writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		payload, err := s.service.DeactivateUser(r.Context(), session, parts[3])
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	// /api/admin/search/reindex
	if len(parts) == 4 && parts[2] == "search" && parts[3] == "reindex" {
		if r.Method != http.MethodPost {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.service.Can(session.Role, rbac.ActionAdmin) {
			writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		payload, err := s.service.ReindexSearch(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
