package app

import (
	"fmt"
	"net/http"

	"anilog/internal/rbac"
)

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) < 3 {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	userID := parts[2]

	// /api/users/{id}
	if len(parts) == 3 {
		if r.Method != http.MethodGet {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		viewer := s.optionalSession(r)
		payload, err := s.service.GetUserProfile(r.Context(), userID, viewer.UserID, viewer.Role)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	if len(parts) != 4 {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[3] {
	case "follow":
		if r.Method != http.MethodPost {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if !s.service.Can(session.Role, rbac.ActionInteract) {
			writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		payload, err := s.service.FollowUser(r.Context(), session, userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
	case "followers", "following", "favorites", "lists":
		if r.Method != http.MethodGet {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		input, violations := s.service.Pagination(r.URL.Query())
		if len(violations) > 0 {
			writeErr(w, violationsError(violations))
			return
		}
		var payload map[string]any
		var err error
		switch parts[3] {
		case "followers":
			payload, err = s.service.ListFollowersPage(r.Context(), userID, input)
		case "following":
			payload, err = s.service.ListFollowingPage(r.Context(), userID, input)
		case "favorites":
			payload, err = s.service.ListFavoritesPage(r.Context(), userID, input)
		case "lists":
			viewer := s.optionalSession(r)
			payload, err = s.service.ListUserListsPage(r.Context(), userID, viewer.UserID, viewer.Role, input)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
	default:
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleLists(w http.ResponseWriter, r *http.Request, parts []string) {
	// /api/lists
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			// The collection is the session user's own lists, private ones
			// included.
			session, ok := s.requireSession(w, r)
			if !ok {
				return
			}
			input, violations := s.service.Pagination(r.URL.Query())
			if len(violations) > 0 {
				writeErr(w, violationsError(violations))
				return
			}
			payload, err := s.service.ListUserListsPage(r.Context(), session.UserID, session.UserID, session.Role, input)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
		case http.MethodPost:
			session, ok := s.requireSession(w, r)
			if !ok {
				return
			}
			if !s.service.Can(session.Role, rbac.ActionInteract) {
				writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				Title       string `json:"title"`
				Description string `json:"description"`
				IsPublic    bool   `json:"isPublic"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateList(r.Context(), session, body.Title, body.Description, body.IsPublic)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusCreated, payload)
		default:
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	listID := parts[2]

	// /api/lists/{id}
	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			viewer := s.optionalSession(r)
			payload, err := s.service.GetListDetail(r.Context(), listID, viewer.UserID, viewer.Role)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
		case http.MethodPut:
			session, ok := s.requireSession(w, r)
			if !ok {
				return
			}
			var body struct {
				Title       string `json:"title"`
				Description string `json:"description"`
				IsPublic    bool   `json:"isPublic"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateList(r.Context(), session, listID, body.Title, body.Description, body.IsPublic)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
		case http.MethodDelete:
			session, ok := s.requireSession(w, r)
			if !ok {
				return
			}
			if err := s.service.DeleteList(r.Context(), session, listID); err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, map[string]any{"deleted": true})
		default:
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	// /api/lists/{id}/export
	if len(parts) == 4 && parts[3] == "export" {
		if r.Method != http.MethodGet {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		viewer := s.optionalSession(r)
		pdf, filename, err := s.service.ExportListPDF(r.Context(), listID, viewer.UserID, viewer.Role)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
		return
	}

	// /api/lists/{id}/items/{seriesId}
	if len(parts) == 5 && parts[3] == "items" {
		if r.Method != http.MethodPost {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if !s.service.Can(session.Role, rbac.ActionInteract) {
			writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		payload, err := s.service.ToggleListItem(r.Context(), session, listID, parts[4])
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 3 || r.Method != http.MethodDelete {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteComment(r.Context(), session, parts[2]); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, parts []string) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	// /api/me
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetUserProfile(r.Context(), session.UserID, session.UserID, session.Role)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
		case http.MethodPut:
			var body struct {
				DisplayName string `json:"displayName"`
				Bio         string `json:"bio"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateProfile(r.Context(), session, body.DisplayName, body.Bio)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
		default:
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	if len(parts) == 3 {
		switch parts[2] {
		case "settings":
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.GetUserSettings(r.Context(), session)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeSuccess(w, http.StatusOK, payload)
			case http.MethodPut:
				var body struct {
					EmailNotifications bool   `json:"emailNotifications"`
					PublicProfile      bool   `json:"publicProfile"`
					Language           string `json:"language"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
					return
				}
				payload, err := s.service.UpdateUserSettings(r.Context(), session, body.EmailNotifications, body.PublicProfile, body.Language)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeSuccess(w, http.StatusOK, payload)
			default:
				writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			}
			return
		case "avatar":
			if r.Method != http.MethodPost {
				writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
				return
			}
			payload, err := s.service.UploadAvatar(r.Context(), session, r.Header.Get("Content-Type"), r.Body, r.ContentLength)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
			return
		case "password":
			if r.Method != http.MethodPost {
				writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
				return
			}
			var body struct {
				CurrentPassword string `json:"currentPassword"`
				NewPassword     string `json:"newPassword"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			if err := s.service.ChangePassword(r.Context(), session, body.CurrentPassword, body.NewPassword); err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
			return
		case "notifications":
			if r.Method != http.MethodGet {
				writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
				return
			}
			input, violations := s.service.Pagination(r.URL.Query())
			if len(violations) > 0 {
				writeErr(w, violationsError(violations))
				return
			}
			unreadOnly := r.URL.Query().Get("unread") == "true"
			payload, err := s.service.ListNotificationsPage(r.Context(), session, unreadOnly, input)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
			return
		}
	}

	// /api/me/notifications/read
	if len(parts) == 4 && parts[2] == "notifications" && parts[3] == "read" {
		if r.Method != http.MethodPost {
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		payload, err := s.service.MarkNotificationsRead(r.Context(), session)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
