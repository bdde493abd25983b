package app

import (
	"net/http"
	"strings"

	"anilog/internal/rbac"
)

func (s *HTTPServer) handleSeries(w http.ResponseWriter, r *http.Request, parts []string) {
	query := r.URL.Query()

	// /api/series
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			input, violations := s.service.Pagination(query)
			if len(violations) > 0 {
				writeErr(w, violationsError(violations))
				return
			}
			payload, err := s.service.ListSeriesPage(r.Context(), input,
				strings.TrimSpace(query.Get("kind")),
				strings.TrimSpace(query.Get("status")),
				strings.TrimSpace(query.Get("genreId")))
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
			if !s.service.Can(session.Role, rbac.ActionCurate) {
				writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body SeriesInput
			if err := decodeBody(r, &body); err != nil {
				writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateSeries(r.Context(), body)
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

	seriesID := parts[2]

	// /api/series/{id}
	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			viewer := s.optionalSession(r)
			payload, err := s.service.GetSeriesDetail(r.Context(), seriesID, viewer.UserID)
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
			if !s.service.Can(session.Role, rbac.ActionCurate) {
				writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body SeriesInput
			if err := decodeBody(r, &body); err != nil {
				writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateSeries(r.Context(), seriesID, body)
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
			// Editors curate but may not destroy catalog entries.
			if !s.service.Is(session.Role, rbac.RoleAdmin) {
				writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			if err := s.service.DeleteSeries(r.Context(), seriesID); err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, map[string]any{"deleted": true})
		default:
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	if len(parts) == 4 {
		switch parts[3] {
		case "comments":
			switch r.Method {
			case http.MethodGet:
				input, violations := s.service.Pagination(query)
				if len(violations) > 0 {
					writeErr(w, violationsError(violations))
					return
				}
				payload, err := s.service.ListCommentsPage(r.Context(), seriesID, input)
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
					Body string `json:"body"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
					return
				}
				payload, err := s.service.CreateComment(r.Context(), session, seriesID, body.Body)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeSuccess(w, http.StatusCreated, payload)
			default:
				writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			}
			return
		case "favorite":
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
			payload, err := s.service.FavoriteSeries(r.Context(), session, seriesID)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
			return
		case "track":
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
			payload, err := s.service.TrackSeries(r.Context(), session, seriesID)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
			return
		}
	}

	writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleReference serves the four flat reference entities with a shared
// routing shape.
func (s *HTTPServer) handleReference(w http.ResponseWriter, r *http.Request, parts []string) {
	entity := parts[1]

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			input, violations := s.service.Pagination(r.URL.Query())
			if len(violations) > 0 {
				writeErr(w, violationsError(violations))
				return
			}
			var payload map[string]any
			var err error
			switch entity {
			case "genres":
				payload, err = s.service.ListGenresPage(r.Context(), input)
			case "tags":
				payload, err = s.service.ListTagsPage(r.Context(), input)
			case "studios":
				payload, err = s.service.ListStudiosPage(r.Context(), input)
			case "platforms":
				payload, err = s.service.ListPlatformsPage(r.Context(), input)
			}
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
			if !s.service.Can(session.Role, rbac.ActionCurate) {
				writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				Name    string `json:"name"`
				Slug    string `json:"slug"`
				Country string `json:"country"`
				URL     string `json:"url"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			var payload map[string]any
			var err error
			switch entity {
			case "genres":
				payload, err = s.service.CreateGenre(r.Context(), body.Name, body.Slug)
			case "tags":
				payload, err = s.service.CreateTag(r.Context(), body.Name)
			case "studios":
				payload, err = s.service.CreateStudio(r.Context(), body.Name, body.Country)
			case "platforms":
				payload, err = s.service.CreatePlatform(r.Context(), body.Name, body.URL)
			}
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

	if len(parts) == 3 {
		id := parts[2]
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodPut:
			if !s.service.Can(session.Role, rbac.ActionCurate) {
				writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				Name    string `json:"name"`
				Slug    string `json:"slug"`
				Country string `json:"country"`
				URL     string `json:"url"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			var err error
			switch entity {
			case "genres":
				err = s.service.UpdateGenre(r.Context(), id, body.Name, body.Slug)
			case "tags":
				err = s.service.UpdateTag(r.Context(), id, body.Name)
			case "studios":
				err = s.service.UpdateStudio(r.Context(), id, body.Name, body.Country)
			case "platforms":
				err = s.service.UpdatePlatform(r.Context(), id, body.Name, body.URL)
			}
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, map[string]any{"updated": true})
		case http.MethodDelete:
			// Genre and tag removal is moderator cleanup work; studio and
			// platform removal touches series records, admins only.
			allowed := []rbac.Role{rbac.RoleModerator, rbac.RoleAdmin}
			if entity == "studios" || entity == "platforms" {
				allowed = []rbac.Role{rbac.RoleAdmin}
			}
			if !s.service.Is(session.Role, allowed...) {
				writeFailure(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var err error
			switch entity {
			case "genres":
				err = s.service.DeleteGenre(r.Context(), id)
			case "tags":
				err = s.service.DeleteTag(r.Context(), id)
			case "studios":
				err = s.service.DeleteStudio(r.Context(), id)
			case "platforms":
				err = s.service.DeletePlatform(r.Context(), id)
			}
			if err != nil {
				writeErr(w, err)
				return
			}
			writeSuccess(w, http.StatusOK, map[string]any{"deleted": true})
		default:
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	query := r.URL.Query()
	input, violations := s.service.Pagination(query)
	if len(violations) > 0 {
		writeErr(w, violationsError(violations))
		return
	}

	resp, err := s.service.SearchCatalog(r.Context(), input.Search,
		strings.TrimSpace(query.Get("kind")),
		strings.TrimSpace(query.Get("status")),
		input.Limit, offsetFor(input))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}
