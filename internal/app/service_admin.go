package app

import (
	"context"
	"time"

	"anilog/internal/rbac"
	"anilog/internal/store"
	"anilog/internal/validate"
)

func adminUserJSON(user store.User) map[string]any {
	payload := userJSON(user)
	payload["email"] = user.Email
	payload["emailVerified"] = user.IsEmailVerified
	payload["deactivated"] = user.DeactivatedAt != nil
	return payload
}

// ListUsersPage returns the admin account listing, filterable by search
// text and role.
func (s *Service) ListUsersPage(ctx context.Context, input validate.PageInput, role string) (map[string]any, error) {
	if role != "" && string(rbac.Normalize(role)) != role {
		return nil, errValidation("Validation failed", []validate.Violation{
			{Field: "role", Message: "must be one of user, editor, moderator, admin"},
		})
	}

	users, total, err := s.store.ListUsers(ctx, input.Search, role, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(users))
	for _, user := range users {
		mapped = append(mapped, adminUserJSON(user))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

// UpdateUserRole changes an account's role. Admins cannot change their own
// role, so a deployment always keeps at least the acting admin.
func (s *Service) UpdateUserRole(ctx context.Context, sess Session, userID, role string) (map[string]any, error) {
	if sess.UserID == userID {
		return nil, errSelfAction("You cannot change your own role")
	}
	if role == "" || string(rbac.Normalize(role)) != role {
		return nil, errValidation("Validation failed", []validate.Violation{
			{Field: "role", Message: "must be one of user, editor, moderator, admin"},
		})
	}

	updated, err := s.store.UpdateUserRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, errNotFound("User not found")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return adminUserJSON(user), nil
}

// DeactivateUser disables an account. Its sessions die on the next token
// check because session resolution re-reads the user row.
func (s *Service) DeactivateUser(ctx context.Context, sess Session, userID string) (map[string]any, error) {
	if sess.UserID == userID {
		return nil, errSelfAction("You cannot deactivate your own account")
	}

	deactivated, err := s.store.DeactivateUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !deactivated {
		return nil, errNotFound("User not found")
	}
	return map[string]any{"userId": userID, "deactivated": true, "deactivatedAt": time.Now()}, nil
}

// ReindexSearch rebuilds the search index from the catalog.
func (s *Service) ReindexSearch(ctx context.Context) (map[string]any, error) {
	if s.search == nil {
		return map[string]any{"indexed": 0}, nil
	}
	indexed, err := s.search.ReindexAll(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"indexed": indexed}, nil
}
