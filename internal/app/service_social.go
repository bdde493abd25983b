package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"anilog/internal/export"
	"anilog/internal/media"
	"anilog/internal/rbac"
	"anilog/internal/store"
	"anilog/internal/util"
	"anilog/internal/validate"
)

func userJSON(user store.User) map[string]any {
	return map[string]any{
		"id":          user.ID,
		"displayName": user.DisplayName,
		"bio":         user.Bio,
		"avatarUrl":   user.AvatarURL,
		"role":        user.Role,
		"createdAt":   user.CreatedAt,
	}
}

func listJSON(list store.List) map[string]any {
	return map[string]any{
		"id":          list.ID,
		"ownerId":     list.OwnerID,
		"ownerName":   list.OwnerName,
		"title":       list.Title,
		"description": list.Description,
		"isPublic":    list.IsPublic,
		"itemCount":   list.ItemCount,
		"createdAt":   list.CreatedAt,
		"updatedAt":   list.UpdatedAt,
	}
}

func commentJSON(comment store.Comment) map[string]any {
	return map[string]any{
		"id":         comment.ID,
		"seriesId":   comment.SeriesID,
		"authorId":   comment.AuthorID,
		"authorName": comment.AuthorName,
		"body":       comment.Body,
		"createdAt":  comment.CreatedAt,
	}
}

func notificationJSON(n store.Notification) map[string]any {
	return map[string]any{
		"id":        n.ID,
		"kind":      n.Kind,
		"actorId":   n.ActorID,
		"actorName": n.ActorName,
		"subjectId": n.SubjectID,
		"body":      n.Body,
		"read":      n.ReadAt != nil,
		"createdAt": n.CreatedAt,
	}
}

// FollowUser toggles a follow edge. Following yourself is rejected before
// the toggle runs, so a denied request leaves no trace.
func (s *Service) FollowUser(ctx context.Context, sess Session, targetID string) (map[string]any, error) {
	if sess.UserID == targetID {
		return nil, errSelfAction("You cannot follow yourself")
	}

	exists, err := s.store.UserExists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("User not found")
	}

	added, err := s.store.ToggleRelationship(ctx, store.RelationFollow, sess.UserID, targetID)
	if err != nil {
		return nil, err
	}

	if added {
		// Best effort; a lost notification never fails the follow.
		if err := s.store.InsertNotification(ctx, store.Notification{
			ID:      util.NewID("ntf"),
			UserID:  targetID,
			Kind:    "follow",
			ActorID: sess.UserID,
			Body:    fmt.Sprintf("%s started following you", sess.UserName),
		}); err != nil {
			log.Printf("notification: follow %s -> %s: %v", sess.UserID, targetID, err)
		}
	}

	followerCount, err := s.store.CountRelationships(ctx, store.RelationFollow, targetID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"following":     added,
		"followerCount": followerCount,
	}, nil
}

// FavoriteSeries toggles a favourite edge for the viewer.
func (s *Service) FavoriteSeries(ctx context.Context, sess Session, seriesID string) (map[string]any, error) {
	exists, err := s.store.SeriesExists(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("Series not found")
	}

	added, err := s.store.ToggleRelationship(ctx, store.RelationFavorite, sess.UserID, seriesID)
	if err != nil {
		return nil, err
	}

	favoriteCount, err := s.store.CountRelationships(ctx, store.RelationFavorite, seriesID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"favorited":     added,
		"favoriteCount": favoriteCount,
	}, nil
}

// TrackSeries toggles the viewer's watching/reading state for a series.
func (s *Service) TrackSeries(ctx context.Context, sess Session, seriesID string) (map[string]any, error) {
	exists, err := s.store.SeriesExists(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("Series not found")
	}

	added, err := s.store.ToggleRelationship(ctx, store.RelationTracking, sess.UserID, seriesID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tracking": added}, nil
}

func (s *Service) ListFollowersPage(ctx context.Context, userID string, input validate.PageInput) (map[string]any, error) {
	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("User not found")
	}

	users, total, err := s.store.ListFollowers(ctx, userID, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(users))
	for _, user := range users {
		mapped = append(mapped, userJSON(user))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

func (s *Service) ListFollowingPage(ctx context.Context, userID string, input validate.PageInput) (map[string]any, error) {
	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("User not found")
	}

	users, total, err := s.store.ListFollowing(ctx, userID, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(users))
	for _, user := range users {
		mapped = append(mapped, userJSON(user))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

func (s *Service) ListFavoritesPage(ctx context.Context, userID string, input validate.PageInput) (map[string]any, error) {
	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("User not found")
	}

	items, total, err := s.store.ListFavoriteSeries(ctx, userID, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, seriesJSON(item))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

// GetUserProfile returns a public profile with social counts. Profiles
// hidden via settings are only visible to their owner and to moderators.
func (s *Service) GetUserProfile(ctx context.Context, userID, viewerID, viewerRole string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("User not found")
		}
		return nil, err
	}
	if user.DeactivatedAt != nil {
		return nil, errNotFound("User not found")
	}

	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !settings.PublicProfile && viewerID != userID && !s.Can(viewerRole, rbac.ActionModerate) {
		return nil, errNotFound("User not found")
	}

	payload := userJSON(user)

	followers, err := s.store.CountRelationships(ctx, store.RelationFollow, userID)
	if err != nil {
		return nil, err
	}
	following, err := s.store.CountRelationshipsBySubject(ctx, store.RelationFollow, userID)
	if err != nil {
		return nil, err
	}
	favorites, err := s.store.CountRelationshipsBySubject(ctx, store.RelationFavorite, userID)
	if err != nil {
		return nil, err
	}
	payload["followerCount"] = followers
	payload["followingCount"] = following
	payload["favoriteCount"] = favorites

	if viewerID != "" && viewerID != userID {
		followingThem, err := s.store.RelationshipExists(ctx, store.RelationFollow, viewerID, userID)
		if err != nil {
			return nil, err
		}
		payload["viewerFollowing"] = followingThem
	}
	return payload, nil
}

var profileSchema = validate.Schema{
	"displayName": {Kind: validate.KindString, Required: true, MaxLen: 80},
	"bio":         {Kind: validate.KindString, MaxLen: 1000},
}

func (s *Service) UpdateProfile(ctx context.Context, sess Session, displayName, bio string) (map[string]any, error) {
	if _, violations := profileSchema.Apply(map[string]string{"displayName": displayName, "bio": bio}); len(violations) > 0 {
		return nil, violationsError(violations)
	}
	if err := s.store.UpdateUserProfile(ctx, sess.UserID, displayName, bio); err != nil {
		return nil, err
	}
	return s.GetUserProfile(ctx, sess.UserID, sess.UserID, sess.Role)
}

// UploadAvatar stores the image and records its URL on the user row.
func (s *Service) UploadAvatar(ctx context.Context, sess Session, contentType string, body io.Reader, size int64) (map[string]any, error) {
	if s.avatars == nil {
		return nil, domainError(503, "SERVER_ERROR", "Uploads are not configured", nil)
	}

	url, err := s.avatars.UploadAvatar(ctx, sess.UserID, contentType, body, size)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			return nil, errValidation("Unsupported image type", nil)
		}
		return nil, err
	}
	if err := s.store.UpdateUserAvatar(ctx, sess.UserID, url); err != nil {
		return nil, err
	}
	return map[string]any{"avatarUrl": url}, nil
}

func (s *Service) GetUserSettings(ctx context.Context, sess Session) (map[string]any, error) {
	settings, err := s.store.GetSettings(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return settingsJSON(settings), nil
}

var settingsSchema = validate.Schema{
	"language": {Kind: validate.KindEnum, Default: "en", Enum: []string{"en", "ja", "de", "fr", "es", "pt"}},
}

func (s *Service) UpdateUserSettings(ctx context.Context, sess Session, emailNotifications, publicProfile bool, language string) (map[string]any, error) {
	values, violations := settingsSchema.Apply(map[string]string{"language": language})
	if len(violations) > 0 {
		return nil, violationsError(violations)
	}

	settings := store.UserSettings{
		UserID:             sess.UserID,
		EmailNotifications: emailNotifications,
		PublicProfile:      publicProfile,
		Language:           values["language"].(string),
	}
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settingsJSON(settings), nil
}

func settingsJSON(settings store.UserSettings) map[string]any {
	return map[string]any{
		"emailNotifications": settings.EmailNotifications,
		"publicProfile":      settings.PublicProfile,
		"language":           settings.Language,
	}
}

var listSchema = validate.Schema{
	"title":       {Kind: validate.KindString, Required: true, MaxLen: 120},
	"description": {Kind: validate.KindString, MaxLen: 2000},
}

func (s *Service) CreateList(ctx context.Context, sess Session, title, description string, isPublic bool) (map[string]any, error) {
	if _, violations := listSchema.Apply(map[string]string{"title": title, "description": description}); len(violations) > 0 {
		return nil, violationsError(violations)
	}

	list := store.List{
		ID:          util.NewID("lst"),
		OwnerID:     sess.UserID,
		Title:       title,
		Description: description,
		IsPublic:    isPublic,
	}
	if err := s.store.InsertList(ctx, list); err != nil {
		return nil, err
	}
	return s.GetListDetail(ctx, list.ID, sess.UserID, sess.Role)
}

// GetListDetail returns a list with its entries. Private lists are only
// visible to their owner and to moderators.
func (s *Service) GetListDetail(ctx context.Context, listID, viewerID, viewerRole string) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("List not found")
		}
		return nil, err
	}
	if !list.IsPublic && list.OwnerID != viewerID && !s.Can(viewerRole, rbac.ActionModerate) {
		return nil, errNotFound("List not found")
	}

	entries, err := s.store.ListEntries(ctx, listID)
	if err != nil {
		return nil, err
	}

	payload := listJSON(list)
	mapped := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		mapped = append(mapped, map[string]any{
			"seriesId": entry.SeriesID,
			"title":    entry.Title,
			"kind":     entry.Kind,
			"year":     entry.Year,
			"addedAt":  entry.AddedAt,
		})
	}
	payload["entries"] = mapped
	payload["itemCount"] = len(mapped)
	return payload, nil
}

func (s *Service) UpdateList(ctx context.Context, sess Session, listID, title, description string, isPublic bool) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("List not found")
		}
		return nil, err
	}
	if list.OwnerID != sess.UserID {
		return nil, errForbidden()
	}
	if _, violations := listSchema.Apply(map[string]string{"title": title, "description": description}); len(violations) > 0 {
		return nil, violationsError(violations)
	}

	if _, err := s.store.UpdateList(ctx, listID, title, description, isPublic); err != nil {
		return nil, err
	}
	return s.GetListDetail(ctx, listID, sess.UserID, sess.Role)
}

// DeleteList is allowed for the owner and for moderators.
func (s *Service) DeleteList(ctx context.Context, sess Session, listID string) error {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("List not found")
		}
		return err
	}
	if list.OwnerID != sess.UserID && !s.Can(sess.Role, rbac.ActionModerate) {
		return errForbidden()
	}

	if _, err := s.store.DeleteList(ctx, listID); err != nil {
		return err
	}
	return nil
}

// ToggleListItem flips a series in or out of a list. Only the owner can
// change list contents.
func (s *Service) ToggleListItem(ctx context.Context, sess Session, listID, seriesID string) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("List not found")
		}
		return nil, err
	}
	if list.OwnerID != sess.UserID {
		return nil, errForbidden()
	}

	exists, err := s.store.SeriesExists(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("Series not found")
	}

	added, err := s.store.ToggleRelationship(ctx, store.RelationList, listID, seriesID)
	if err != nil {
		return nil, err
	}

	itemCount, err := s.store.CountRelationshipsBySubject(ctx, store.RelationList, listID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"inList":    added,
		"itemCount": itemCount,
	}, nil
}

func (s *Service) ListUserListsPage(ctx context.Context, ownerID, viewerID, viewerRole string, input validate.PageInput) (map[string]any, error) {
	exists, err := s.store.UserExists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("User not found")
	}

	publicOnly := ownerID != viewerID && !s.Can(viewerRole, rbac.ActionModerate)
	lists, total, err := s.store.ListListsByOwner(ctx, ownerID, publicOnly, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(lists))
	for _, list := range lists {
		mapped = append(mapped, listJSON(list))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

// ExportListPDF renders a list as a PDF, honoring the same visibility rule
// as GetListDetail.
func (s *Service) ExportListPDF(ctx context.Context, listID, viewerID, viewerRole string) ([]byte, string, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", errNotFound("List not found")
		}
		return nil, "", err
	}
	if !list.IsPublic && list.OwnerID != viewerID && !s.Can(viewerRole, rbac.ActionModerate) {
		return nil, "", errNotFound("List not found")
	}

	entries, err := s.store.ListEntries(ctx, listID)
	if err != nil {
		return nil, "", err
	}

	data := export.ListData{
		Title:       list.Title,
		Description: list.Description,
		OwnerName:   list.OwnerName,
		GeneratedAt: time.Now(),
	}
	for _, entry := range entries {
		data.Entries = append(data.Entries, export.ListEntry{
			Title: entry.Title,
			Kind:  entry.Kind,
			Year:  entry.Year,
		})
	}
	return export.ListPDF(data)
}

var commentSchema = validate.Schema{
	"body": {Kind: validate.KindString, Required: true, MaxLen: 2000},
}

func (s *Service) CreateComment(ctx context.Context, sess Session, seriesID, body string) (map[string]any, error) {
	exists, err := s.store.SeriesExists(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("Series not found")
	}
	if _, violations := commentSchema.Apply(map[string]string{"body": body}); len(violations) > 0 {
		return nil, violationsError(violations)
	}

	comment := store.Comment{
		ID:       util.NewID("cmt"),
		SeriesID: seriesID,
		AuthorID: sess.UserID,
		Body:     body,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}

	created, err := s.store.GetComment(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	return commentJSON(created), nil
}

func (s *Service) ListCommentsPage(ctx context.Context, seriesID string, input validate.PageInput) (map[string]any, error) {
	exists, err := s.store.SeriesExists(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNotFound("Series not found")
	}

	comments, total, err := s.store.ListComments(ctx, seriesID, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		mapped = append(mapped, commentJSON(comment))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

// DeleteComment is allowed for the author and for moderators.
func (s *Service) DeleteComment(ctx context.Context, sess Session, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("Comment not found")
		}
		return err
	}
	if comment.AuthorID != sess.UserID && !s.Can(sess.Role, rbac.ActionModerate) {
		return errForbidden()
	}

	if _, err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	return nil
}

func (s *Service) ListNotificationsPage(ctx context.Context, sess Session, unreadOnly bool, input validate.PageInput) (map[string]any, error) {
	notifications, total, err := s.store.ListNotifications(ctx, sess.UserID, unreadOnly, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		mapped = append(mapped, notificationJSON(n))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

func (s *Service) MarkNotificationsRead(ctx context.Context, sess Session) (map[string]any, error) {
	marked, err := s.store.MarkNotificationsRead(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"marked": marked}, nil
}
