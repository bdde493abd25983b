package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"anilog/internal/authpw"
	"anilog/internal/config"
	"anilog/internal/email"
	"anilog/internal/session"
	"anilog/internal/store"
)

type fakeStore struct {
	getUserByIDFn       func(context.Context, string) (store.User, error)
	getUserByEmailFn    func(context.Context, string) (store.User, error)
	userExistsFn        func(context.Context, string) (bool, error)
	seriesExistsFn      func(context.Context, string) (bool, error)
	toggleFn            func(context.Context, string, string, string) (bool, error)
	relationshipFn      func(context.Context, string, string, string) (bool, error)
	countByObjectFn     func(context.Context, string, string) (int, error)
	countBySubjectFn    func(context.Context, string, string) (int, error)
	getListFn           func(context.Context, string) (store.List, error)
	getCommentFn        func(context.Context, string) (store.Comment, error)
	deleteCommentFn     func(context.Context, string) (bool, error)
	getSettingsFn       func(context.Context, string) (store.UserSettings, error)
	updateUserRoleFn    func(context.Context, string, string) (bool, error)
	deactivateUserFn    func(context.Context, string) (bool, error)
	listUsersFn         func(context.Context, string, string, int, int) ([]store.User, int, error)
	getSeriesFn         func(context.Context, string) (store.Series, error)
	listEntriesFn       func(context.Context, string) ([]store.ListEntry, error)
	insertListFn        func(context.Context, store.List) error
	listNotificationsFn func(context.Context, string, bool, int, int) ([]store.Notification, int, error)
	listsByOwnerFn      func(context.Context, string, bool, int, int) ([]store.List, int, error)
	pingFn              func(context.Context) error

	toggleCalls   int
	notifications []store.Notification
}

func (f *fakeStore) CreateUser(context.Context, store.User) error { return nil }
func (f *fakeStore) GetUserByEmail(ctx context.Context, emailAddr string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, emailAddr)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, DisplayName: "User", Role: "user"}, nil
}
func (f *fakeStore) UserExists(ctx context.Context, userID string) (bool, error) {
	if f.userExistsFn != nil {
		return f.userExistsFn(ctx, userID)
	}
	return true, nil
}
func (f *fakeStore) ListUsers(ctx context.Context, search, role string, limit, offset int) ([]store.User, int, error) {
	if f.listUsersFn != nil {
		return f.listUsersFn(ctx, search, role, limit, offset)
	}
	return nil, 0, nil
}
func (f *fakeStore) UpdateUserProfile(context.Context, string, string, string) error { return nil }
func (f *fakeStore) UpdateUserAvatar(context.Context, string, string) error          { return nil }
func (f *fakeStore) UpdateUserRole(ctx context.Context, userID, role string) (bool, error) {
	if f.updateUserRoleFn != nil {
		return f.updateUserRoleFn(ctx, userID, role)
	}
	return true, nil
}
func (f *fakeStore) DeactivateUser(ctx context.Context, userID string) (bool, error) {
	if f.deactivateUserFn != nil {
		return f.deactivateUserFn(ctx, userID)
	}
	return true, nil
}
func (f *fakeStore) UpdateUserVerificationToken(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) VerifyUserEmail(context.Context, string) error             { return nil }
func (f *fakeStore) UpdateUserPassword(context.Context, string, string) error { return nil }
func (f *fakeStore) CreatePasswordReset(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) GetPasswordReset(context.Context, string) (string, error) {
	return "", sql.ErrNoRows
}
func (f *fakeStore) MarkPasswordResetUsed(context.Context, string) error { return nil }
func (f *fakeStore) GetSettings(ctx context.Context, userID string) (store.UserSettings, error) {
	if f.getSettingsFn != nil {
		return f.getSettingsFn(ctx, userID)
	}
	return store.UserSettings{UserID: userID, EmailNotifications: true, PublicProfile: true, Language: "en"}, nil
}
func (f *fakeStore) SaveSettings(context.Context, store.UserSettings) error { return nil }

func (f *fakeStore) ListGenres(context.Context, string, int, int) ([]store.Genre, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) InsertGenre(context.Context, store.Genre) error { return nil }
func (f *fakeStore) UpdateGenre(context.Context, string, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) DeleteGenre(context.Context, string) (bool, error) { return true, nil }
func (f *fakeStore) ListTags(context.Context, string, int, int) ([]store.Tag, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) InsertTag(context.Context, store.Tag) error                  { return nil }
func (f *fakeStore) UpdateTag(context.Context, string, string) (bool, error)     { return true, nil }
func (f *fakeStore) DeleteTag(context.Context, string) (bool, error)             { return true, nil }
func (f *fakeStore) ListStudios(context.Context, string, int, int) ([]store.Studio, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) InsertStudio(context.Context, store.Studio) error { return nil }
func (f *fakeStore) UpdateStudio(context.Context, string, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) DeleteStudio(context.Context, string) (bool, error) { return true, nil }
func (f *fakeStore) ListPlatforms(context.Context, string, int, int) ([]store.Platform, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) InsertPlatform(context.Context, store.Platform) error { return nil }
func (f *fakeStore) UpdatePlatform(context.Context, string, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) DeletePlatform(context.Context, string) (bool, error) { return true, nil }
func (f *fakeStore) ListSeries(context.Context, store.SeriesFilter, int, int) ([]store.Series, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) GetSeries(ctx context.Context, seriesID string) (store.Series, error) {
	if f.getSeriesFn != nil {
		return f.getSeriesFn(ctx, seriesID)
	}
	return store.Series{ID: seriesID, Title: "Series", Kind: "anime", Status: "airing"}, nil
}
func (f *fakeStore) SeriesExists(ctx context.Context, seriesID string) (bool, error) {
	if f.seriesExistsFn != nil {
		return f.seriesExistsFn(ctx, seriesID)
	}
	return true, nil
}
func (f *fakeStore) InsertSeries(context.Context, store.Series, []string) error { return nil }
func (f *fakeStore) UpdateSeries(context.Context, store.Series, []string) (bool, error) {
	return true, nil
}
func (f *fakeStore) DeleteSeries(context.Context, string) (bool, error) { return true, nil }

func (f *fakeStore) ToggleRelationship(ctx context.Context, kind, subjectID, objectID string) (bool, error) {
	f.toggleCalls++
	if f.toggleFn != nil {
		return f.toggleFn(ctx, kind, subjectID, objectID)
	}
	return true, nil
}
func (f *fakeStore) RelationshipExists(ctx context.Context, kind, subjectID, objectID string) (bool, error) {
	if f.relationshipFn != nil {
		return f.relationshipFn(ctx, kind, subjectID, objectID)
	}
	return false, nil
}
func (f *fakeStore) CountRelationships(ctx context.Context, kind, objectID string) (int, error) {
	if f.countByObjectFn != nil {
		return f.countByObjectFn(ctx, kind, objectID)
	}
	return 0, nil
}
func (f *fakeStore) CountRelationshipsBySubject(ctx context.Context, kind, subjectID string) (int, error) {
	if f.countBySubjectFn != nil {
		return f.countBySubjectFn(ctx, kind, subjectID)
	}
	return 0, nil
}
func (f *fakeStore) ListFollowers(context.Context, string, int, int) ([]store.User, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) ListFollowing(context.Context, string, int, int) ([]store.User, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) ListFavoriteSeries(context.Context, string, int, int) ([]store.Series, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) InsertList(ctx context.Context, list store.List) error {
	if f.insertListFn != nil {
		return f.insertListFn(ctx, list)
	}
	return nil
}
func (f *fakeStore) GetList(ctx context.Context, listID string) (store.List, error) {
	if f.getListFn != nil {
		return f.getListFn(ctx, listID)
	}
	return store.List{}, sql.ErrNoRows
}
func (f *fakeStore) ListExists(context.Context, string) (bool, error) { return true, nil }
func (f *fakeStore) UpdateList(context.Context, string, string, string, bool) (bool, error) {
	return true, nil
}
func (f *fakeStore) DeleteList(context.Context, string) (bool, error) { return true, nil }
func (f *fakeStore) ListListsByOwner(ctx context.Context, ownerID string, publicOnly bool, limit, offset int) ([]store.List, int, error) {
	if f.listsByOwnerFn != nil {
		return f.listsByOwnerFn(ctx, ownerID, publicOnly, limit, offset)
	}
	return nil, 0, nil
}
func (f *fakeStore) ListEntries(ctx context.Context, listID string) ([]store.ListEntry, error) {
	if f.listEntriesFn != nil {
		return f.listEntriesFn(ctx, listID)
	}
	return nil, nil
}
func (f *fakeStore) InsertComment(context.Context, store.Comment) error { return nil }
func (f *fakeStore) GetComment(ctx context.Context, commentID string) (store.Comment, error) {
	if f.getCommentFn != nil {
		return f.getCommentFn(ctx, commentID)
	}
	return store.Comment{}, sql.ErrNoRows
}
func (f *fakeStore) DeleteComment(ctx context.Context, commentID string) (bool, error) {
	if f.deleteCommentFn != nil {
		return f.deleteCommentFn(ctx, commentID)
	}
	return true, nil
}
func (f *fakeStore) ListComments(context.Context, string, int, int) ([]store.Comment, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) InsertNotification(_ context.Context, n store.Notification) error {
	f.notifications = append(f.notifications, n)
	return nil
}
func (f *fakeStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]store.Notification, int, error) {
	if f.listNotificationsFn != nil {
		return f.listNotificationsFn(ctx, userID, unreadOnly, limit, offset)
	}
	return nil, 0, nil
}
func (f *fakeStore) MarkNotificationsRead(context.Context, string) (int, error) { return 0, nil }
func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeSessions struct {
	saved map[string]session.TokenData
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{saved: make(map[string]session.TokenData)}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash string, data session.TokenData, _ time.Time) error {
	f.saved[tokenHash] = data
	return nil
}
func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (session.TokenData, error) {
	data, ok := f.saved[tokenHash]
	if !ok {
		return session.TokenData{}, session.ErrNotFound
	}
	return data, nil
}
func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.saved, tokenHash)
	return nil
}
func (f *fakeSessions) Ping(context.Context) error { return nil }

func newTestService(fs *fakeStore) *Service {
	cfg := config.Config{
		JWTSecret:        "test-secret",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       time.Hour,
		DefaultPageLimit: 20,
		MaxPageLimit:     100,
		AuthRateMax:      10,
		AuthRateWindow:   time.Minute,
	}
	return &Service{
		cfg:       cfg,
		store:     fs,
		sessions:  newFakeSessions(),
		passwords: authpw.NewService(fs),
		email:     email.NewService(email.Config{}),
	}
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %v", err)
	}
	return domainErr.Code
}

func TestFollowUserToggle(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	svc := newTestService(fs)
	sess := Session{UserID: "usr_1", UserName: "Aki", Role: "user"}

	following := false
	fs.toggleFn = func(_ context.Context, kind, subjectID, objectID string) (bool, error) {
		if kind != store.RelationFollow || subjectID != "usr_1" || objectID != "usr_2" {
			t.Fatalf("unexpected toggle args: %s %s %s", kind, subjectID, objectID)
		}
		following = !following
		return following, nil
	}

	payload, err := svc.FollowUser(ctx, sess, "usr_2")
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if payload["following"] != true {
		t.Fatalf("expected following=true, got %v", payload["following"])
	}
	if len(fs.notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(fs.notifications))
	}
	if fs.notifications[0].UserID != "usr_2" || fs.notifications[0].Kind != "follow" {
		t.Fatalf("unexpected notification %+v", fs.notifications[0])
	}

	payload, err = svc.FollowUser(ctx, sess, "usr_2")
	if err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if payload["following"] != false {
		t.Fatalf("expected following=false, got %v", payload["following"])
	}
	if len(fs.notifications) != 1 {
		t.Fatalf("unfollow must not notify, got %d notifications", len(fs.notifications))
	}
	if fs.toggleCalls != 2 {
		t.Fatalf("expected 2 toggle calls, got %d", fs.toggleCalls)
	}
}

func TestFollowUserRejectsSelf(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)
	sess := Session{UserID: "usr_1", Role: "user"}

	_, err := svc.FollowUser(context.Background(), sess, "usr_1")
	if code := domainCode(t, err); code != "SELF_ACTION" {
		t.Fatalf("expected SELF_ACTION, got %s", code)
	}
	if fs.toggleCalls != 0 {
		t.Fatalf("self-follow must not reach the store, got %d toggle calls", fs.toggleCalls)
	}
}

func TestFollowUserUnknownTarget(t *testing.T) {
	fs := &fakeStore{
		userExistsFn: func(context.Context, string) (bool, error) { return false, nil },
	}
	svc := newTestService(fs)

	_, err := svc.FollowUser(context.Background(), Session{UserID: "usr_1", Role: "user"}, "usr_missing")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
	if fs.toggleCalls != 0 {
		t.Fatalf("missing target must not reach the toggle, got %d calls", fs.toggleCalls)
	}
}

func TestFavoriteSeriesToggle(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{
		countByObjectFn: func(context.Context, string, string) (int, error) { return 7, nil },
	}
	svc := newTestService(fs)

	payload, err := svc.FavoriteSeries(ctx, Session{UserID: "usr_1", Role: "user"}, "ser_1")
	if err != nil {
		t.Fatalf("favorite: %v", err)
	}
	if payload["favorited"] != true {
		t.Fatalf("expected favorited=true, got %v", payload["favorited"])
	}
	if payload["favoriteCount"] != 7 {
		t.Fatalf("expected favoriteCount=7, got %v", payload["favoriteCount"])
	}
}

func TestFavoriteSeriesUnknown(t *testing.T) {
	fs := &fakeStore{
		seriesExistsFn: func(context.Context, string) (bool, error) { return false, nil },
	}
	svc := newTestService(fs)

	_, err := svc.FavoriteSeries(context.Background(), Session{UserID: "usr_1", Role: "user"}, "ser_x")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
	if fs.toggleCalls != 0 {
		t.Fatalf("missing series must not reach the toggle")
	}
}

func TestToggleListItemOwnership(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{
		getListFn: func(_ context.Context, listID string) (store.List, error) {
			return store.List{ID: listID, OwnerID: "usr_owner", Title: "Watchlist"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.ToggleListItem(ctx, Session{UserID: "usr_stranger", Role: "user"}, "lst_1", "ser_1")
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}
	if fs.toggleCalls != 0 {
		t.Fatalf("denied toggle must not reach the store")
	}

	payload, err := svc.ToggleListItem(ctx, Session{UserID: "usr_owner", Role: "user"}, "lst_1", "ser_1")
	if err != nil {
		t.Fatalf("owner toggle: %v", err)
	}
	if payload["inList"] != true {
		t.Fatalf("expected inList=true, got %v", payload["inList"])
	}
	if fs.toggleCalls != 1 {
		t.Fatalf("expected 1 toggle call, got %d", fs.toggleCalls)
	}
}

func TestDeleteCommentAuthorization(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{
		getCommentFn: func(_ context.Context, commentID string) (store.Comment, error) {
			return store.Comment{ID: commentID, AuthorID: "usr_author"}, nil
		},
	}
	svc := newTestService(fs)

	if err := svc.DeleteComment(ctx, Session{UserID: "usr_author", Role: "user"}, "cmt_1"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if err := svc.DeleteComment(ctx, Session{UserID: "usr_mod", Role: "moderator"}, "cmt_1"); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}

	err := svc.DeleteComment(ctx, Session{UserID: "usr_other", Role: "user"}, "cmt_1")
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}
}

func TestUpdateUserRoleGuards(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	svc := newTestService(fs)
	admin := Session{UserID: "usr_admin", Role: "admin"}

	_, err := svc.UpdateUserRole(ctx, admin, "usr_admin", "user")
	if code := domainCode(t, err); code != "SELF_ACTION" {
		t.Fatalf("expected SELF_ACTION for own role, got %s", code)
	}

	_, err = svc.UpdateUserRole(ctx, admin, "usr_2", "superuser")
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR for unknown role, got %s", code)
	}

	fs.updateUserRoleFn = func(context.Context, string, string) (bool, error) { return false, nil }
	_, err = svc.UpdateUserRole(ctx, admin, "usr_missing", "editor")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
}

func TestDeactivateUserRejectsSelf(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.DeactivateUser(context.Background(), Session{UserID: "usr_admin", Role: "admin"}, "usr_admin")
	if code := domainCode(t, err); code != "SELF_ACTION" {
		t.Fatalf("expected SELF_ACTION, got %s", code)
	}
}

func TestGetUserProfileVisibility(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{
		getSettingsFn: func(_ context.Context, userID string) (store.UserSettings, error) {
			return store.UserSettings{UserID: userID, PublicProfile: false, Language: "en"}, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.GetUserProfile(ctx, "usr_hidden", "usr_hidden", "user"); err != nil {
		t.Fatalf("owner must see own hidden profile: %v", err)
	}
	if _, err := svc.GetUserProfile(ctx, "usr_hidden", "usr_mod", "moderator"); err != nil {
		t.Fatalf("moderator must see hidden profile: %v", err)
	}

	_, err := svc.GetUserProfile(ctx, "usr_hidden", "usr_stranger", "user")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for stranger, got %s", code)
	}
	_, err = svc.GetUserProfile(ctx, "usr_hidden", "", "")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for anonymous, got %s", code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Aki", Role: "editor"}, nil
		},
	}
	svc := newTestService(fs)

	issued, err := svc.issueSession(ctx, store.User{ID: "usr_1", DisplayName: "Aki", Role: "editor"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	if issued.Token == "" || issued.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	resolved, err := svc.SessionFromToken(ctx, issued.Token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if resolved.UserID != "usr_1" || resolved.Role != "editor" {
		t.Fatalf("unexpected session %+v", resolved)
	}

	refreshed, err := svc.Refresh(ctx, issued.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == issued.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	// Single use: the old refresh token is gone.
	if _, err := svc.Refresh(ctx, issued.RefreshToken); err == nil {
		t.Fatal("expected second refresh with the same token to fail")
	}
}

func TestSessionRejectsDeactivatedUser(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Gone", Role: "user", DeactivatedAt: &now}, nil
		},
	}
	svc := newTestService(fs)

	issued, err := svc.issueSession(ctx, store.User{ID: "usr_1", DisplayName: "Gone", Role: "user"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, issued.Token); err == nil {
		t.Fatal("expected token for deactivated account to be rejected")
	}
	if _, err := svc.Refresh(ctx, issued.RefreshToken); err == nil {
		t.Fatal("expected refresh for deactivated account to be rejected")
	}
}
