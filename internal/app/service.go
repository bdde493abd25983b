package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"anilog/internal/auth"
	"anilog/internal/authpw"
	"anilog/internal/config"
	"anilog/internal/email"
	"anilog/internal/media"
	"anilog/internal/ratelimit"
	"anilog/internal/rbac"
	"anilog/internal/search"
	"anilog/internal/session"
	"anilog/internal/store"
	"anilog/internal/util"
	"anilog/internal/validate"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	UserExists(context.Context, string) (bool, error)
	ListUsers(context.Context, string, string, int, int) ([]store.User, int, error)
	UpdateUserProfile(context.Context, string, string, string) error
	UpdateUserAvatar(context.Context, string, string) error
	UpdateUserRole(context.Context, string, string) (bool, error)
	DeactivateUser(context.Context, string) (bool, error)
	UpdateUserVerificationToken(context.Context, string, string, time.Time) error
	VerifyUserEmail(context.Context, string) error
	UpdateUserPassword(context.Context, string, string) error
	CreatePasswordReset(context.Context, string, string, time.Time) error
	GetPasswordReset(context.Context, string) (string, error)
	MarkPasswordResetUsed(context.Context, string) error
	GetSettings(context.Context, string) (store.UserSettings, error)
	SaveSettings(context.Context, store.UserSettings) error

	ListGenres(context.Context, string, int, int) ([]store.Genre, int, error)
	InsertGenre(context.Context, store.Genre) error
	UpdateGenre(context.Context, string, string, string) (bool, error)
	DeleteGenre(context.Context, string) (bool, error)
	ListTags(context.Context, string, int, int) ([]store.Tag, int, error)
	InsertTag(context.Context, store.Tag) error
	UpdateTag(context.Context, string, string) (bool, error)
	DeleteTag(context.Context, string) (bool, error)
	ListStudios(context.Context, string, int, int) ([]store.Studio, int, error)
	InsertStudio(context.Context, store.Studio) error
	UpdateStudio(context.Context, string, string, string) (bool, error)
	DeleteStudio(context.Context, string) (bool, error)
	ListPlatforms(context.Context, string, int, int) ([]store.Platform, int, error)
	InsertPlatform(context.Context, store.Platform) error
	UpdatePlatform(context.Context, string, string, string) (bool, error)
	DeletePlatform(context.Context, string) (bool, error)
	ListSeries(context.Context, store.SeriesFilter, int, int) ([]store.Series, int, error)
	GetSeries(context.Context, string) (store.Series, error)
	SeriesExists(context.Context, string) (bool, error)
	InsertSeries(context.Context, store.Series, []string) error
	UpdateSeries(context.Context, store.Series, []string) (bool, error)
	DeleteSeries(context.Context, string) (bool, error)

	ToggleRelationship(context.Context, string, string, string) (bool, error)
	RelationshipExists(context.Context, string, string, string) (bool, error)
	CountRelationships(context.Context, string, string) (int, error)
	CountRelationshipsBySubject(context.Context, string, string) (int, error)
	ListFollowers(context.Context, string, int, int) ([]store.User, int, error)
	ListFollowing(context.Context, string, int, int) ([]store.User, int, error)
	ListFavoriteSeries(context.Context, string, int, int) ([]store.Series, int, error)
	InsertList(context.Context, store.List) error
	GetList(context.Context, string) (store.List, error)
	ListExists(context.Context, string) (bool, error)
	UpdateList(context.Context, string, string, string, bool) (bool, error)
	DeleteList(context.Context, string) (bool, error)
	ListListsByOwner(context.Context, string, bool, int, int) ([]store.List, int, error)
	ListEntries(context.Context, string) ([]store.ListEntry, error)
	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	DeleteComment(context.Context, string) (bool, error)
	ListComments(context.Context, string, int, int) ([]store.Comment, int, error)
	InsertNotification(context.Context, store.Notification) error
	ListNotifications(context.Context, string, bool, int, int) ([]store.Notification, int, error)
	MarkNotificationsRead(context.Context, string) (int, error)

	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, data session.TokenData, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (session.TokenData, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type rateLimiter interface {
	Check(ctx context.Context, key string, limit ratelimit.Limit) ratelimit.Decision
	Reset(ctx context.Context, key string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexSeries(record search.SeriesRecord)
	DeleteSeries(id string)
	ReindexAll(ctx context.Context) (int, error)
}

type mediaStore interface {
	UploadAvatar(ctx context.Context, userID, contentType string, body io.Reader, size int64) (string, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	limiter   rateLimiter
	passwords *authpw.Service
	email     *email.Service
	search    searchService
	avatars   mediaStore
}

// New wires the service. searchSvc and avatars may be nil when not
// configured; the affected operations degrade instead of failing.
func New(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, limiter *ratelimit.Limiter, searchSvc *search.Service, avatars *media.Store) *Service {
	svc := &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		passwords: authpw.NewService(dataStore),
		email: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}
	if limiter != nil {
		svc.limiter = limiter
	}
	if searchSvc != nil {
		svc.search = searchSvc
	}
	if avatars != nil {
		svc.avatars = avatars
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSessions(ctx context.Context) error {
	if s.sessions == nil {
		return fmt.Errorf("session store not configured")
	}
	return s.sessions.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Is reports whether role is one of the allowed roles. Routes with an
// explicit allowed-role set use this instead of an action check.
func (s *Service) Is(role string, allowed ...rbac.Role) bool {
	return rbac.Any(rbac.Normalize(role), allowed...)
}

func (s *Service) SMTPConfigured() bool {
	return s.email.IsConfigured()
}

// Pagination applies the configured page-size defaults to raw query values.
func (s *Service) Pagination(values url.Values) (validate.PageInput, []validate.Violation) {
	return validate.Pagination(values, s.cfg.DefaultPageLimit, s.cfg.MaxPageLimit)
}

func (s *Service) authLimit() ratelimit.Limit {
	return ratelimit.Limit{Max: s.cfg.AuthRateMax, Window: s.cfg.AuthRateWindow}
}

// checkAuthRate applies the auth bucket to a key. Returns a RATE_LIMITED
// domain error when the bucket is exhausted; nil when no limiter is wired.
func (s *Service) checkAuthRate(ctx context.Context, key string) error {
	if s.limiter == nil {
		return nil
	}
	decision := s.limiter.Check(ctx, key, s.authLimit())
	if !decision.Allowed {
		return errRateLimited(int(decision.RetryAfter.Seconds()))
	}
	return nil
}

// SignUp registers an account and sends the verification email. The
// verification token is only surfaced in the response when SMTP is not
// configured, as a development bypass.
func (s *Service) SignUp(ctx context.Context, remoteIP, emailAddr, password, displayName string) (map[string]any, error) {
	if err := s.checkAuthRate(ctx, "signup:"+remoteIP); err != nil {
		return nil, err
	}

	resp, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:       emailAddr,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"userId":  resp.UserID,
		"message": "Please check your email to verify your account",
	}

	if s.email.IsConfigured() {
		verifyURL := s.cfg.PublicBaseURL + "/verify-email?token=" + resp.VerificationToken
		go func() {
			if err := s.email.SendVerificationEmail(emailAddr, displayName, verifyURL); err != nil {
				log.Printf("email: send verification to %s: %v", emailAddr, err)
			}
		}()
	} else {
		payload["devVerificationToken"] = resp.VerificationToken
	}

	return payload, nil
}

// SignIn authenticates and issues a session. Failed attempts count against
// both the client IP and the target email so neither can be hammered.
func (s *Service) SignIn(ctx context.Context, remoteIP, emailAddr, password string) (Session, error) {
	if err := s.checkAuthRate(ctx, "signin:"+remoteIP); err != nil {
		return Session{}, err
	}
	if err := s.checkAuthRate(ctx, "signin-email:"+emailAddr); err != nil {
		return Session{}, err
	}

	resp, err := s.passwords.SignIn(ctx, authpw.SignInRequest{
		Email:    emailAddr,
		Password: password,
	})
	if err != nil {
		return Session{}, err
	}
	if resp.RequiresVerify {
		return Session{}, domainError(403, "FORBIDDEN", "Please verify your email before signing in", nil)
	}

	if s.limiter != nil {
		_ = s.limiter.Reset(ctx, "signin-email:"+emailAddr)
	}
	return s.issueSession(ctx, resp.User)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	err = s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), session.TokenData{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}, refreshExpires)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked before a
// new session is issued, so each token works exactly once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}

	// The account may have been deactivated or its role changed since the
	// refresh token was minted; the row is the authority.
	user, err := s.store.GetUserByID(ctx, data.UserID)
	if err != nil {
		return Session{}, errUnauthorized()
	}
	if user.DeactivatedAt != nil {
		return Session{}, errUnauthorized()
	}
	return s.issueSession(ctx, user)
}

// SessionFromToken resolves a bearer token into a session. Claims are
// cross-checked against the user row so stale tokens for deactivated
// accounts die immediately.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.passwords.VerifyEmail(ctx, token)
}

// RequestPasswordReset always reports success to the caller; the reset
// token is only surfaced directly when SMTP is not configured.
func (s *Service) RequestPasswordReset(ctx context.Context, remoteIP, emailAddr string) (map[string]any, error) {
	if err := s.checkAuthRate(ctx, "pwreset:"+remoteIP); err != nil {
		return nil, err
	}

	token, err := s.passwords.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"message": "If an account exists, a reset email has been sent",
	}

	if token != "" {
		if s.email.IsConfigured() {
			resetURL := s.cfg.PublicBaseURL + "/reset-password?token=" + token
			user, userErr := s.store.GetUserByEmail(ctx, emailAddr)
			name := emailAddr
			if userErr == nil {
				name = user.DisplayName
			}
			go func() {
				if err := s.email.SendPasswordResetEmail(emailAddr, name, resetURL); err != nil {
					log.Printf("email: send reset to %s: %v", emailAddr, err)
				}
			}()
		} else {
			payload["devResetToken"] = token
		}
	}

	return payload, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, lookupErr := s.store.GetPasswordReset(ctx, token)

	if err := s.passwords.ResetPassword(ctx, authpw.ResetPasswordRequest{
		Token:       token,
		NewPassword: newPassword,
	}); err != nil {
		return err
	}

	if lookupErr == nil && s.email.IsConfigured() {
		if user, err := s.store.GetUserByID(ctx, userID); err == nil {
			go func() {
				if err := s.email.SendPasswordChangedEmail(user.Email, user.DisplayName); err != nil {
					log.Printf("email: send password-changed to %s: %v", user.Email, err)
				}
			}()
		}
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, sess Session, currentPassword, newPassword string) error {
	if err := s.passwords.ChangePassword(ctx, sess.UserID, currentPassword, newPassword); err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return errValidation("Current password is incorrect", nil)
		}
		return err
	}

	if s.email.IsConfigured() {
		if user, err := s.store.GetUserByID(ctx, sess.UserID); err == nil {
			go func() {
				if err := s.email.SendPasswordChangedEmail(user.Email, user.DisplayName); err != nil {
					log.Printf("email: send password-changed to %s: %v", user.Email, err)
				}
			}()
		}
	}
	return nil
}

