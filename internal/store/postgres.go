package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicate reports a uniqueness-constraint hit surfaced as a value so
// callers can map it to a conflict instead of a fault.
var ErrDuplicate = errors.New("duplicate row")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, role, is_email_verified, verification_token)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (email) DO NOTHING
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create user rows: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

const userColumns = `
	id, email, display_name, password_hash, role,
	COALESCE(bio, ''), COALESCE(avatar_url, ''),
	is_email_verified, COALESCE(verification_token, ''),
	deactivated_at, created_at, updated_at
`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.Role,
		&user.Bio,
		&user.AvatarURL,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.DeactivatedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=LOWER($1)`, email)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	return scanUser(row)
}

func (s *PostgresStore) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE id=$1 AND deactivated_at IS NULL)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// ListUsers returns a page of accounts for the admin panel plus the total
// count for the same filters. Ordering is explicit with an id tie-break so
// pages stay stable across requests.
func (s *PostgresStore) ListUsers(ctx context.Context, search, role string, limit, offset int) ([]User, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1='' OR display_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		  AND ($2='' OR role=$2)
		ORDER BY created_at DESC, id ASC
		LIMIT $3 OFFSET $4
	`, search, role, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM users
		WHERE ($1='' OR display_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		  AND ($2='' OR role=$2)
	`, search, role).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID, displayName, bio string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name=$2, bio=NULLIF($3, ''), updated_at=NOW()
		WHERE id=$1
	`, userID, displayName, bio)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserAvatar(ctx context.Context, userID, avatarURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET avatar_url=$2, updated_at=NOW() WHERE id=$1
	`, userID, avatarURL)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, userID, role string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET role=$2, updated_at=NOW() WHERE id=$1
	`, userID, role)
	if err != nil {
		return false, fmt.Errorf("update role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update role rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeactivateUser(ctx context.Context, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET deactivated_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND deactivated_at IS NULL
	`, userID)
	if err != nil {
		return false, fmt.Errorf("deactivate user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate user rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// GetSettings returns the stored settings or the defaults when the user has
// never saved any.
func (s *PostgresStore) GetSettings(ctx context.Context, userID string) (UserSettings, error) {
	var settings UserSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, email_notifications, public_profile, language, updated_at
		FROM user_settings
		WHERE user_id=$1
	`, userID).Scan(&settings.UserID, &settings.EmailNotifications, &settings.PublicProfile, &settings.Language, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserSettings{UserID: userID, EmailNotifications: true, PublicProfile: true, Language: "en"}, nil
	}
	if err != nil {
		return UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, settings UserSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, email_notifications, public_profile, language)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET email_notifications=EXCLUDED.email_notifications,
			public_profile=EXCLUDED.public_profile,
			language=EXCLUDED.language,
			updated_at=NOW()
	`, settings.UserID, settings.EmailNotifications, settings.PublicProfile, settings.Language)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
