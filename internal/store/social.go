package store

import (
	"context"
	"fmt"
)

// ToggleRelationship flips the (kind, subject, object) pair and reports the
// resulting state: true when the pair exists after the call, false when it
// does not. The delete runs first so a stored pair always toggles off; the
// insert relies on the unique constraint, so two concurrent toggles for a
// missing pair converge on one stored row with both callers seeing a valid
// outcome.
func (s *PostgresStore) ToggleRelationship(ctx context.Context, kind, subjectID, objectID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM relationships WHERE kind=$1 AND subject_id=$2 AND object_id=$3
	`, kind, subjectID, objectID)
	if err != nil {
		return false, fmt.Errorf("toggle delete: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle delete rows: %w", err)
	}
	if affected > 0 {
		return false, nil
	}

	result, err = s.db.ExecContext(ctx, `
		INSERT INTO relationships (kind, subject_id, object_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, subject_id, object_id) DO NOTHING
	`, kind, subjectID, objectID)
	if err != nil {
		return false, fmt.Errorf("toggle insert: %w", err)
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle insert rows: %w", err)
	}
	if affected == 0 {
		// A concurrent toggle inserted the pair between our delete and
		// insert. The pair exists now, which is what matters.
		return true, nil
	}
	return true, nil
}

func (s *PostgresStore) RelationshipExists(ctx context.Context, kind, subjectID, objectID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM relationships WHERE kind=$1 AND subject_id=$2 AND object_id=$3)
	`, kind, subjectID, objectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check relationship: %w", err)
	}
	return exists, nil
}

// CountRelationships counts by object, e.g. a user's followers or a series'
// favourite total.
func (s *PostgresStore) CountRelationships(ctx context.Context, kind, objectID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM relationships WHERE kind=$1 AND object_id=$2
	`, kind, objectID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count relationships: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) CountRelationshipsBySubject(ctx context.Context, kind, subjectID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM relationships WHERE kind=$1 AND subject_id=$2
	`, kind, subjectID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count relationships by subject: %w", err)
	}
	return total, nil
}

// ListFollowers returns the users following userID, newest follow first.
func (s *PostgresStore) ListFollowers(ctx context.Context, userID string, limit, offset int) ([]User, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM relationships r
		JOIN users ON users.id = r.subject_id
		WHERE r.kind=$1 AND r.object_id=$2 AND users.deactivated_at IS NULL
		ORDER BY r.created_at DESC, users.id ASC
		LIMIT $3 OFFSET $4
	`, RelationFollow, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list followers: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan follower: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate followers: %w", err)
	}

	total, err := s.CountRelationships(ctx, RelationFollow, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListFollowing returns the users userID follows, newest follow first.
func (s *PostgresStore) ListFollowing(ctx context.Context, userID string, limit, offset int) ([]User, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM relationships r
		JOIN users ON users.id = r.object_id
		WHERE r.kind=$1 AND r.subject_id=$2 AND users.deactivated_at IS NULL
		ORDER BY r.created_at DESC, users.id ASC
		LIMIT $3 OFFSET $4
	`, RelationFollow, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list following: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan following: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate following: %w", err)
	}

	total, err := s.CountRelationshipsBySubject(ctx, RelationFollow, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListFavoriteSeries returns the series a user has favourited, newest first.
func (s *PostgresStore) ListFavoriteSeries(ctx context.Context, userID string, limit, offset int) ([]Series, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+seriesColumns+`
		FROM relationships r
		JOIN series s ON s.id = r.object_id
		LEFT JOIN studios st ON st.id = s.studio_id
		WHERE r.kind=$1 AND r.subject_id=$2
		ORDER BY r.created_at DESC, s.id ASC
		LIMIT $3 OFFSET $4
	`, RelationFavorite, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	items := make([]Series, 0)
	for rows.Next() {
		item, err := scanSeries(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan favorite: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate favorites: %w", err)
	}

	total, err := s.CountRelationshipsBySubject(ctx, RelationFavorite, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PostgresStore) InsertList(ctx context.Context, list List) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lists (id, owner_id, title, description, is_public)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`, list.ID, list.OwnerID, list.Title, list.Description, list.IsPublic)
	if err != nil {
		return fmt.Errorf("insert list: %w", err)
	}
	return nil
}

const listColumns = `
	l.id, l.owner_id, u.display_name, l.title, COALESCE(l.description, ''), l.is_public,
	(SELECT COUNT(*) FROM relationships r WHERE r.kind='list' AND r.subject_id=l.id),
	l.created_at, l.updated_at
`

func scanList(row interface{ Scan(...any) error }) (List, error) {
	var list List
	err := row.Scan(
		&list.ID,
		&list.OwnerID,
		&list.OwnerName,
		&list.Title,
		&list.Description,
		&list.IsPublic,
		&list.ItemCount,
		&list.CreatedAt,
		&list.UpdatedAt,
	)
	return list, err
}

func (s *PostgresStore) GetList(ctx context.Context, listID string) (List, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+listColumns+`
		FROM lists l
		JOIN users u ON u.id = l.owner_id
		WHERE l.id=$1
	`, listID)
	return scanList(row)
}

func (s *PostgresStore) ListExists(ctx context.Context, listID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM lists WHERE id=$1)`, listID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check list: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) UpdateList(ctx context.Context, listID, title, description string, isPublic bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE lists SET title=$2, description=NULLIF($3, ''), is_public=$4, updated_at=NOW()
		WHERE id=$1
	`, listID, title, description, isPublic)
	if err != nil {
		return false, fmt.Errorf("update list: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update list rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteList removes the list and its series memberships.
func (s *PostgresStore) DeleteList(ctx context.Context, listID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete list: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM relationships WHERE kind=$1 AND subject_id=$2
	`, RelationList, listID); err != nil {
		return false, fmt.Errorf("delete list entries: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE id=$1`, listID)
	if err != nil {
		return false, fmt.Errorf("delete list: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete list rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete list: %w", err)
	}
	return affected > 0, nil
}

// ListListsByOwner returns an owner's lists, optionally restricted to public
// ones when a stranger is looking.
func (s *PostgresStore) ListListsByOwner(ctx context.Context, ownerID string, publicOnly bool, limit, offset int) ([]List, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listColumns+`
		FROM lists l
		JOIN users u ON u.id = l.owner_id
		WHERE l.owner_id=$1 AND (NOT $2 OR l.is_public)
		ORDER BY l.updated_at DESC, l.id ASC
		LIMIT $3 OFFSET $4
	`, ownerID, publicOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	items := make([]List, 0)
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan list: %w", err)
		}
		items = append(items, list)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate lists: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lists l WHERE l.owner_id=$1 AND (NOT $2 OR l.is_public)
	`, ownerID, publicOnly).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count lists: %w", err)
	}
	return items, total, nil
}

// ListEntries returns the series in a list, in the order they were added.
func (s *PostgresStore) ListEntries(ctx context.Context, listID string) ([]ListEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.kind, s.year, r.created_at
		FROM relationships r
		JOIN series s ON s.id = r.object_id
		WHERE r.kind=$1 AND r.subject_id=$2
		ORDER BY r.created_at ASC, s.id ASC
	`, RelationList, listID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	items := make([]ListEntry, 0)
	for rows.Next() {
		var entry ListEntry
		if err := rows.Scan(&entry.SeriesID, &entry.Title, &entry.Kind, &entry.Year, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("scan list entry: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list entries: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, series_id, author_id, body)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.SeriesID, comment.AuthorID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var comment Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.series_id, c.author_id, u.display_name, c.body, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id=$1
	`, commentID).Scan(&comment.ID, &comment.SeriesID, &comment.AuthorID, &comment.AuthorName, &comment.Body, &comment.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, seriesID string, limit, offset int) ([]Comment, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.series_id, c.author_id, u.display_name, c.body, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.series_id=$1
		ORDER BY c.created_at DESC, c.id ASC
		LIMIT $2 OFFSET $3
	`, seriesID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var comment Comment
		if err := rows.Scan(&comment.ID, &comment.SeriesID, &comment.AuthorID, &comment.AuthorName, &comment.Body, &comment.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate comments: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE series_id=$1`, seriesID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, notification Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, actor_id, subject_id, body)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
	`, notification.ID, notification.UserID, notification.Kind, notification.ActorID, notification.SubjectID, notification.Body)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.user_id, n.kind, COALESCE(n.actor_id, ''), COALESCE(u.display_name, ''),
			COALESCE(n.subject_id, ''), n.body, n.read_at, n.created_at
		FROM notifications n
		LEFT JOIN users u ON u.id = n.actor_id
		WHERE n.user_id=$1 AND (NOT $2 OR n.read_at IS NULL)
		ORDER BY n.created_at DESC, n.id ASC
		LIMIT $3 OFFSET $4
	`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.ActorID, &n.ActorName, &n.SubjectID, &n.Body, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notifications: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND (NOT $2 OR read_at IS NULL)
	`, userID, unreadOnly).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) MarkNotificationsRead(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=NOW() WHERE user_id=$1 AND read_at IS NULL
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications rows: %w", err)
	}
	return int(affected), nil
}
