package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) ListGenres(ctx context.Context, search string, limit, offset int) ([]Genre, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, created_at
		FROM genres
		WHERE ($1='' OR name ILIKE '%' || $1 || '%')
		ORDER BY name ASC, id ASC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	items := make([]Genre, 0)
	for rows.Next() {
		var item Genre
		if err := rows.Scan(&item.ID, &item.Name, &item.Slug, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan genre: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate genres: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM genres WHERE ($1='' OR name ILIKE '%' || $1 || '%')
	`, search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count genres: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) InsertGenre(ctx context.Context, genre Genre) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO genres (id, name, slug)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`, genre.ID, genre.Name, genre.Slug)
	if err != nil {
		return fmt.Errorf("insert genre: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert genre rows: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) UpdateGenre(ctx context.Context, genreID, name, slug string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE genres SET name=$2, slug=$3 WHERE id=$1
	`, genreID, name, slug)
	if err != nil {
		return false, fmt.Errorf("update genre: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update genre rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteGenre(ctx context.Context, genreID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM genres WHERE id=$1`, genreID)
	if err != nil {
		return false, fmt.Errorf("delete genre: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete genre rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListTags(ctx context.Context, search string, limit, offset int) ([]Tag, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM tags
		WHERE ($1='' OR name ILIKE '%' || $1 || '%')
		ORDER BY name ASC, id ASC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	items := make([]Tag, 0)
	for rows.Next() {
		var item Tag
		if err := rows.Scan(&item.ID, &item.Name, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan tag: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tags: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tags WHERE ($1='' OR name ILIKE '%' || $1 || '%')
	`, search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count tags: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) InsertTag(ctx context.Context, tag Tag) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, tag.ID, tag.Name)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert tag rows: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) UpdateTag(ctx context.Context, tagID, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE tags SET name=$2 WHERE id=$1`, tagID, name)
	if err != nil {
		return false, fmt.Errorf("update tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update tag rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteTag(ctx context.Context, tagID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id=$1`, tagID)
	if err != nil {
		return false, fmt.Errorf("delete tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete tag rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListStudios(ctx context.Context, search string, limit, offset int) ([]Studio, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(country, ''), created_at
		FROM studios
		WHERE ($1='' OR name ILIKE '%' || $1 || '%')
		ORDER BY name ASC, id ASC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list studios: %w", err)
	}
	defer rows.Close()

	items := make([]Studio, 0)
	for rows.Next() {
		var item Studio
		if err := rows.Scan(&item.ID, &item.Name, &item.Country, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan studio: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate studios: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM studios WHERE ($1='' OR name ILIKE '%' || $1 || '%')
	`, search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count studios: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) InsertStudio(ctx context.Context, studio Studio) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO studios (id, name, country)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (name) DO NOTHING
	`, studio.ID, studio.Name, studio.Country)
	if err != nil {
		return fmt.Errorf("insert studio: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert studio rows: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) UpdateStudio(ctx context.Context, studioID, name, country string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE studios SET name=$2, country=NULLIF($3, '') WHERE id=$1
	`, studioID, name, country)
	if err != nil {
		return false, fmt.Errorf("update studio: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update studio rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteStudio(ctx context.Context, studioID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM studios WHERE id=$1`, studioID)
	if err != nil {
		return false, fmt.Errorf("delete studio: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete studio rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListPlatforms(ctx context.Context, search string, limit, offset int) ([]Platform, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(url, ''), created_at
		FROM platforms
		WHERE ($1='' OR name ILIKE '%' || $1 || '%')
		ORDER BY name ASC, id ASC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list platforms: %w", err)
	}
	defer rows.Close()

	items := make([]Platform, 0)
	for rows.Next() {
		var item Platform
		if err := rows.Scan(&item.ID, &item.Name, &item.URL, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan platform: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate platforms: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM platforms WHERE ($1='' OR name ILIKE '%' || $1 || '%')
	`, search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count platforms: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) InsertPlatform(ctx context.Context, platform Platform) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO platforms (id, name, url)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (name) DO NOTHING
	`, platform.ID, platform.Name, platform.URL)
	if err != nil {
		return fmt.Errorf("insert platform: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert platform rows: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) UpdatePlatform(ctx context.Context, platformID, name, url string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE platforms SET name=$2, url=NULLIF($3, '') WHERE id=$1
	`, platformID, name, url)
	if err != nil {
		return false, fmt.Errorf("update platform: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update platform rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeletePlatform(ctx context.Context, platformID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM platforms WHERE id=$1`, platformID)
	if err != nil {
		return false, fmt.Errorf("delete platform: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete platform rows: %w", err)
	}
	return affected > 0, nil
}

const seriesColumns = `
	s.id, s.title, COALESCE(s.title_english, ''), COALESCE(s.synopsis, ''),
	s.kind, s.status, s.episodes, s.year,
	COALESCE(s.studio_id, ''), COALESCE(st.name, ''), COALESCE(s.cover_url, ''),
	s.created_at, s.updated_at
`

func scanSeries(row interface{ Scan(...any) error }) (Series, error) {
	var item Series
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.TitleEnglish,
		&item.Synopsis,
		&item.Kind,
		&item.Status,
		&item.Episodes,
		&item.Year,
		&item.StudioID,
		&item.StudioName,
		&item.CoverURL,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func seriesOrder(sort string) string {
	switch sort {
	case "year":
		return "s.year DESC, s.id ASC"
	case "created":
		return "s.created_at DESC, s.id ASC"
	default:
		return "s.title ASC, s.id ASC"
	}
}

// ListSeries applies the conjunctive filters and returns one page plus the
// total for the same filters.
func (s *PostgresStore) ListSeries(ctx context.Context, filter SeriesFilter, limit, offset int) ([]Series, int, error) {
	const where = `
		WHERE ($1='' OR s.title ILIKE '%' || $1 || '%' OR s.title_english ILIKE '%' || $1 || '%')
		  AND ($2='' OR s.kind=$2)
		  AND ($3='' OR s.status=$3)
		  AND ($4='' OR EXISTS(SELECT 1 FROM series_genres sg WHERE sg.series_id=s.id AND sg.genre_id=$4))
	`
	query := `
		SELECT ` + seriesColumns + `
		FROM series s
		LEFT JOIN studios st ON st.id = s.studio_id
	` + where + `
		ORDER BY ` + seriesOrder(filter.Sort) + `
		LIMIT $5 OFFSET $6
	`
	rows, err := s.db.QueryContext(ctx, query, filter.Search, filter.Kind, filter.Status, filter.GenreID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	items := make([]Series, 0)
	for rows.Next() {
		item, err := scanSeries(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan series: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate series: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM series s `+where, filter.Search, filter.Kind, filter.Status, filter.GenreID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count series: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) GetSeries(ctx context.Context, seriesID string) (Series, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+seriesColumns+`
		FROM series s
		LEFT JOIN studios st ON st.id = s.studio_id
		WHERE s.id=$1
	`, seriesID)
	item, err := scanSeries(row)
	if err != nil {
		return Series{}, err
	}

	genres, err := s.seriesGenreNames(ctx, seriesID)
	if err != nil {
		return Series{}, err
	}
	item.Genres = genres
	return item, nil
}

func (s *PostgresStore) seriesGenreNames(ctx context.Context, seriesID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.name
		FROM series_genres sg
		JOIN genres g ON g.id = sg.genre_id
		WHERE sg.series_id=$1
		ORDER BY g.name ASC
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("series genres: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan series genre: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series genres: %w", err)
	}
	return names, nil
}

func (s *PostgresStore) SeriesExists(ctx context.Context, seriesID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM series WHERE id=$1)`, seriesID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check series: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) InsertSeries(ctx context.Context, item Series, genreIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert series: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO series (id, title, title_english, synopsis, kind, status, episodes, year, studio_id, cover_url)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''))
	`, item.ID, item.Title, item.TitleEnglish, item.Synopsis, item.Kind, item.Status, item.Episodes, item.Year, item.StudioID, item.CoverURL); err != nil {
		return fmt.Errorf("insert series: %w", err)
	}

	for _, genreID := range genreIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO series_genres (series_id, genre_id)
			VALUES ($1, $2)
			ON CONFLICT (series_id, genre_id) DO NOTHING
		`, item.ID, genreID); err != nil {
			return fmt.Errorf("insert series genre: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) UpdateSeries(ctx context.Context, item Series, genreIDs []string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin update series: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE series
		SET title=$2, title_english=NULLIF($3, ''), synopsis=NULLIF($4, ''),
			kind=$5, status=$6, episodes=$7, year=$8,
			studio_id=NULLIF($9, ''), cover_url=NULLIF($10, ''), updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.TitleEnglish, item.Synopsis, item.Kind, item.Status, item.Episodes, item.Year, item.StudioID, item.CoverURL)
	if err != nil {
		return false, fmt.Errorf("update series: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update series rows: %w", err)
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	if genreIDs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM series_genres WHERE series_id=$1`, item.ID); err != nil {
			return false, fmt.Errorf("clear series genres: %w", err)
		}
		for _, genreID := range genreIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO series_genres (series_id, genre_id)
				VALUES ($1, $2)
				ON CONFLICT (series_id, genre_id) DO NOTHING
			`, item.ID, genreID); err != nil {
				return false, fmt.Errorf("insert series genre: %w", err)
			}
		}
	}
	return true, tx.Commit()
}

func (s *PostgresStore) DeleteSeries(ctx context.Context, seriesID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id=$1`, seriesID)
	if err != nil {
		return false, fmt.Errorf("delete series: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete series rows: %w", err)
	}
	return affected > 0, nil
}
