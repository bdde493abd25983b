package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher using plain ILIKE matching against the
// series table as a fallback.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

// Search matches the query against title, english title and synopsis.
func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const where = `
		WHERE (title ILIKE '%' || $1 || '%'
			OR title_english ILIKE '%' || $1 || '%'
			OR synopsis ILIKE '%' || $1 || '%')
		  AND ($2='' OR kind=$2)
		  AND ($3='' OR status=$3)
	`

	ctx := context.Background()

	var total int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM series `+where, q.Text, q.Kind, q.Status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(LEFT(synopsis, 200), ''), kind, status, year
		FROM series
	`+where+`
		ORDER BY title ASC, id ASC
		LIMIT $4 OFFSET $5
	`, q.Text, q.Kind, q.Status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.Kind, &r.Status, &r.Year); err != nil {
			return nil, 0, fmt.Errorf("pg search scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllSeries returns all series records for full reindexing.
func (p *PgSearch) LoadAllSeries(ctx context.Context) ([]SeriesRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(title_english, ''), COALESCE(synopsis, ''), kind, status, year
		FROM series
	`)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	records := make([]SeriesRecord, 0)
	for rows.Next() {
		var r SeriesRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.TitleEnglish, &r.Synopsis, &r.Kind, &r.Status, &r.Year); err != nil {
			return nil, fmt.Errorf("scan series record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series records: %w", err)
	}
	return records, nil
}
