package search

import (
	"context"
	"fmt"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to the
// Postgres searcher.
type Service struct {
	meili *Meili
	pg    *PgSearch
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, pg *PgSearch) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.pg.Search(q)
	if err != nil {
		log.Printf("search: postgres error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSeries indexes a series, fire-and-forget. Catalog writes never wait
// on or fail because of the search index.
func (s *Service) IndexSeries(record SeriesRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSeries(record); err != nil {
			log.Printf("search: index series %s: %v", record.ID, err)
		}
	}()
}

// DeleteSeries removes a series from the search index, fire-and-forget.
func (s *Service) DeleteSeries(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteSeries(id); err != nil {
			log.Printf("search: delete series %s: %v", id, err)
		}
	}()
}

// ReindexAll reads every series from Postgres and pushes them to
// Meilisearch. Called at startup and on demand by administrators. Returns
// the number of records pushed.
func (s *Service) ReindexAll(ctx context.Context) (int, error) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return 0, nil
	}
	records, err := s.pg.LoadAllSeries(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex load: %w", err)
	}
	if err := s.meili.IndexAllSeries(records); err != nil {
		return 0, fmt.Errorf("reindex push: %w", err)
	}
	return len(records), nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
