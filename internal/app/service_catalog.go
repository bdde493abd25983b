package app

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"anilog/internal/search"
	"anilog/internal/store"
	"anilog/internal/util"
	"anilog/internal/validate"
)

// pageEnvelope is the shared shape for every paginated listing.
func pageEnvelope(items any, total, page, limit int) map[string]any {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return map[string]any{
		"items":      items,
		"total":      total,
		"page":       page,
		"limit":      limit,
		"totalPages": totalPages,
	}
}

func offsetFor(input validate.PageInput) int {
	return (input.Page - 1) * input.Limit
}

func violationsError(violations []validate.Violation) error {
	return errValidation("Validation failed", violations)
}

func seriesJSON(item store.Series) map[string]any {
	return map[string]any{
		"id":           item.ID,
		"title":        item.Title,
		"titleEnglish": item.TitleEnglish,
		"synopsis":     item.Synopsis,
		"kind":         item.Kind,
		"status":       item.Status,
		"episodes":     item.Episodes,
		"year":         item.Year,
		"studioId":     item.StudioID,
		"studioName":   item.StudioName,
		"coverUrl":     item.CoverURL,
		"genres":       item.Genres,
		"createdAt":    item.CreatedAt,
		"updatedAt":    item.UpdatedAt,
	}
}

func genreJSON(item store.Genre) map[string]any {
	return map[string]any{"id": item.ID, "name": item.Name, "slug": item.Slug, "createdAt": item.CreatedAt}
}

func tagJSON(item store.Tag) map[string]any {
	return map[string]any{"id": item.ID, "name": item.Name, "createdAt": item.CreatedAt}
}

func studioJSON(item store.Studio) map[string]any {
	return map[string]any{"id": item.ID, "name": item.Name, "country": item.Country, "createdAt": item.CreatedAt}
}

func platformJSON(item store.Platform) map[string]any {
	return map[string]any{"id": item.ID, "name": item.Name, "url": item.URL, "createdAt": item.CreatedAt}
}

var seriesSchema = validate.Schema{
	"title":        {Kind: validate.KindString, Required: true, MaxLen: 200},
	"titleEnglish": {Kind: validate.KindString, MaxLen: 200},
	"synopsis":     {Kind: validate.KindString, MaxLen: 5000},
	"kind":         {Kind: validate.KindEnum, Required: true, Enum: []string{"anime", "manga"}},
	"status":       {Kind: validate.KindEnum, Required: true, Enum: []string{"airing", "finished", "upcoming"}},
	"episodes":     {Kind: validate.KindInt, Default: "0", Min: validate.MinInt(0)},
	"year":         {Kind: validate.KindInt, Default: "0"},
	"studioId":     {Kind: validate.KindString, MaxLen: 64},
	"coverUrl":     {Kind: validate.KindString, MaxLen: 500},
}

// SeriesInput carries untrusted series fields from the HTTP layer.
type SeriesInput struct {
	Title        string   `json:"title"`
	TitleEnglish string   `json:"titleEnglish"`
	Synopsis     string   `json:"synopsis"`
	Kind         string   `json:"kind"`
	Status       string   `json:"status"`
	Episodes     int      `json:"episodes"`
	Year         int      `json:"year"`
	StudioID     string   `json:"studioId"`
	CoverURL     string   `json:"coverUrl"`
	GenreIDs     []string `json:"genreIds"`
}

func (in SeriesInput) values() map[string]string {
	return map[string]string{
		"title":        in.Title,
		"titleEnglish": in.TitleEnglish,
		"synopsis":     in.Synopsis,
		"kind":         in.Kind,
		"status":       in.Status,
		"episodes":     strconv.Itoa(in.Episodes),
		"year":         strconv.Itoa(in.Year),
		"studioId":     in.StudioID,
		"coverUrl":     in.CoverURL,
	}
}

// ListSeriesPage returns one catalog page. Filters are conjunctive; an
// unknown sort key falls back to the title ordering.
func (s *Service) ListSeriesPage(ctx context.Context, input validate.PageInput, kind, status, genreID string) (map[string]any, error) {
	filter := store.SeriesFilter{
		Search:  input.Search,
		Kind:    kind,
		Status:  status,
		GenreID: genreID,
		Sort:    input.Sort,
	}

	var violations []validate.Violation
	if kind != "" && kind != "anime" && kind != "manga" {
		violations = append(violations, validate.Violation{Field: "kind", Message: "must be one of anime, manga"})
	}
	if status != "" && status != "airing" && status != "finished" && status != "upcoming" {
		violations = append(violations, validate.Violation{Field: "status", Message: "must be one of airing, finished, upcoming"})
	}
	if len(violations) > 0 {
		return nil, violationsError(violations)
	}

	items, total, err := s.store.ListSeries(ctx, filter, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}

	mapped := make([]map[string]any, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, seriesJSON(item))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

// GetSeriesDetail returns one series with its favourite count and, when a
// viewer is known, their favourite/tracking state.
func (s *Service) GetSeriesDetail(ctx context.Context, seriesID, viewerID string) (map[string]any, error) {
	item, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Series not found")
		}
		return nil, err
	}

	payload := seriesJSON(item)

	favorites, err := s.store.CountRelationships(ctx, store.RelationFavorite, seriesID)
	if err != nil {
		return nil, err
	}
	payload["favoriteCount"] = favorites

	if viewerID != "" {
		favorited, err := s.store.RelationshipExists(ctx, store.RelationFavorite, viewerID, seriesID)
		if err != nil {
			return nil, err
		}
		tracked, err := s.store.RelationshipExists(ctx, store.RelationTracking, viewerID, seriesID)
		if err != nil {
			return nil, err
		}
		payload["viewerFavorited"] = favorited
		payload["viewerTracking"] = tracked
	}
	return payload, nil
}

func (s *Service) CreateSeries(ctx context.Context, input SeriesInput) (map[string]any, error) {
	if _, violations := seriesSchema.Apply(input.values()); len(violations) > 0 {
		return nil, violationsError(violations)
	}

	item := store.Series{
		ID:           util.NewID("ser"),
		Title:        input.Title,
		TitleEnglish: input.TitleEnglish,
		Synopsis:     input.Synopsis,
		Kind:         input.Kind,
		Status:       input.Status,
		Episodes:     input.Episodes,
		Year:         input.Year,
		StudioID:     input.StudioID,
		CoverURL:     input.CoverURL,
	}
	if err := s.store.InsertSeries(ctx, item, input.GenreIDs); err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexSeries(search.SeriesRecord{
			ID:           item.ID,
			Title:        item.Title,
			TitleEnglish: item.TitleEnglish,
			Synopsis:     item.Synopsis,
			Kind:         item.Kind,
			Status:       item.Status,
			Year:         item.Year,
		})
	}
	return s.GetSeriesDetail(ctx, item.ID, "")
}

func (s *Service) UpdateSeries(ctx context.Context, seriesID string, input SeriesInput) (map[string]any, error) {
	if _, violations := seriesSchema.Apply(input.values()); len(violations) > 0 {
		return nil, violationsError(violations)
	}

	item := store.Series{
		ID:           seriesID,
		Title:        input.Title,
		TitleEnglish: input.TitleEnglish,
		Synopsis:     input.Synopsis,
		Kind:         input.Kind,
		Status:       input.Status,
		Episodes:     input.Episodes,
		Year:         input.Year,
		StudioID:     input.StudioID,
		CoverURL:     input.CoverURL,
	}
	updated, err := s.store.UpdateSeries(ctx, item, input.GenreIDs)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, errNotFound("Series not found")
	}

	if s.search != nil {
		s.search.IndexSeries(search.SeriesRecord{
			ID:           seriesID,
			Title:        item.Title,
			TitleEnglish: item.TitleEnglish,
			Synopsis:     item.Synopsis,
			Kind:         item.Kind,
			Status:       item.Status,
			Year:         item.Year,
		})
	}
	return s.GetSeriesDetail(ctx, seriesID, "")
}

func (s *Service) DeleteSeries(ctx context.Context, seriesID string) error {
	deleted, err := s.store.DeleteSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Series not found")
	}
	if s.search != nil {
		s.search.DeleteSeries(seriesID)
	}
	return nil
}

// SearchCatalog runs the full-text search facade.
func (s *Service) SearchCatalog(ctx context.Context, text, kind, status string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:   text,
		Kind:   kind,
		Status: status,
		Limit:  limit,
		Offset: offset,
	}), nil
}

var nameSchema = validate.Schema{
	"name": {Kind: validate.KindString, Required: true, MaxLen: 100},
}

func (s *Service) ListGenresPage(ctx context.Context, input validate.PageInput) (map[string]any, error) {
	items, total, err := s.store.ListGenres(ctx, input.Search, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, genreJSON(item))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

func (s *Service) CreateGenre(ctx context.Context, name, slug string) (map[string]any, error) {
	if _, violations := nameSchema.Apply(map[string]string{"name": name}); len(violations) > 0 {
		return nil, violationsError(violations)
	}
	if slug == "" {
		slug = util.Slugify(name)
	}
	genre := store.Genre{ID: util.NewID("gen"), Name: name, Slug: slug}
	if err := s.store.InsertGenre(ctx, genre); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errConflict("Genre already exists")
		}
		return nil, err
	}
	return genreJSON(genre), nil
}

func (s *Service) UpdateGenre(ctx context.Context, genreID, name, slug string) error {
	if _, violations := nameSchema.Apply(map[string]string{"name": name}); len(violations) > 0 {
		return violationsError(violations)
	}
	if slug == "" {
		slug = util.Slugify(name)
	}
	updated, err := s.store.UpdateGenre(ctx, genreID, name, slug)
	if err != nil {
		return err
	}
	if !updated {
		return errNotFound("Genre not found")
	}
	return nil
}

func (s *Service) DeleteGenre(ctx context.Context, genreID string) error {
	deleted, err := s.store.DeleteGenre(ctx, genreID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Genre not found")
	}
	return nil
}

func (s *Service) ListTagsPage(ctx context.Context, input validate.PageInput) (map[string]any, error) {
	items, total, err := s.store.ListTags(ctx, input.Search, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, tagJSON(item))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

func (s *Service) CreateTag(ctx context.Context, name string) (map[string]any, error) {
	if _, violations := nameSchema.Apply(map[string]string{"name": name}); len(violations) > 0 {
		return nil, violationsError(violations)
	}
	tag := store.Tag{ID: util.NewID("tag"), Name: name}
	if err := s.store.InsertTag(ctx, tag); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errConflict("Tag already exists")
		}
		return nil, err
	}
	return tagJSON(tag), nil
}

func (s *Service) UpdateTag(ctx context.Context, tagID, name string) error {
	if _, violations := nameSchema.Apply(map[string]string{"name": name}); len(violations) > 0 {
		return violationsError(violations)
	}
	updated, err := s.store.UpdateTag(ctx, tagID, name)
	if err != nil {
		return err
	}
	if !updated {
		return errNotFound("Tag not found")
	}
	return nil
}

func (s *Service) DeleteTag(ctx context.Context, tagID string) error {
	deleted, err := s.store.DeleteTag(ctx, tagID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Tag not found")
	}
	return nil
}

func (s *Service) ListStudiosPage(ctx context.Context, input validate.PageInput) (map[string]any, error) {
	items, total, err := s.store.ListStudios(ctx, input.Search, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, studioJSON(item))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

func (s *Service) CreateStudio(ctx context.Context, name, country string) (map[string]any, error) {
	if _, violations := nameSchema.Apply(map[string]string{"name": name}); len(violations) > 0 {
		return nil, violationsError(violations)
	}
	studio := store.Studio{ID: util.NewID("std"), Name: name, Country: country}
	if err := s.store.InsertStudio(ctx, studio); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errConflict("Studio already exists")
		}
		return nil, err
	}
	return studioJSON(studio), nil
}

func (s *Service) UpdateStudio(ctx context.Context, studioID, name, country string) error {
	if _, violations := nameSchema.Apply(map[string]string{"name": name}); len(violations) > 0 {
		return violationsError(violations)
	}
	updated, err := s.store.UpdateStudio(ctx, studioID, name, country)
	if err != nil {
		return err
	}
	if !updated {
		return errNotFound("Studio not found")
	}
	return nil
}

func (s *Service) DeleteStudio(ctx context.Context, studioID string) error {
	deleted, err := s.store.DeleteStudio(ctx, studioID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Studio not found")
	}
	return nil
}

func (s *Service) ListPlatformsPage(ctx context.Context, input validate.PageInput) (map[string]any, error) {
	items, total, err := s.store.ListPlatforms(ctx, input.Search, input.Limit, offsetFor(input))
	if err != nil {
		return nil, err
	}
	mapped := make([]map[string]any, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, platformJSON(item))
	}
	return pageEnvelope(mapped, total, input.Page, input.Limit), nil
}

func (s *Service) CreatePlatform(ctx context.Context, name, url string) (map[string]any, error) {
	if _, violations := nameSchema.Apply(map[string]string{"name": name}); len(violations) > 0 {
		return nil, violationsError(violations)
	}
	platform := store.Platform{ID: util.NewID("plt"), Name: name, URL: url}
	if err := s.store.InsertPlatform(ctx, platform); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errConflict("Platform already exists")
		}
		return nil, err
	}
	return platformJSON(platform), nil
}

func (s *Service) UpdatePlatform(ctx context.Context, platformID, name, url string) error {
	if _, violations := nameSchema.Apply(map[string]string{"name": name}); len(violations) > 0 {
		return violationsError(violations)
	}
	updated, err := s.store.UpdatePlatform(ctx, platformID, name, url)
	if err != nil {
		return err
	}
	if !updated {
		return errNotFound("Platform not found")
	}
	return nil
}

func (s *Service) DeletePlatform(ctx context.Context, platformID string) error {
	deleted, err := s.store.DeletePlatform(ctx, platformID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Platform not found")
	}
	return nil
}
