package validate

import (
	"net/url"
	"testing"
)

func TestApplyCoercesAndDefaults(t *testing.T) {
	min, max := IntRange(1900, 2100)
	schema := Schema{
		"year":  {Kind: KindInt, Min: min, Max: max, Default: "2000"},
		"kind":  {Kind: KindEnum, Enum: []string{"anime", "manga"}, Required: true},
		"title": {Kind: KindString, Required: true, MaxLen: 10},
	}

	out, violations := schema.Apply(map[string]string{"kind": "anime", "title": " Akira "})
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %+v", violations)
	}
	if out["year"] != 2000 {
		t.Fatalf("expected defaulted year 2000, got %v", out["year"])
	}
	if out["title"] != "Akira" {
		t.Fatalf("expected trimmed title, got %q", out["title"])
	}
}

func TestApplyReportsPerFieldViolations(t *testing.T) {
	schema := Schema{
		"year": {Kind: KindInt, Min: MinInt(1900)},
		"kind": {Kind: KindEnum, Enum: []string{"anime", "manga"}},
		"name": {Kind: KindString, Required: true},
	}
	_, violations := schema.Apply(map[string]string{"year": "abc", "kind": "film"})
	if len(violations) != 3 {
		t.Fatalf("expected 3 violations, got %+v", violations)
	}
	fields := map[string]bool{}
	for _, v := range violations {
		fields[v.Field] = true
	}
	for _, field := range []string{"year", "kind", "name"} {
		if !fields[field] {
			t.Errorf("expected violation for %s", field)
		}
	}
}

func TestPaginationDefaults(t *testing.T) {
	input, violations := Pagination(url.Values{}, 20, 100)
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %+v", violations)
	}
	if input.Page != 1 || input.Limit != 20 {
		t.Fatalf("expected defaults page=1 limit=20, got %+v", input)
	}
}

func TestPaginationCapsOversizedLimit(t *testing.T) {
	values := url.Values{"limit": {"5000"}}
	input, violations := Pagination(values, 20, 100)
	if len(violations) != 0 {
		t.Fatalf("oversized limit must be capped, not rejected: %+v", violations)
	}
	if input.Limit != 100 {
		t.Fatalf("expected capped limit 100, got %d", input.Limit)
	}
}

func TestPaginationRejectsNegativeLimit(t *testing.T) {
	values := url.Values{"limit": {"-5"}}
	_, violations := Pagination(values, 20, 100)
	if len(violations) != 1 || violations[0].Field != "limit" {
		t.Fatalf("expected a limit violation, got %+v", violations)
	}
}

func TestPaginationRejectsNonNumericPage(t *testing.T) {
	values := url.Values{"page": {"two"}}
	_, violations := Pagination(values, 20, 100)
	if len(violations) != 1 || violations[0].Field != "page" {
		t.Fatalf("expected a page violation, got %+v", violations)
	}
}
