// Package validate constrains untrusted request input before it reaches
// business logic. Validation failure is a reportable outcome, returned as a
// list of per-field violations, never a panic or an opaque error.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindEnum
)

// Rule describes the expected shape of one field. Numeric bounds use
// pointers so that zero is a usable bound.
type Rule struct {
	Kind     Kind
	Required bool
	Default  string
	Min      *int
	Max      *int
	MaxLen   int
	Enum     []string
	Pattern  *regexp.Regexp
}

type Schema map[string]Rule

// Apply normalizes raw string values against the schema. Numeric fields are
// coerced from strings; defaults are applied before bounds checks. The
// returned map holds string, int, or bool values for every field that passed.
func (s Schema) Apply(values map[string]string) (map[string]any, []Violation) {
	out := make(map[string]any, len(s))
	var violations []Violation

	for field, rule := range s {
		raw := strings.TrimSpace(values[field])
		if raw == "" {
			if rule.Default != "" {
				raw = rule.Default
			} else if rule.Required {
				violations = append(violations, Violation{Field: field, Message: "is required"})
				continue
			} else {
				continue
			}
		}

		switch rule.Kind {
		case KindInt:
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				violations = append(violations, Violation{Field: field, Message: "must be an integer"})
				continue
			}
			if rule.Min != nil && parsed < *rule.Min {
				violations = append(violations, Violation{Field: field, Message: fmt.Sprintf("must be at least %d", *rule.Min)})
				continue
			}
			if rule.Max != nil && parsed > *rule.Max {
				violations = append(violations, Violation{Field: field, Message: fmt.Sprintf("must be at most %d", *rule.Max)})
				continue
			}
			out[field] = parsed
		case KindBool:
			if raw != "true" && raw != "false" {
				violations = append(violations, Violation{Field: field, Message: "must be true or false"})
				continue
			}
			out[field] = raw == "true"
		case KindEnum:
			if !contains(rule.Enum, raw) {
				violations = append(violations, Violation{Field: field, Message: "must be one of " + strings.Join(rule.Enum, ", ")})
				continue
			}
			out[field] = raw
		default:
			if rule.MaxLen > 0 && len(raw) > rule.MaxLen {
				violations = append(violations, Violation{Field: field, Message: fmt.Sprintf("must be at most %d characters", rule.MaxLen)})
				continue
			}
			if rule.Pattern != nil && !rule.Pattern.MatchString(raw) {
				violations = append(violations, Violation{Field: field, Message: "has an invalid format"})
				continue
			}
			out[field] = raw
		}
	}
	return out, violations
}

// PageInput is the validated pagination envelope shared by every listing
// endpoint.
type PageInput struct {
	Page   int
	Limit  int
	Search string
	Sort   string
}

// Pagination coerces page/limit/q/sort query parameters. An oversized limit
// is capped to maxLimit rather than rejected; a non-positive or non-numeric
// one is a violation.
func Pagination(values url.Values, defaultLimit, maxLimit int) (PageInput, []Violation) {
	input := PageInput{Page: 1, Limit: defaultLimit}
	var violations []Violation

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			violations = append(violations, Violation{Field: "page", Message: "must be an integer"})
		} else if parsed < 1 {
			violations = append(violations, Violation{Field: "page", Message: "must be at least 1"})
		} else {
			input.Page = parsed
		}
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			violations = append(violations, Violation{Field: "limit", Message: "must be an integer"})
		} else if parsed < 1 {
			violations = append(violations, Violation{Field: "limit", Message: "must be at least 1"})
		} else {
			input.Limit = parsed
		}
	}
	if input.Limit > maxLimit {
		input.Limit = maxLimit
	}

	search := strings.TrimSpace(values.Get("q"))
	if len(search) > 200 {
		violations = append(violations, Violation{Field: "q", Message: "must be at most 200 characters"})
	} else {
		input.Search = search
	}

	input.Sort = strings.TrimSpace(values.Get("sort"))
	return input, violations
}

// IntRange builds the pointer bounds used by Rule.
func IntRange(min, max int) (*int, *int) {
	return &min, &max
}

// MinInt builds a lower bound without an upper one.
func MinInt(min int) *int {
	return &min
}

func contains(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if candidate == needle {
			return true
		}
	}
	return false
}
