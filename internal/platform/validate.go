package platform

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Projection is metadata cut down to one marketplace's limits. It is what
// sinks receive; the source record is never modified.
type Projection struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Category    string   `json:"category,omitempty"`
}

// JoinedKeywords joins the keywords with the marketplace separator.
func (p Projection) JoinedKeywords(c Constraints) string {
	return strings.Join(p.Keywords, c.KeywordSeparator+" ")
}

// Validate checks metadata against the marketplace rules and returns every
// violation found. An empty result means the metadata is acceptable.
func Validate(c Constraints, title, description string, keywords []string) []string {
	var problems []string

	if strings.TrimSpace(title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(description) == "" {
		problems = append(problems, "description is required")
	}
	if len(keywords) == 0 {
		problems = append(problems, "keywords are required")
	}

	if n := utf8.RuneCountInString(title); n > c.MaxTitleLength {
		problems = append(problems, fmt.Sprintf("title must be %d characters or less (got %d)", c.MaxTitleLength, n))
	}
	if n := utf8.RuneCountInString(description); n > c.MaxDescriptionLength {
		problems = append(problems, fmt.Sprintf("description must be %d characters or less (got %d)", c.MaxDescriptionLength, n))
	}
	if len(keywords) > c.MaxKeywords {
		problems = append(problems, fmt.Sprintf("maximum %d keywords allowed (got %d)", c.MaxKeywords, len(keywords)))
	}
	if c.MinKeywords > 0 && len(keywords) < c.MinKeywords {
		problems = append(problems, fmt.Sprintf("minimum %d keywords required (got %d)", c.MinKeywords, len(keywords)))
	}

	for _, term := range c.ForbiddenIn(title + " " + description) {
		problems = append(problems, fmt.Sprintf("forbidden word %q found in title or description", term))
	}

	return problems
}

// ForbiddenIn returns the forbidden terms that occur in text,
// case-insensitively, in table order.
func (c Constraints) ForbiddenIn(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, term := range c.ForbiddenTerms {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}
	return found
}

// Project truncates title and description to the marketplace limits, drops
// keywords containing a forbidden term and caps the keyword count.
func Project(c Constraints, title, description string, keywords []string, category string) Projection {
	p := Projection{
		Title:       truncateRunes(strings.TrimSpace(title), c.MaxTitleLength),
		Description: truncateRunes(strings.TrimSpace(description), c.MaxDescriptionLength),
		Category:    category,
	}
	for _, kw := range keywords {
		if len(p.Keywords) >= c.MaxKeywords {
			break
		}
		if len(c.ForbiddenIn(kw)) > 0 {
			continue
		}
		p.Keywords = append(p.Keywords, kw)
	}
	return p
}

// truncateRunes cuts s to at most max runes, preferring the last word
// boundary when one exists in the second half of the allowed length.
func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)[:max]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;.-")
}
