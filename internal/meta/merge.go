package meta

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// primaryPoolSize is how many generated primary keywords take part in the
// priority merge.
const primaryPoolSize = 10

// KeywordBounds is the accepted keyword length range in characters.
type KeywordBounds struct {
	Min int
	Max int
}

var DefaultBounds = KeywordBounds{Min: 2, Max: 50}

func (b KeywordBounds) accepts(kw string) bool {
	n := utf8.RuneCountInString(kw)
	return n >= b.Min && n <= b.Max
}

// orDefault fills each unset side from DefaultBounds.
func (b KeywordBounds) orDefault() KeywordBounds {
	if b.Min <= 0 {
		b.Min = DefaultBounds.Min
	}
	if b.Max <= 0 {
		b.Max = DefaultBounds.Max
	}
	return b
}

// MergedKeywords combines the keyword pools in priority order:
// trending, the first ten primary keywords, mood and style tags, color tags,
// technical tags and, for LanguageBoth, the secondary keywords last.
// LanguageSecondary uses only the secondary pool.
//
// Candidates are trimmed, length-filtered and deduplicated case-insensitively
// across all pools; the first occurrence keeps its casing. The scan stops
// once maxCount keywords are accepted, so the result is a prefix of a fixed
// order. The only error is an unknown preference.
func (m *Meta) MergedKeywords(pref LanguagePreference, maxCount int) ([]string, error) {
	pools, err := m.pools(pref)
	if err != nil {
		return nil, err
	}
	return mergePools(pools, maxCount, m.bounds.orDefault()), nil
}

func (m *Meta) pools(pref LanguagePreference) ([][]string, error) {
	primary := m.KeywordsPrimary
	if len(primary) > primaryPoolSize {
		primary = primary[:primaryPoolSize]
	}
	moodStyle := make([]string, 0, len(m.MoodTags)+len(m.StyleTags))
	moodStyle = append(moodStyle, m.MoodTags...)
	moodStyle = append(moodStyle, m.StyleTags...)

	ordered := [][]string{m.TrendingKeywords, primary, moodStyle, m.ColorTags, m.TechnicalTags}

	switch pref {
	case LanguagePrimary:
		return ordered, nil
	case LanguageBoth:
		return append(ordered, m.KeywordsSecondary), nil
	case LanguageSecondary:
		return [][]string{m.KeywordsSecondary}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, string(pref))
	}
}

func mergePools(pools [][]string, maxCount int, bounds KeywordBounds) []string {
	if maxCount <= 0 {
		return []string{}
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, maxCount)
	for _, pool := range pools {
		for _, candidate := range pool {
			kw := strings.TrimSpace(candidate)
			if kw == "" || !bounds.accepts(kw) {
				continue
			}
			key := strings.ToLower(kw)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, kw)
			if len(out) >= maxCount {
				return out
			}
		}
	}
	return out
}
