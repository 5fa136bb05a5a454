package meta

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/raine/stockmeta/internal/analysis"
	"github.com/raine/stockmeta/internal/platform"
)

// Score component ranges.
const (
	titleMinLen       = 30
	titleMaxLen       = 60
	descriptionMinLen = 100
	descriptionMaxLen = 200
	keywordCountMin   = 20
	keywordCountMax   = 50
	componentWeight   = 0.2
)

// Enricher enriches drafts with configurable keyword length bounds. The zero
// value uses DefaultBounds.
type Enricher struct {
	Bounds KeywordBounds
}

// Enrich builds the final record from a coerced draft, the image analysis
// and the target marketplace constraints. It never fails.
func Enrich(draft Draft, a analysis.ImageAnalysis, c platform.Constraints) *Meta {
	return Enricher{}.Enrich(draft, a, c)
}

func (e Enricher) Enrich(draft Draft, a analysis.ImageAnalysis, c platform.Constraints) *Meta {
	m := &Meta{
		Title:             strings.TrimSpace(draft.Title),
		Description:       strings.TrimSpace(draft.Description),
		KeywordsPrimary:   cleanKeywords(draft.KeywordsPrimary),
		KeywordsSecondary: cleanKeywords(draft.KeywordsSecondary),
		Category:          strings.TrimSpace(draft.Category),
		ColorTags:         colorTags(a.DominantColors),
		MoodTags:          strings.Fields(string(a.Mood)),
		StyleTags:         styleTags(a.Style),
		technicalQuality:  a.TechnicalQuality,
		maxKeywords:       c.MaxKeywords,
		bounds:            e.Bounds.orDefault(),
	}
	m.TrendingKeywords = RelevantTrending(m.KeywordsPrimary)
	m.TechnicalTags = TechnicalTags(a)
	m.Rescore()
	return m
}

// Rescore recomputes the SEO score and market potential from the current
// fields.
func (m *Meta) Rescore() {
	m.seoScore = m.computeSEOScore()
	m.marketPotential = AssessPotential(m.seoScore, m.technicalQuality)
}

func (m *Meta) computeSEOScore() float64 {
	score := 0.0

	if inRange(utf8.RuneCountInString(m.Title), titleMinLen, titleMaxLen) {
		score += componentWeight
	}
	if inRange(utf8.RuneCountInString(m.Description), descriptionMinLen, descriptionMaxLen) {
		score += componentWeight
	}

	maxKeywords := m.maxKeywords
	if maxKeywords <= 0 {
		maxKeywords = keywordCountMax
	}
	merged, _ := m.MergedKeywords(LanguageBoth, maxKeywords)
	if inRange(len(merged), keywordCountMin, keywordCountMax) {
		score += componentWeight
	}

	if len(m.TrendingKeywords) > 0 {
		score += componentWeight
	}

	score += clamp01(m.technicalQuality) * componentWeight

	return math.Round(clamp01(score)*1e4) / 1e4
}

// AssessPotential classifies a record by its SEO score and technical quality.
func AssessPotential(seoScore, technicalQuality float64) MarketPotential {
	switch {
	case seoScore >= 0.8 && technicalQuality >= 0.8:
		return PotentialHigh
	case seoScore >= 0.6 && technicalQuality >= 0.6:
		return PotentialMedium
	default:
		return PotentialLow
	}
}

// RelevantTrending scans the trending table. A category is relevant when any
// word of any of its terms occurs as a substring of a keyword; relevant
// categories contribute their first three terms. The result is deduplicated
// and capped at five.
func RelevantTrending(keywords []string) []string {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, cat := range TrendingCategories {
		if len(out) >= maxTrendingKeywords {
			break
		}
		if !categoryRelevant(cat, lowered) {
			continue
		}
		terms := cat.Terms
		if len(terms) > termsPerTrendCategory {
			terms = terms[:termsPerTrendCategory]
		}
		for _, term := range terms {
			key := strings.ToLower(term)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, term)
			if len(out) >= maxTrendingKeywords {
				break
			}
		}
	}
	return out
}

func categoryRelevant(cat TrendCategory, keywords []string) bool {
	for _, kw := range keywords {
		for _, term := range cat.Terms {
			for _, word := range strings.Fields(strings.ToLower(term)) {
				if strings.Contains(kw, word) {
					return true
				}
			}
		}
	}
	return false
}

// TechnicalTags derives resolution, lighting and contrast tags.
func TechnicalTags(a analysis.ImageAnalysis) []string {
	var tags []string
	if a.TechnicalQuality >= 0.8 {
		tags = append(tags, "high resolution")
	}
	switch {
	case a.Brightness > 0.7:
		tags = append(tags, "bright lighting")
	case a.Brightness < 0.3:
		tags = append(tags, "low light")
	}
	if a.Contrast > 0.7 {
		tags = append(tags, "high contrast")
	}
	return tags
}

// cleanKeywords trims entries and drops empty ones.
func cleanKeywords(in []string) []string {
	var out []string
	for _, kw := range in {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// colorTags drops the placeholder color of a neutral analysis.
func colorTags(colors []string) []string {
	var out []string
	for _, c := range cleanKeywords(colors) {
		if !strings.EqualFold(c, analysis.ColorUnknown) {
			out = append(out, c)
		}
	}
	return out
}

func styleTags(s analysis.Style) []string {
	if s == analysis.StyleUnknown {
		return nil
	}
	return strings.Fields(string(s))
}

func inRange(n, lo, hi int) bool {
	return n >= lo && n <= hi
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
