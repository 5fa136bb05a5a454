// Package meta owns the per-image metadata record and the keyword merge and
// scoring engine. Everything here is pure: no I/O, no shared mutable state.
package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type MarketPotential string

const (
	PotentialLow    MarketPotential = "Low"
	PotentialMedium MarketPotential = "Medium"
	PotentialHigh   MarketPotential = "High"
)

// Potentials lists the market potential values in ascending order.
var Potentials = []MarketPotential{PotentialLow, PotentialMedium, PotentialHigh}

type LanguagePreference string

const (
	LanguagePrimary   LanguagePreference = "primary"
	LanguageSecondary LanguagePreference = "secondary"
	LanguageBoth      LanguagePreference = "both"
)

var ErrUnknownLanguage = errors.New("unknown language preference")

// ParseLanguage validates a language preference. There is no default: an
// empty or unrecognized value is an error.
func ParseLanguage(s string) (LanguagePreference, error) {
	switch p := LanguagePreference(strings.ToLower(strings.TrimSpace(s))); p {
	case LanguagePrimary, LanguageSecondary, LanguageBoth:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
}

// Draft is the generation output after coercion, before enrichment.
type Draft struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	KeywordsPrimary   []string `json:"keywords_primary"`
	KeywordsSecondary []string `json:"keywords_secondary"`
	Category          string   `json:"category"`
}

// Meta is the metadata record of one image. Title and description keep the
// full generated text; truncation happens per sink.
//
// The SEO score and market potential are derived. Call Rescore after
// changing any field.
type Meta struct {
	Filename          string
	Title             string
	Description       string
	KeywordsPrimary   []string
	KeywordsSecondary []string
	TrendingKeywords  []string
	MoodTags          []string
	StyleTags         []string
	ColorTags         []string
	TechnicalTags     []string
	Category          string

	seoScore         float64
	marketPotential  MarketPotential
	technicalQuality float64
	maxKeywords      int
	bounds           KeywordBounds
}

// SEOScore returns the derived score in [0,1].
func (m *Meta) SEOScore() float64 { return m.seoScore }

// MarketPotential returns the derived potential class.
func (m *Meta) MarketPotential() MarketPotential {
	if m.marketPotential == "" {
		return PotentialLow
	}
	return m.marketPotential
}

// TechnicalQuality is the analyzer quality the score was computed from.
func (m *Meta) TechnicalQuality() float64 { return m.technicalQuality }

// Record is the flattened, serializable form of a Meta.
type Record struct {
	Filename          string          `json:"filename"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	KeywordsPrimary   []string        `json:"keywords_primary"`
	KeywordsSecondary []string        `json:"keywords_secondary"`
	TrendingKeywords  []string        `json:"trending_keywords"`
	MoodTags          []string        `json:"mood_tags"`
	StyleTags         []string        `json:"style_tags"`
	ColorTags         []string        `json:"color_tags"`
	TechnicalTags     []string        `json:"technical_tags"`
	Category          string          `json:"category"`
	SEOScore          float64         `json:"seo_score"`
	MarketPotential   MarketPotential `json:"market_potential"`
	TechnicalQuality  float64         `json:"technical_quality"`
}

// Record snapshots m.
func (m *Meta) Record() Record {
	return Record{
		Filename:          m.Filename,
		Title:             m.Title,
		Description:       m.Description,
		KeywordsPrimary:   cloneStrings(m.KeywordsPrimary),
		KeywordsSecondary: cloneStrings(m.KeywordsSecondary),
		TrendingKeywords:  cloneStrings(m.TrendingKeywords),
		MoodTags:          cloneStrings(m.MoodTags),
		StyleTags:         cloneStrings(m.StyleTags),
		ColorTags:         cloneStrings(m.ColorTags),
		TechnicalTags:     cloneStrings(m.TechnicalTags),
		Category:          m.Category,
		SEOScore:          m.seoScore,
		MarketPotential:   m.MarketPotential(),
		TechnicalQuality:  m.technicalQuality,
	}
}

// FromRecord restores a Meta persisted with Record. Derived values are
// taken as stored.
func FromRecord(r Record) *Meta {
	potential := r.MarketPotential
	if potential == "" {
		potential = PotentialLow
	}
	return &Meta{
		Filename:          r.Filename,
		Title:             r.Title,
		Description:       r.Description,
		KeywordsPrimary:   cloneStrings(r.KeywordsPrimary),
		KeywordsSecondary: cloneStrings(r.KeywordsSecondary),
		TrendingKeywords:  cloneStrings(r.TrendingKeywords),
		MoodTags:          cloneStrings(r.MoodTags),
		StyleTags:         cloneStrings(r.StyleTags),
		ColorTags:         cloneStrings(r.ColorTags),
		TechnicalTags:     cloneStrings(r.TechnicalTags),
		Category:          r.Category,
		seoScore:          clamp01(r.SEOScore),
		marketPotential:   potential,
		technicalQuality:  r.TechnicalQuality,
	}
}

func (m *Meta) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Record())
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*m = *FromRecord(r)
	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
