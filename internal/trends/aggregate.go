// Package trends summarizes a batch of finished metadata records.
package trends

import (
	"sort"
	"strings"

	"github.com/raine/stockmeta/internal/meta"
)

// HighDemandBoost multiplies the score of keywords on the high-demand list.
const HighDemandBoost = 1.5

// Report is recomputed from scratch for every batch.
type Report struct {
	Records                  int                          `json:"records"`
	KeywordFrequency         map[string]int               `json:"keyword_frequency"`
	TrendScores              map[string]float64           `json:"trend_scores"`
	CategoryHistogram        map[string]int               `json:"category_histogram"`
	AverageSEOScore          float64                      `json:"average_seo_score"`
	MarketPotentialHistogram map[meta.MarketPotential]int `json:"market_potential_histogram"`
}

// Entry is one row of a top-N listing.
type Entry struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Score float64 `json:"score"`
}

var highDemand = func() map[string]bool {
	m := make(map[string]bool, len(meta.HighDemandKeywords))
	for _, kw := range meta.HighDemandKeywords {
		m[strings.ToLower(kw)] = true
	}
	return m
}()

// IsHighDemand reports whether kw is on the high-demand list, ignoring case.
func IsHighDemand(kw string) bool {
	return highDemand[strings.ToLower(strings.TrimSpace(kw))]
}

// Aggregate builds a report over records. Nil entries are skipped; an empty
// collection yields zero aggregates.
func Aggregate(records []*meta.Meta) Report {
	r := Report{
		KeywordFrequency:         map[string]int{},
		TrendScores:              map[string]float64{},
		CategoryHistogram:        map[string]int{},
		MarketPotentialHistogram: map[meta.MarketPotential]int{},
	}

	var scoreSum float64
	for _, m := range records {
		if m == nil {
			continue
		}
		r.Records++
		for _, pool := range [][]string{m.KeywordsPrimary, m.TrendingKeywords} {
			for _, kw := range pool {
				kw = strings.TrimSpace(kw)
				if kw != "" {
					r.KeywordFrequency[kw]++
				}
			}
		}
		if c := strings.TrimSpace(m.Category); c != "" {
			r.CategoryHistogram[c]++
		}
		scoreSum += m.SEOScore()
		r.MarketPotentialHistogram[m.MarketPotential()]++
	}

	if r.Records == 0 {
		return r
	}

	r.AverageSEOScore = scoreSum / float64(r.Records)
	for kw, count := range r.KeywordFrequency {
		boost := 1.0
		if IsHighDemand(kw) {
			boost = HighDemandBoost
		}
		r.TrendScores[kw] = float64(count) / float64(r.Records) * boost
	}
	return r
}

// AggregateRecords is Aggregate over persisted records.
func AggregateRecords(records []meta.Record) Report {
	metas := make([]*meta.Meta, 0, len(records))
	for _, rec := range records {
		metas = append(metas, meta.FromRecord(rec))
	}
	return Aggregate(metas)
}

// TopKeywords returns the n most frequent keywords. Ties go to the
// lexically smaller keyword. n <= 0 returns all.
func (r Report) TopKeywords(n int) []Entry {
	entries := make([]Entry, 0, len(r.KeywordFrequency))
	for kw, count := range r.KeywordFrequency {
		entries = append(entries, Entry{Key: kw, Count: count, Score: r.TrendScores[kw]})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	return truncate(entries, n)
}

// TopScores returns the n highest trend scores, ties broken lexically.
func (r Report) TopScores(n int) []Entry {
	entries := make([]Entry, 0, len(r.TrendScores))
	for kw, score := range r.TrendScores {
		entries = append(entries, Entry{Key: kw, Count: r.KeywordFrequency[kw], Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Key < entries[j].Key
	})
	return truncate(entries, n)
}

// TopCategories returns the n most common categories, ties broken lexically.
func (r Report) TopCategories(n int) []Entry {
	entries := make([]Entry, 0, len(r.CategoryHistogram))
	for c, count := range r.CategoryHistogram {
		entries = append(entries, Entry{Key: c, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	return truncate(entries, n)
}

func truncate(entries []Entry, n int) []Entry {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}
