package trends

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/raine/stockmeta/internal/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(primary, trending []string, category string, score float64, potential meta.MarketPotential) *meta.Meta {
	return meta.FromRecord(meta.Record{
		KeywordsPrimary:  primary,
		TrendingKeywords: trending,
		Category:         category,
		SEOScore:         score,
		MarketPotential:  potential,
	})
}

func sampleBatch() []*meta.Meta {
	return []*meta.Meta{
		record([]string{"office", "teamwork"}, []string{"remote work"}, "Business", 0.8, meta.PotentialHigh),
		record([]string{"office", "laptop"}, nil, "Business", 0.6, meta.PotentialMedium),
		record([]string{"sunset", "Teamwork"}, nil, "Nature", 0.4, meta.PotentialLow),
		record([]string{"sunset"}, nil, "", 0.2, meta.PotentialLow),
	}
}

func TestAggregateEmpty(t *testing.T) {
	r := Aggregate(nil)
	assert.Equal(t, 0, r.Records)
	assert.Equal(t, 0.0, r.AverageSEOScore)
	assert.Empty(t, r.KeywordFrequency)
	assert.Empty(t, r.TrendScores)
	assert.Empty(t, r.CategoryHistogram)
	assert.Empty(t, r.MarketPotentialHistogram)
	assert.NotNil(t, r.KeywordFrequency)
}

func TestAggregate(t *testing.T) {
	r := Aggregate(sampleBatch())

	assert.Equal(t, 4, r.Records)
	assert.Equal(t, map[string]int{
		"office": 2, "teamwork": 1, "Teamwork": 1, "remote work": 1, "laptop": 1, "sunset": 2,
	}, r.KeywordFrequency)

	assert.InDelta(t, 0.5, r.TrendScores["office"], 1e-9)
	assert.InDelta(t, 0.25*1.5, r.TrendScores["teamwork"], 1e-9)
	assert.InDelta(t, 0.25*1.5, r.TrendScores["Teamwork"], 1e-9)
	assert.InDelta(t, 0.25*1.5, r.TrendScores["remote work"], 1e-9)
	assert.InDelta(t, 0.25, r.TrendScores["laptop"], 1e-9)

	assert.Equal(t, map[string]int{"Business": 2, "Nature": 1}, r.CategoryHistogram)
	assert.InDelta(t, 0.5, r.AverageSEOScore, 1e-9)
	assert.Equal(t, map[meta.MarketPotential]int{
		meta.PotentialHigh: 1, meta.PotentialMedium: 1, meta.PotentialLow: 2,
	}, r.MarketPotentialHistogram)
}

func TestAggregateOrderIndependent(t *testing.T) {
	batch := sampleBatch()
	reversed := make([]*meta.Meta, len(batch))
	for i, m := range batch {
		reversed[len(batch)-1-i] = m
	}
	a := Aggregate(batch)
	b := Aggregate(reversed)
	assert.Equal(t, a.KeywordFrequency, b.KeywordFrequency)
	assert.Equal(t, a.TopKeywords(3), b.TopKeywords(3))
	assert.Equal(t, a.TopScores(3), b.TopScores(3))
}

func TestTopKeywordsTieBreak(t *testing.T) {
	r := Aggregate(sampleBatch())

	top := r.TopKeywords(3)
	require.Len(t, top, 3)
	assert.Equal(t, "office", top[0].Key)
	assert.Equal(t, "sunset", top[1].Key)
	// Count 1 ties resolve lexically; uppercase sorts first.
	assert.Equal(t, "Teamwork", top[2].Key)

	assert.Len(t, r.TopKeywords(0), 6)
	assert.Len(t, r.TopKeywords(100), 6)
}

func TestTopScores(t *testing.T) {
	r := Aggregate(sampleBatch())
	top := r.TopScores(5)
	keys := make([]string, len(top))
	for i, e := range top {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"office", "sunset", "Teamwork", "remote work", "teamwork"}, keys)
}

func TestTopCategories(t *testing.T) {
	r := Aggregate(sampleBatch())
	assert.Equal(t, []Entry{{Key: "Business", Count: 2}, {Key: "Nature", Count: 1}}, r.TopCategories(5))
	assert.Equal(t, []Entry{{Key: "Business", Count: 2}}, r.TopCategories(1))
}

func TestIsHighDemand(t *testing.T) {
	tests := []struct {
		kw   string
		want bool
	}{
		{"teamwork", true},
		{"TeamWork", true},
		{" remote work ", true},
		{"remote", false},
		{"teamworks", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsHighDemand(tt.kw), tt.kw)
	}
}

func TestAggregateRecords(t *testing.T) {
	r := AggregateRecords([]meta.Record{
		{KeywordsPrimary: []string{"a"}, SEOScore: 0.4},
		{KeywordsPrimary: []string{"a"}, SEOScore: 0.6},
	})
	assert.Equal(t, 2, r.KeywordFrequency["a"])
	assert.InDelta(t, 0.5, r.AverageSEOScore, 1e-9)
	assert.Equal(t, 2, r.MarketPotentialHistogram[meta.PotentialLow])
}

func TestRenderChart(t *testing.T) {
	tests := []struct {
		name  string
		batch []*meta.Meta
	}{
		{name: "with keywords", batch: sampleBatch()},
		{name: "empty", batch: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderChart(&buf, Aggregate(tt.batch), 10))
			img, err := png.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, chartWidth, img.Bounds().Dx())
		})
	}
}
