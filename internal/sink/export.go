package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
)

// CSVHeader is the column order of CSV exports.
var CSVHeader = []string{
	"filename", "title", "description", "keywords", "category", "seo_score",
	"market_potential", "trending_keywords", "color_tags", "mood_tags", "style_tags",
}

// Exporter flattens records for one marketplace and language preference.
type Exporter struct {
	Constraints platform.Constraints
	Language    meta.LanguagePreference
}

// ExportRecord is the JSON export shape: the full record plus the
// marketplace projection.
type ExportRecord struct {
	meta.Record
	Platform   platform.ID         `json:"platform"`
	Projection platform.Projection `json:"projection"`
}

func (e Exporter) project(m *meta.Meta) (platform.Projection, error) {
	keywords, err := m.MergedKeywords(e.Language, e.Constraints.MaxKeywords)
	if err != nil {
		return platform.Projection{}, err
	}
	return platform.Project(e.Constraints, m.Title, m.Description, keywords, m.Category), nil
}

// Row flattens m into CSV columns matching CSVHeader.
func (e Exporter) Row(m *meta.Meta) ([]string, error) {
	p, err := e.project(m)
	if err != nil {
		return nil, err
	}
	join := func(list []string) string {
		return strings.Join(list, e.Constraints.KeywordSeparator+" ")
	}
	return []string{
		m.Filename,
		p.Title,
		p.Description,
		p.JoinedKeywords(e.Constraints),
		m.Category,
		fmt.Sprintf("%.2f", m.SEOScore()),
		string(m.MarketPotential()),
		join(m.TrendingKeywords),
		join(m.ColorTags),
		join(m.MoodTags),
		join(m.StyleTags),
	}, nil
}

// WriteCSV writes a header and one row per record.
func (e Exporter) WriteCSV(w io.Writer, records []*meta.Meta) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, m := range records {
		row, err := e.Row(m)
		if err != nil {
			return fmt.Errorf("failed to flatten %s: %w", m.Filename, err)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes records as an indented JSON array.
func (e Exporter) WriteJSON(w io.Writer, records []*meta.Meta) error {
	out := make([]ExportRecord, 0, len(records))
	for _, m := range records {
		p, err := e.project(m)
		if err != nil {
			return fmt.Errorf("failed to flatten %s: %w", m.Filename, err)
		}
		out = append(out, ExportRecord{Record: m.Record(), Platform: e.Constraints.ID, Projection: p})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode JSON export: %w", err)
	}
	return nil
}

// ExportFile writes records to path, choosing the format by extension
// (.json, anything else is CSV).
func (e Exporter) ExportFile(path string, records []*meta.Meta) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = e.WriteJSON(f, records)
	} else {
		err = e.WriteCSV(f, records)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close export file: %w", cerr)
	}
	return err
}
