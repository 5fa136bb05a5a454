package sink

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMeta() *meta.Meta {
	return meta.FromRecord(meta.Record{
		Filename:         "sunset.jpg",
		Title:            "Golden sunset over the mountains",
		Description:      "Warm evening light & long shadows",
		KeywordsPrimary:  []string{"sunset", "mountains", "copyright free"},
		TrendingKeywords: []string{"landscape"},
		ColorTags:        []string{"orange"},
		MoodTags:         []string{"warm"},
		StyleTags:        []string{"natural"},
		Category:         "Nature",
		SEOScore:         0.456,
		MarketPotential:  meta.PotentialMedium,
	})
}

func TestSupportsIPTC(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"a.tif", true},
		{"a.tiff", true},
		{"a.png", false},
		{"a.webp", false},
		{"a", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SupportsIPTC(tt.path), tt.path)
	}
}

func TestRenderXMP(t *testing.T) {
	data, err := RenderXMP(platform.Projection{
		Title:       "Sunset & Peaks",
		Description: "Evening",
		Keywords:    []string{"sunset", "mountains"},
		Category:    "Nature",
	})
	require.NoError(t, err)

	doc := string(data)
	assert.True(t, strings.HasPrefix(doc, "<?xpacket begin="))
	assert.Contains(t, doc, `<x:xmpmeta xmlns:x="adobe:ns:meta/">`)
	assert.Contains(t, doc, `<rdf:li xml:lang="x-default">Sunset &amp; Peaks</rdf:li>`)
	assert.Contains(t, doc, `<rdf:li>sunset</rdf:li>`)
	assert.Contains(t, doc, `<rdf:li>mountains</rdf:li>`)
	assert.Contains(t, doc, `photoshop:Category="Nature"`)
	assert.True(t, strings.HasSuffix(doc, "<?xpacket end=\"w\"?>\n"))
}

func TestXMPSidecarWriter(t *testing.T) {
	img := filepath.Join(t.TempDir(), "photo.png")

	res := XMPSidecarWriter{}.WriteMetadata(img, platform.Projection{Title: "T", Keywords: []string{"k"}})
	assert.True(t, res.OK, res.Message)

	data, err := os.ReadFile(img + ".xmp")
	require.NoError(t, err)
	assert.Contains(t, string(data), "<rdf:li>k</rdf:li>")

	res = XMPSidecarWriter{}.WriteMetadata(filepath.Join(t.TempDir(), "missing", "x.png"), platform.Projection{})
	assert.False(t, res.OK)
}

type recordingWriter struct {
	ok    bool
	paths []string
}

func (w *recordingWriter) WriteMetadata(path string, p platform.Projection) Result {
	w.paths = append(w.paths, path)
	return Result{OK: w.ok, Path: path}
}

func TestChain(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		iptcOK      bool
		wantIPTC    int
		wantSidecar int
	}{
		{name: "jpeg embedded", path: "a.jpg", iptcOK: true, wantIPTC: 1, wantSidecar: 0},
		{name: "jpeg falls back", path: "a.jpg", iptcOK: false, wantIPTC: 1, wantSidecar: 1},
		{name: "png uses sidecar", path: "a.png", iptcOK: true, wantIPTC: 0, wantSidecar: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iptc := &recordingWriter{ok: tt.iptcOK}
			sidecar := &recordingWriter{ok: true}
			Chain{IPTC: iptc, Sidecar: sidecar}.WriteMetadata(tt.path, platform.Projection{})
			assert.Len(t, iptc.paths, tt.wantIPTC)
			assert.Len(t, sidecar.paths, tt.wantSidecar)
		})
	}

	res := Chain{}.WriteMetadata("a.jpg", platform.Projection{})
	assert.False(t, res.OK)
}

func TestExporterCSV(t *testing.T) {
	e := Exporter{Constraints: platform.MustGet(platform.Shutterstock), Language: meta.LanguageBoth}

	var buf bytes.Buffer
	require.NoError(t, e.WriteCSV(&buf, []*meta.Meta{sampleMeta()}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, CSVHeader, rows[0])

	row := rows[1]
	assert.Equal(t, "sunset.jpg", row[0])
	assert.Equal(t, "Golden sunset over the mountains", row[1])
	// "copyright free" contains a forbidden term for this marketplace.
	assert.Equal(t, "landscape; sunset; mountains; warm; natural; orange", row[3])
	assert.Equal(t, "Nature", row[4])
	assert.Equal(t, "0.46", row[5])
	assert.Equal(t, "Medium", row[6])
	assert.Equal(t, "landscape", row[7])
	assert.Equal(t, "orange", row[8])
}

func TestExporterUnknownLanguage(t *testing.T) {
	e := Exporter{Constraints: platform.MustGet(platform.Shutterstock), Language: "klingon"}
	var buf bytes.Buffer
	err := e.WriteCSV(&buf, []*meta.Meta{sampleMeta()})
	assert.ErrorIs(t, err, meta.ErrUnknownLanguage)
}

func TestExportFileJSON(t *testing.T) {
	e := Exporter{Constraints: platform.MustGet(platform.AdobeStock), Language: meta.LanguagePrimary}
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, e.ExportFile(path, []*meta.Meta{sampleMeta()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out []ExportRecord
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "sunset.jpg", out[0].Filename)
	assert.Equal(t, platform.AdobeStock, out[0].Platform)
	assert.Equal(t, 0.456, out[0].SEOScore)
	assert.Equal(t, []string{"landscape", "sunset", "mountains", "copyright free", "warm", "natural", "orange"}, out[0].Projection.Keywords)
}

func TestExportFileCSV(t *testing.T) {
	e := Exporter{Constraints: platform.MustGet(platform.Getty), Language: meta.LanguagePrimary}
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, e.ExportFile(path, []*meta.Meta{sampleMeta(), sampleMeta()}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
