package trends

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"
)

const (
	chartWidth  = 800
	chartRowH   = 32
	chartMargin = 20
	labelWidth  = 220
)

// RenderChart draws a horizontal bar chart of the top n trend scores as PNG.
// High-demand keywords are drawn in a second color.
func RenderChart(w io.Writer, r Report, n int) error {
	entries := r.TopScores(n)
	rows := len(entries)
	if rows == 0 {
		rows = 1
	}
	height := chartMargin*3 + rows*chartRowH

	dc := gg.NewContext(chartWidth, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.1, 0.1, 0.1)
	title := fmt.Sprintf("Trending keywords (%d records, avg SEO %.2f)", r.Records, r.AverageSEOScore)
	dc.DrawStringAnchored(title, chartMargin, chartMargin, 0, 0.5)

	if len(entries) == 0 {
		dc.DrawStringAnchored("no keywords", chartMargin, float64(chartMargin*2+chartRowH/2), 0, 0.5)
		return dc.EncodePNG(w)
	}

	maxScore := entries[0].Score
	barSpace := float64(chartWidth - labelWidth - chartMargin*3)

	for i, e := range entries {
		y := float64(chartMargin*2 + i*chartRowH)

		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(e.Key, chartMargin, y+chartRowH/2, 0, 0.5)

		barW := barSpace
		if maxScore > 0 {
			barW = barSpace * e.Score / maxScore
		}
		if IsHighDemand(e.Key) {
			dc.SetRGB(0.85, 0.45, 0.1)
		} else {
			dc.SetRGB(0.2, 0.45, 0.75)
		}
		dc.DrawRectangle(float64(labelWidth+chartMargin), y+4, barW, chartRowH-8)
		dc.Fill()

		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", e.Score), float64(labelWidth+chartMargin*2)+barW, y+chartRowH/2, 0, 0.5)
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	return nil
}
