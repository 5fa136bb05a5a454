package analysis

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestAnalyzeSolidColor(t *testing.T) {
	a := Analyze(solidImage(200, 100, color.RGBA{220, 30, 30, 255}))

	require.NotEmpty(t, a.DominantColors)
	assert.Equal(t, "red", a.DominantColors[0])
	assert.LessOrEqual(t, len(a.DominantColors), MaxColors)
	assert.InDelta(t, 0.34, a.Brightness, 0.02)
	assert.InDelta(t, 0.0, a.Contrast, 0.02)
	assert.Equal(t, CompositionLandscape, a.Composition)
	assert.Equal(t, StyleNatural, a.Style)
	assert.Equal(t, MoodCozy, a.Mood)
	assert.Equal(t, 0.4, a.TechnicalQuality)
	assert.False(t, a.Degraded)
}

func TestAnalyzeHighContrast(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}

	a := Analyze(img)
	assert.Equal(t, "gray", a.DominantColors[0])
	assert.InDelta(t, 0.5, a.Brightness, 0.03)
	assert.Greater(t, a.Contrast, 0.9)
	assert.Equal(t, StyleDramatic, a.Style)
	assert.Equal(t, MoodNeutral, a.Mood)
	assert.Equal(t, CompositionSquare, a.Composition)
}

func TestAnalyzeBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(60, 120, color.RGBA{240, 240, 240, 255})))

	a := AnalyzeBytes(buf.Bytes())
	assert.Equal(t, "white", a.DominantColors[0])
	assert.Equal(t, CompositionPortrait, a.Composition)
	assert.Equal(t, StyleHighKey, a.Style)
}

func TestAnalyzeDegraded(t *testing.T) {
	assert.Equal(t, Neutral(), AnalyzeBytes([]byte("not an image")))
	assert.Equal(t, Neutral(), Analyze(nil))
	assert.Equal(t, Neutral(), Analyze(image.NewRGBA(image.Rect(0, 0, 0, 0))))
}

func TestMeanColorName(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b float64
		want    string
	}{
		{"white extreme", 210, 220, 230, "white"},
		{"black extreme", 10, 20, 30, "black"},
		{"red", 200, 60, 40, "red"},
		{"orange", 200, 170, 40, "orange"},
		{"purple", 200, 160, 180, "purple"},
		{"green", 40, 180, 60, "green"},
		{"blue", 40, 60, 180, "blue"},
		{"gray tie", 120, 120, 120, "gray"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, meanColorName(tt.r, tt.g, tt.b))
		})
	}
}

func TestNearestColorName(t *testing.T) {
	assert.Equal(t, "orange", NearestColorName(235, 145, 65))
	assert.Equal(t, "cyan", NearestColorName(90, 190, 210))
	assert.Equal(t, "black", NearestColorName(0, 0, 0))
}

func TestClassifiers(t *testing.T) {
	assert.Equal(t, CompositionSquare, classifyComposition(1050, 1000))
	assert.Equal(t, CompositionStandard, classifyComposition(1200, 1000))
	assert.Equal(t, CompositionPortrait, classifyComposition(600, 1000))

	assert.Equal(t, StyleBright, classifyStyle(0.9, 0.4))
	assert.Equal(t, StyleLowKey, classifyStyle(0.2, 0.6))
	assert.Equal(t, StyleDark, classifyStyle(0.2, 0.2))

	assert.Equal(t, MoodWarm, classifyMood([]string{"blue", "orange"}, 0.6))
	assert.Equal(t, MoodCool, classifyMood([]string{"blue"}, 0.6))
	assert.Equal(t, MoodMysterious, classifyMood([]string{"purple"}, 0.4))

	assert.Equal(t, 1.0, qualityFromPixels(4000, 3000))
	assert.Equal(t, 0.8, qualityFromPixels(3000, 2000))
	assert.Equal(t, 0.6, qualityFromPixels(2000, 1500))
}

func TestSceneType(t *testing.T) {
	assert.Equal(t, "outdoor", ImageAnalysis{Composition: CompositionLandscape}.SceneType())
	assert.Equal(t, "general", Neutral().SceneType())
}
