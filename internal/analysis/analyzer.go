// Package analysis derives discrete color, style and mood tags from pixel
// statistics of a decoded image.
package analysis

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SampleSize is the edge length images are downsampled to before
// statistics are computed.
const SampleSize = 100

// MaxColors bounds the number of dominant colors reported.
const MaxColors = 4

type Composition string

const (
	CompositionSquare    Composition = "square"
	CompositionLandscape Composition = "landscape"
	CompositionPortrait  Composition = "portrait"
	CompositionStandard  Composition = "standard"
	CompositionUnknown   Composition = "unknown"
)

type Style string

const (
	StyleHighKey  Style = "high-key"
	StyleBright   Style = "bright"
	StyleLowKey   Style = "low-key"
	StyleDark     Style = "dark"
	StyleDramatic Style = "dramatic"
	StyleNatural  Style = "natural"
	StyleUnknown  Style = "unknown"
)

type Mood string

const (
	MoodWarm       Mood = "warm"
	MoodCozy       Mood = "cozy"
	MoodCool       Mood = "cool"
	MoodMysterious Mood = "mysterious"
	MoodNeutral    Mood = "neutral"
)

// ImageAnalysis is the deterministic summary of one image.
type ImageAnalysis struct {
	DominantColors   []string    `json:"dominant_colors"`
	Brightness       float64     `json:"brightness"`
	Contrast         float64     `json:"contrast"`
	Composition      Composition `json:"composition"`
	Style            Style       `json:"style"`
	Mood             Mood        `json:"mood"`
	TechnicalQuality float64     `json:"technical_quality"`
	Width            int         `json:"width"`
	Height           int         `json:"height"`
	// Degraded is set when the image could not be analyzed and the neutral
	// record was substituted.
	Degraded bool `json:"degraded,omitempty"`
}

// SceneType maps the composition class to a coarse scene label.
func (a ImageAnalysis) SceneType() string {
	switch a.Composition {
	case CompositionLandscape:
		return "outdoor"
	case CompositionPortrait:
		return "people"
	case CompositionSquare:
		return "product"
	default:
		return "general"
	}
}

// ColorUnknown is the only dominant color of a neutral analysis.
const ColorUnknown = "unknown"

// Neutral returns the record used when an image cannot be analyzed.
func Neutral() ImageAnalysis {
	return ImageAnalysis{
		DominantColors:   []string{ColorUnknown},
		Brightness:       0.5,
		Contrast:         0.5,
		Composition:      CompositionUnknown,
		Style:            StyleUnknown,
		Mood:             MoodNeutral,
		TechnicalQuality: 0.5,
		Degraded:         true,
	}
}

// AnalyzeBytes decodes data and analyzes it. Decode failures yield the
// neutral record.
func AnalyzeBytes(data []byte) ImageAnalysis {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Msg("image decode failed, using neutral analysis")
		return Neutral()
	}
	log.Debug().Str("format", format).Msg("decoded image for analysis")
	return Analyze(img)
}

// Analyze computes the analysis of a decoded image. It never fails.
func Analyze(img image.Image) (result ImageAnalysis) {
	if img == nil {
		return Neutral()
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return Neutral()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("image analysis panicked, using neutral analysis")
			result = Neutral()
		}
	}()

	sample := image.NewRGBA(image.Rect(0, 0, SampleSize, SampleSize))
	draw.CatmullRom.Scale(sample, sample.Bounds(), img, bounds, draw.Src, nil)

	stats := pixelStats(sample)
	primary := meanColorName(stats.meanR, stats.meanG, stats.meanB)

	result = ImageAnalysis{
		DominantColors:   dominantColors(primary, sample),
		Brightness:       stats.brightness,
		Contrast:         stats.contrast,
		Composition:      classifyComposition(w, h),
		TechnicalQuality: qualityFromPixels(w, h),
		Width:            w,
		Height:           h,
	}
	result.Style = classifyStyle(result.Brightness, result.Contrast)
	result.Mood = classifyMood(result.DominantColors, result.Brightness)
	return result
}

type sampleStats struct {
	meanR, meanG, meanB  float64
	brightness, contrast float64
}

func pixelStats(img *image.RGBA) sampleStats {
	var sumR, sumG, sumB, sumGray, sumGraySq float64
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			r, g, bl := float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
			gray := 0.299*r + 0.587*g + 0.114*bl
			sumR += r
			sumG += g
			sumB += bl
			sumGray += gray
			sumGraySq += gray * gray
			n++
		}
	}
	if n == 0 {
		return sampleStats{brightness: 0.5, contrast: 0.5}
	}
	count := float64(n)
	mean := sumGray / count
	variance := sumGraySq/count - mean*mean
	if variance < 0 {
		variance = 0
	}
	return sampleStats{
		meanR:      sumR / count,
		meanG:      sumG / count,
		meanB:      sumB / count,
		brightness: clamp01(mean / 255),
		contrast:   clamp01(math.Sqrt(variance) / 128),
	}
}

// dominantColors starts with the mean-intensity color and appends distinct
// k-means cluster colors, largest cluster first.
func dominantColors(primary string, img image.Image) []string {
	colors := []string{primary}
	seen := map[string]bool{primary: true}

	clusters, err := prominentcolor.KmeansWithArgs(prominentcolor.ArgumentNoCropping, img)
	if err != nil {
		log.Debug().Err(err).Msg("prominent color extraction skipped")
		return colors
	}
	for _, c := range clusters {
		if len(colors) >= MaxColors {
			break
		}
		name := NearestColorName(int(c.Color.R), int(c.Color.G), int(c.Color.B))
		if seen[name] {
			continue
		}
		seen[name] = true
		colors = append(colors, name)
	}
	return colors
}

func classifyComposition(w, h int) Composition {
	ratio := float64(w) / float64(h)
	switch {
	case math.Abs(ratio-1) < 0.1:
		return CompositionSquare
	case ratio > 1.5:
		return CompositionLandscape
	case ratio < 0.7:
		return CompositionPortrait
	default:
		return CompositionStandard
	}
}

func classifyStyle(brightness, contrast float64) Style {
	switch {
	case brightness > 0.8:
		if contrast < 0.3 {
			return StyleHighKey
		}
		return StyleBright
	case brightness < 0.3:
		if contrast > 0.5 {
			return StyleLowKey
		}
		return StyleDark
	case contrast > 0.7:
		return StyleDramatic
	default:
		return StyleNatural
	}
}

var (
	warmColors = map[string]bool{"red": true, "orange": true, "yellow": true, "pink": true}
	coolColors = map[string]bool{"blue": true, "green": true, "purple": true}
)

func classifyMood(colors []string, brightness float64) Mood {
	for _, c := range colors {
		if warmColors[c] {
			if brightness > 0.5 {
				return MoodWarm
			}
			return MoodCozy
		}
	}
	for _, c := range colors {
		if coolColors[c] {
			if brightness > 0.5 {
				return MoodCool
			}
			return MoodMysterious
		}
	}
	return MoodNeutral
}

// qualityFromPixels is a step function of the megapixel count.
func qualityFromPixels(w, h int) float64 {
	mp := float64(w) * float64(h) / 1_000_000
	switch {
	case mp >= 12:
		return 1.0
	case mp >= 6:
		return 0.8
	case mp >= 3:
		return 0.6
	default:
		return 0.4
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
