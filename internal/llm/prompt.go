package llm

import (
	"fmt"
	"strings"

	"github.com/raine/stockmeta/internal/meta"
)

const systemPrompt = `You are a stock photography SEO specialist writing metadata for %s.

Image analysis:
- Dominant colors: %s
- Brightness: %.2f (0=dark, 1=bright)
- Contrast: %.2f (0=low, 1=high)
- Style: %s
- Mood: %s
- Composition: %s
- Technical quality: %.2f

Requirements:
- title: at most %d characters, descriptive and commercially compelling
- description: at most %d characters, detailed and searchable
- keywords_primary: up to %d English keywords ordered by commercial importance
- keywords_secondary: the same concepts in Simplified Chinese
- category: a single broad stock category
- never use these words: %s

Respond ONLY with a JSON object with keys title, description, keywords_primary, keywords_secondary, category.`

const userPrompt = `Analyze this stock photo (file %q) and write metadata that sells.

Market context:
1. High-demand keywords: %s
2. Evergreen topics: %s

Use buyer-focused language, balance specific and broad search terms, and include trending keywords only where they fit the picture.`

func buildSystemPrompt(req GenerateRequest) string {
	a := req.Analysis
	c := req.Constraints
	forbidden := "none"
	if len(c.ForbiddenTerms) > 0 {
		forbidden = strings.Join(c.ForbiddenTerms, ", ")
	}
	name := c.Name
	if name == "" {
		name = "stock marketplaces"
	}
	return fmt.Sprintf(systemPrompt,
		name,
		strings.Join(a.DominantColors, ", "),
		a.Brightness,
		a.Contrast,
		a.Style,
		a.Mood,
		a.Composition,
		a.TechnicalQuality,
		c.MaxTitleLength,
		c.MaxDescriptionLength,
		c.MaxKeywords,
		forbidden,
	)
}

func buildUserPrompt(req GenerateRequest) string {
	return fmt.Sprintf(userPrompt,
		req.Filename,
		strings.Join(meta.HighDemandKeywords, ", "),
		strings.Join(meta.EvergreenTopics, ", "),
	)
}
