package meta

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/raine/stockmeta/internal/analysis"
	"github.com/raine/stockmeta/internal/keyword"
)

const (
	PlaceholderTitle       = "Untitled Photo"
	UntitledTitle          = "Untitled"
	PlaceholderDescription = "Stock photo"
)

var titleSeparatorRe = regexp.MustCompile(`[_\-]+`)

// FallbackDraft builds a draft from the filename and analysis alone, for
// images whose generation call failed.
func FallbackDraft(filename string, a analysis.ImageAnalysis) Draft {
	title := titleCase(strings.TrimSpace(titleSeparatorRe.ReplaceAllString(keyword.Stem(filename), " ")))
	if title == "" {
		title = PlaceholderTitle
	}

	colors := "neutral"
	if known := colorTags(a.DominantColors); len(known) > 0 {
		colors = strings.Join(known, ", ")
	}

	return Draft{
		Title:           title,
		Description:     fmt.Sprintf("High quality photo featuring %s tones.", colors),
		KeywordsPrimary: keyword.TokenizeFilename(filename),
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
