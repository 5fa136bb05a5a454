package keyword

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTokenLength is the shortest token kept by Tokenize.
const MinTokenLength = 3

var separatorRe = regexp.MustCompile(`[-_.,]+`)

// stopwords are articles, prepositions and generic photo-related nouns that
// never make useful stock keywords.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "of": {}, "in": {}, "on": {},
	"to": {}, "for": {}, "with": {}, "by": {}, "at": {}, "from": {}, "is": {},
	"are": {}, "be": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"photo": {}, "image": {}, "picture": {}, "img": {}, "final": {},
	"edit": {}, "copy": {}, "version": {}, "dsc": {}, "jpg": {}, "jpeg": {},
}

// IsStopword reports whether the lower-cased token is in the stopword set.
func IsStopword(token string) bool {
	_, ok := stopwords[strings.ToLower(token)]
	return ok
}

// Tokenize turns raw text into normalized, deduplicated keyword candidates,
// preserving the order of first appearance.
func Tokenize(text string) []string {
	normalized, _, err := transform.String(transform.Chain(norm.NFKC), text)
	if err != nil {
		normalized = text
	}
	normalized = separatorRe.ReplaceAllString(normalized, " ")

	seen := make(map[string]struct{})
	var tokens []string
	for _, piece := range strings.Fields(normalized) {
		token := strings.ToLower(strings.Map(keepAlphanumeric, piece))
		if !acceptToken(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

// TokenizeFilename tokenizes the stem of a file name, ignoring directories
// and the extension.
func TokenizeFilename(name string) []string {
	return Tokenize(Stem(name))
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func keepAlphanumeric(r rune) rune {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return r
	}
	return -1
}

func acceptToken(token string) bool {
	if token == "" || isNumeric(token) {
		return false
	}
	if len([]rune(token)) < MinTokenLength {
		return false
	}
	return !IsStopword(token)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
