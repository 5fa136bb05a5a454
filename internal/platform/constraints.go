// Package platform holds the static marketplace constraint table.
package platform

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

type ID string

const (
	Shutterstock ID = "shutterstock"
	AdobeStock   ID = "adobe_stock"
	IStock       ID = "istock"
	Getty        ID = "getty"
)

// DefaultID is what callers fall back to when the user has not picked a
// marketplace. Get itself never defaults.
const DefaultID = Shutterstock

// Constraints are the numeric and content limits of one marketplace.
type Constraints struct {
	ID                   ID       `json:"id"`
	Name                 string   `json:"name"`
	MaxKeywords          int      `json:"max_keywords"`
	MaxTitleLength       int      `json:"max_title_length"`
	MaxDescriptionLength int      `json:"max_description_length"`
	MinKeywords          int      `json:"min_keywords"`
	ForbiddenTerms       []string `json:"forbidden_terms"`
	KeywordSeparator     string   `json:"keyword_separator"`
	SupportedFormats     []string `json:"supported_formats"`
	// RequestsPerSecond is the upload API rate limit.
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// ConfigurationError is returned for marketplace identifiers that are not in
// the table.
type ConfigurationError struct {
	ID string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown marketplace %q (known: %s)", e.ID, strings.Join(idStrings(), ", "))
}

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".webp"}

var table = map[ID]Constraints{
	Shutterstock: {
		ID:                   Shutterstock,
		Name:                 "Shutterstock",
		MaxKeywords:          50,
		MaxTitleLength:       60,
		MaxDescriptionLength: 220,
		ForbiddenTerms:       []string{"shutterstock", "watermark", "copyright", "royalty"},
		KeywordSeparator:     ";",
		RequestsPerSecond:    5,
	},
	AdobeStock: {
		ID:                   AdobeStock,
		Name:                 "Adobe Stock",
		MaxKeywords:          49,
		MaxTitleLength:       60,
		MaxDescriptionLength: 220,
		MinKeywords:          7,
		ForbiddenTerms:       []string{"adobe", "stock", "watermark"},
		KeywordSeparator:     ";",
		RequestsPerSecond:    10,
	},
	IStock: {
		ID:                   IStock,
		Name:                 "iStock",
		MaxKeywords:          50,
		MaxTitleLength:       60,
		MaxDescriptionLength: 220,
		KeywordSeparator:     ";",
		RequestsPerSecond:    10,
	},
	Getty: {
		ID:                   Getty,
		Name:                 "Getty Images",
		MaxKeywords:          50,
		MaxTitleLength:       60,
		MaxDescriptionLength: 220,
		KeywordSeparator:     ";",
		RequestsPerSecond:    10,
	},
}

// CapKeywords lowers MaxKeywords to n. Zero, negative or larger values leave
// the marketplace limit in place.
func (c Constraints) CapKeywords(n int) Constraints {
	if n > 0 && n < c.MaxKeywords {
		c.MaxKeywords = n
	}
	return c
}

// Get returns the constraints for id. Unknown identifiers fail with a
// *ConfigurationError.
func Get(id string) (Constraints, error) {
	c, ok := table[ID(strings.ToLower(strings.TrimSpace(id)))]
	if !ok {
		return Constraints{}, &ConfigurationError{ID: id}
	}
	// Copy slices so callers cannot mutate the shared table.
	c.ForbiddenTerms = append([]string(nil), c.ForbiddenTerms...)
	c.SupportedFormats = append([]string(nil), supportedFormats...)
	return c, nil
}

// MustGet is Get for identifiers known at compile time.
func MustGet(id ID) Constraints {
	c, err := Get(string(id))
	if err != nil {
		panic(err)
	}
	return c
}

// IDs lists the known marketplace identifiers in lexical order.
func IDs() []ID {
	ids := make([]ID, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func idStrings() []string {
	var out []string
	for _, id := range IDs() {
		out = append(out, string(id))
	}
	return out
}

// IsSupportedFile reports whether path has an image extension the pipeline
// accepts.
func IsSupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range supportedFormats {
		if f == ext {
			return true
		}
	}
	return false
}
