package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/raine/stockmeta/internal/meta"
	"github.com/rs/zerolog/log"
)

var fenceOpenRe = regexp.MustCompile("^```[A-Za-z0-9_-]*")

// Field aliases accepted from generators. The first name is canonical.
var (
	primaryKeys   = []string{"keywords_primary", "keywords_en", "keywords"}
	secondaryKeys = []string{"keywords_secondary", "keywords_zh"}
)

// FallbackDraft is returned when generated text cannot be parsed at all.
func FallbackDraft() meta.Draft {
	return meta.Draft{
		Title:             meta.UntitledTitle,
		Description:       meta.PlaceholderDescription,
		KeywordsPrimary:   []string{},
		KeywordsSecondary: []string{},
		Category:          "",
	}
}

// ErrUnparseable reports generated text that holds no metadata object.
var ErrUnparseable = errors.New("generated text is not a metadata object")

// CoerceDraft forces generated text into a draft. It strips a code fence,
// tries a direct parse, then the span from the first "{" to the last "}",
// and otherwise returns FallbackDraft. It never fails.
func CoerceDraft(raw string) meta.Draft {
	d, _ := coerceDraft(raw)
	return d
}

// coerceDraft is CoerceDraft that also reports whether the text parsed.
func coerceDraft(raw string) (meta.Draft, bool) {
	text := stripCodeFence(raw)

	if d, ok := parseDraft(text); ok {
		return d, true
	}
	if obj, err := extractJSONObject(text); err == nil {
		if d, ok := parseDraft(obj); ok {
			return d, true
		}
	}

	preview := text
	if len(preview) > 200 {
		preview = preview[:200]
	}
	log.Warn().Str("response", preview).Msg("could not parse generated metadata, using fallback")
	return FallbackDraft(), false
}

// draftResult wraps generated text in a result. Text that does not parse is
// a *GenerationError, so it is retried and never cached.
func draftResult(req GenerateRequest, text, model string, usage Usage) (*GenerateResult, error) {
	draft, ok := coerceDraft(text)
	if !ok {
		return nil, &GenerationError{Filename: req.Filename, Err: ErrUnparseable}
	}
	return &GenerateResult{
		Draft: draft,
		Raw:   text,
		Model: model,
		Usage: usage,
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimSpace(fenceOpenRe.ReplaceAllString(s, ""))
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject extracts a JSON object from text that may contain prose
// or other formatting around it.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

func parseDraft(text string) (meta.Draft, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return meta.Draft{}, false
	}
	return meta.Draft{
		Title:             stringField(obj["title"]),
		Description:       stringField(obj["description"]),
		KeywordsPrimary:   listField(obj, primaryKeys),
		KeywordsSecondary: listField(obj, secondaryKeys),
		Category:          stringField(obj["category"]),
	}, true
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

// listField returns the first alias present. Non-list values count as an
// empty list; list members are stringified and trimmed.
func listField(obj map[string]any, keys []string) []string {
	out := []string{}
	for _, key := range keys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		items, isList := v.([]any)
		if !isList {
			return out
		}
		for _, item := range items {
			if s := stringField(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return out
}
