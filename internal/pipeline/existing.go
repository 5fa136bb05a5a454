package pipeline

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// existingKeywordTags are the tags that carry keywords already embedded by
// a previous tool or by the photographer.
var existingKeywordTags = map[imagemeta.Source]map[string]bool{
	imagemeta.IPTC: {"Keywords": true},
	imagemeta.XMP:  {"subject": true, "Subject": true},
}

// ExistingKeywords returns keywords already embedded in the image, in file
// order without duplicates. Unreadable metadata yields nil.
func ExistingKeywords(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	var keywords []string
	seen := map[string]bool{}
	add := func(kw string) {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			return
		}
		seen[key] = true
		keywords = append(keywords, kw)
	}

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return existingKeywordTags[ti.Source][ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			switch v := ti.Value.(type) {
			case string:
				for _, kw := range strings.Split(v, ",") {
					add(kw)
				}
			case []string:
				for _, kw := range v {
					add(kw)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil
	}
	return keywords
}
