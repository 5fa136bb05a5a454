package llm

import (
	"context"

	"github.com/raine/stockmeta/internal/meta"
)

const mockModel = "mock"

// zhGlossary translates common stock terms for the secondary keyword list.
var zhGlossary = map[string]string{
	"sunset":     "日落",
	"sunrise":    "日出",
	"mountain":   "山",
	"mountains":  "山脉",
	"beach":      "海滩",
	"ocean":      "海洋",
	"sea":        "海",
	"forest":     "森林",
	"city":       "城市",
	"landscape":  "风景",
	"nature":     "自然",
	"people":     "人物",
	"business":   "商务",
	"office":     "办公室",
	"food":       "美食",
	"coffee":     "咖啡",
	"travel":     "旅行",
	"family":     "家庭",
	"sky":        "天空",
	"water":      "水",
	"flower":     "花",
	"flowers":    "花卉",
	"snow":       "雪",
	"winter":     "冬天",
	"summer":     "夏天",
	"portrait":   "肖像",
	"technology": "科技",
}

var sceneCategories = map[string]string{
	"outdoor": "Nature",
	"people":  "People",
	"product": "Objects",
	"general": "Miscellaneous",
}

// MockGenerator drafts metadata offline from the filename and the pixel
// analysis. It backs the "mock" provider and tests.
type MockGenerator struct{}

// Generate implements the Generator interface without any network call.
func (MockGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	draft := meta.FallbackDraft(req.Filename, req.Analysis)
	draft.KeywordsSecondary = []string{}
	for _, kw := range draft.KeywordsPrimary {
		if zh, ok := zhGlossary[kw]; ok {
			draft.KeywordsSecondary = append(draft.KeywordsSecondary, zh)
		}
	}
	draft.Category = sceneCategories[req.Analysis.SceneType()]

	return &GenerateResult{Draft: draft, Model: mockModel}, nil
}
