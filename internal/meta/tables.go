package meta

// TrendCategory is one row of the trending keyword table. Terms are ordered
// by commercial weight.
type TrendCategory struct {
	Name  string
	Terms []string
}

// TrendingCategories is scanned in order; earlier categories win when the
// trending list is capped.
var TrendingCategories = []TrendCategory{
	{"business", []string{"remote work", "digital transformation", "teamwork", "startup", "leadership"}},
	{"technology", []string{"artificial intelligence", "cybersecurity", "cloud computing", "smart home", "data analytics"}},
	{"lifestyle", []string{"wellness", "self care", "mindfulness", "healthy living", "work life balance"}},
	{"sustainability", []string{"sustainability", "renewable energy", "eco friendly", "climate change", "zero waste"}},
	{"nature", []string{"landscape", "mountains", "sunset", "forest", "ocean"}},
	{"travel", []string{"adventure", "road trip", "travel destination", "vacation", "wanderlust"}},
	{"food", []string{"healthy food", "plant based", "coffee", "organic", "homemade"}},
	{"people", []string{"diversity", "inclusion", "multicultural", "community", "family"}},
}

// HighDemandKeywords get a frequency boost in trend reports.
var HighDemandKeywords = []string{
	"artificial intelligence", "sustainability", "remote work", "diversity",
	"wellness", "mental health", "renewable energy", "cybersecurity",
	"teamwork", "healthy food",
}

// EvergreenTopics are stable sellers mentioned to the generator.
var EvergreenTopics = []string{
	"business", "family", "nature", "food", "travel", "technology", "health", "education",
}

const (
	maxTrendingKeywords   = 5
	termsPerTrendCategory = 3
)
