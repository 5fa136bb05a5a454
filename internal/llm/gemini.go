package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.30
	geminiOutputPricePerMillion = 2.50
)

// draftSchema constrains Gemini output to the draft shape.
var draftSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":              {Type: genai.TypeString},
		"description":        {Type: genai.TypeString},
		"keywords_primary":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"keywords_secondary": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"category":           {Type: genai.TypeString},
	},
	Required:         []string{"title", "description", "keywords_primary", "keywords_secondary", "category"},
	PropertyOrdering: []string{"title", "description", "keywords_primary", "keywords_secondary", "category"},
}

// GeminiGenerator uses Google's Gemini API to draft stock metadata.
type GeminiGenerator struct {
	client *genai.Client
	opts   Options
}

// NewGeminiGenerator creates a Gemini-based generator.
// It uses the GEMINI_API_KEY environment variable for authentication.
func NewGeminiGenerator(ctx context.Context, opts Options) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, opts: opts.withDefaults(geminiModel)}, nil
}

// Generate implements the Generator interface using Gemini.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("no image provided")
	}
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(buildUserPrompt(req)),
		{InlineData: &genai.Blob{Data: req.Image, MIMEType: mimeType}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildSystemPrompt(req), genai.RoleUser),
		Temperature:       genai.Ptr(float32(g.opts.Temperature)),
		MaxOutputTokens:   int32(g.opts.MaxTokens),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    draftSchema,
	}

	result, err := g.client.Models.GenerateContent(ctx, g.opts.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	text := result.Text()

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}

	log.Info().
		Str("model", g.opts.Model).
		Str("file", req.Filename).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("metadata llm call")

	return draftResult(req, text, g.opts.Model, usage)
}
