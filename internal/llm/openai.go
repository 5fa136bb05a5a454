package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

const openaiModel = "gpt-4o-mini"

// gpt-4o-mini pricing (per million tokens)
const (
	openaiInputPricePerMillion  = 0.15
	openaiOutputPricePerMillion = 0.60
)

// OpenAIGenerator uses OpenAI's chat completions vision API.
type OpenAIGenerator struct {
	client openai.Client
	opts   Options
}

// NewOpenAIGenerator creates an OpenAI-based generator. Without explicit
// request options it uses the OPENAI_API_KEY environment variable.
func NewOpenAIGenerator(opts Options, reqOpts ...option.RequestOption) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(reqOpts...),
		opts:   opts.withDefaults(openaiModel),
	}
}

// Generate implements the Generator interface using OpenAI.
func (o *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("no image provided")
	}
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	// Encode image as base64 data URL
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(req.Image))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(buildSystemPrompt(req)),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(buildUserPrompt(req)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(int64(o.opts.MaxTokens)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	text := resp.Choices[0].Message.Content

	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		CostUSD:      calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, openaiInputPricePerMillion, openaiOutputPricePerMillion),
	}

	log.Info().
		Str("model", o.opts.Model).
		Str("file", req.Filename).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("metadata llm call")

	return draftResult(req, text, o.opts.Model, usage)
}
