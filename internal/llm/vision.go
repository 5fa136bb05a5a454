package llm

import (
	"context"
	"fmt"

	"github.com/raine/stockmeta/internal/analysis"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
)

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// GenerateRequest is everything a generator needs to draft metadata for one
// image.
type GenerateRequest struct {
	Filename    string
	Image       []byte
	MIMEType    string
	Analysis    analysis.ImageAnalysis
	Constraints platform.Constraints
}

// GenerateResult contains the coerced draft and usage information.
type GenerateResult struct {
	Draft  meta.Draft
	Raw    string
	Model  string
	Usage  Usage
	Cached bool
}

// Generator drafts title, description and keywords from image pixels.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// Options tune the generation call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

func (o Options) withDefaults(model string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.Temperature == 0 {
		o.Temperature = 0.2
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 800
	}
	return o
}

// GenerationError reports that no usable draft could be produced for an
// image. The batch skips generation for that image and continues.
type GenerationError struct {
	Filename string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.Filename, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
