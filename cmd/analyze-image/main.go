package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raine/stockmeta/internal/llm"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/pipeline"
	"github.com/raine/stockmeta/internal/platform"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path> [gemini|openai|mock] [platform]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required for Gemini\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY - Required for OpenAI\n")
		os.Exit(1)
	}

	imagePath := os.Args[1]
	provider := "mock"
	if len(os.Args) >= 3 {
		provider = os.Args[2]
	}
	platformID := string(platform.DefaultID)
	if len(os.Args) >= 4 {
		platformID = os.Args[3]
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	constraints, err := platform.Get(platformID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var gen llm.Generator
	switch provider {
	case "gemini":
		gen, err = llm.NewGeminiGenerator(ctx, llm.Options{})
	case "openai":
		gen = llm.NewOpenAIGenerator(llm.Options{})
	case "mock":
		gen = llm.MockGenerator{}
	default:
		fmt.Fprintf(os.Stderr, "Unknown provider: %s (use gemini, openai, or mock)\n", provider)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s generator: %v\n", provider, err)
		os.Exit(1)
	}

	runner, err := pipeline.New(pipeline.Config{
		Platform: constraints,
		Language: meta.LanguageBoth,
		Bounds:   meta.DefaultBounds,
	}, gen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	res, errs := runner.ProcessBytes(ctx, filepath.Base(imagePath), imageData)
	for _, e := range errs {
		fmt.Printf("Warning:     %v\n", e)
	}
	if res == nil || res.Meta == nil {
		os.Exit(1)
	}
	printResult(res, constraints)
}

func printResult(res *pipeline.ImageResult, c platform.Constraints) {
	a := res.Analysis
	fmt.Println("=== ANALYSIS ===")
	fmt.Printf("Size:        %dx%d (%s)\n", a.Width, a.Height, a.Composition)
	fmt.Printf("Colors:      %s\n", strings.Join(a.DominantColors, ", "))
	fmt.Printf("Brightness:  %.2f  Contrast: %.2f\n", a.Brightness, a.Contrast)
	fmt.Printf("Style:       %s  Mood: %s  Quality: %.2f\n", a.Style, a.Mood, a.TechnicalQuality)
	fmt.Println()

	m := res.Meta
	fmt.Printf("=== %s ===\n", strings.ToUpper(c.Name))
	fmt.Printf("Title:       %s\n", res.Projection.Title)
	fmt.Printf("Description: %s\n", res.Projection.Description)
	fmt.Printf("Keywords:    %s\n", strings.Join(res.Projection.Keywords, c.KeywordSeparator+" "))
	fmt.Printf("Secondary:   %s\n", strings.Join(m.KeywordsSecondary, ", "))
	fmt.Printf("Trending:    %s\n", strings.Join(m.TrendingKeywords, ", "))
	fmt.Printf("Category:    %s\n", res.Projection.Category)
	fmt.Printf("SEO score:   %.2f (%s potential)\n", m.SEOScore(), m.MarketPotential())
	for _, p := range res.Problems {
		fmt.Printf("Problem:     %s\n", p)
	}
	fmt.Println()
	fmt.Printf("Tokens:      %d in / %d out / %d total\n",
		res.Usage.InputTokens, res.Usage.OutputTokens, res.Usage.TotalTokens)
	fmt.Printf("Cost:        $%.6f\n", res.Usage.CostUSD)
}
