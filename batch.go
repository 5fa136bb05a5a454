package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/raine/stockmeta/internal/config"
	"github.com/raine/stockmeta/internal/marketplace"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/pipeline"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/raine/stockmeta/internal/sink"
	"github.com/raine/stockmeta/internal/trends"
	"github.com/rs/zerolog/log"
)

type batchOptions struct {
	dir       string
	overrides map[string]string
	export    string
	upload    bool
	dryRun    bool
	chart     string
}

// parseBatchFlags parses the batch command line. Flags that mirror settings
// keys only override the settings file when given.
func parseBatchFlags(args []string) (batchOptions, error) {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	platformID := fs.String("platform", "", "target marketplace")
	lang := fs.String("lang", "", "keyword language: primary, secondary or both")
	workers := fs.Int("workers", 0, "concurrent images")
	iptc := fs.Bool("iptc", true, "embed metadata into the images")
	export := fs.String("export", "", "write all records to this .csv or .json file")
	upload := fs.Bool("upload", false, "submit images to the marketplace")
	dryRun := fs.Bool("dry-run", false, "submit to the mock marketplace instead")
	chart := fs.String("chart", "", "write a trend chart PNG to this file")
	if err := fs.Parse(args); err != nil {
		return batchOptions{}, err
	}
	if fs.NArg() != 1 {
		return batchOptions{}, fmt.Errorf("expected exactly one directory, got %d arguments", fs.NArg())
	}

	opts := batchOptions{
		dir:       fs.Arg(0),
		overrides: map[string]string{},
		export:    *export,
		upload:    *upload || *dryRun,
		dryRun:    *dryRun,
		chart:     *chart,
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "platform":
			opts.overrides["platform"] = *platformID
		case "lang":
			opts.overrides["language"] = *lang
		case "workers":
			opts.overrides["workers"] = strconv.Itoa(*workers)
		case "iptc":
			opts.overrides["write_iptc"] = strconv.FormatBool(*iptc)
		}
	})
	return opts, nil
}

func runBatch(ctx context.Context, args []string) error {
	opts, err := parseBatchFlags(args)
	if err != nil {
		return err
	}
	settings, err := loadSettings(opts.overrides)
	if err != nil {
		return err
	}
	constraints, err := settings.Constraints()
	if err != nil {
		return err
	}
	pref, err := meta.ParseLanguage(settings.Language)
	if err != nil {
		return err
	}
	provider, err := config.ProviderFromEnv()
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	gen, err := buildGenerator(ctx, provider, settings, store)
	if err != nil {
		return err
	}

	runnerOpts := []pipeline.Option{pipeline.WithStore(store)}
	writer, closeWriter := buildWriter(settings)
	defer closeWriter()
	if writer != nil {
		runnerOpts = append(runnerOpts, pipeline.WithWriter(writer))
	}
	if opts.upload {
		id := string(constraints.ID)
		if opts.dryRun {
			id = marketplace.MockID
		}
		uploader, err := uploaderFactory(store, marketplace.WithRequestsPerSecond(constraints.RequestsPerSecond))(id)
		if err != nil {
			return err
		}
		if err := uploader.Authenticate(ctx); err != nil {
			return fmt.Errorf("failed to authenticate with %s: %w", id, err)
		}
		runnerOpts = append(runnerOpts, pipeline.WithUploader(uploader))
	}

	runner, err := pipeline.New(pipeline.Config{
		Platform: constraints,
		Language: pref,
		Workers:  settings.Workers,
		Bounds:   settings.Bounds(),
	}, gen, runnerOpts...)
	if err != nil {
		return err
	}

	paths, err := pipeline.ScanDir(opts.dir)
	if err != nil {
		return err
	}
	log.Info().Str("dir", opts.dir).Int("images", len(paths)).Str("platform", string(constraints.ID)).Msg("starting batch")

	batch, err := runner.Run(ctx, paths)
	if batch != nil {
		printBatchSummary(batch)
		if exportErr := exportBatch(opts, settings.ExportFormat, constraints, pref, batch); exportErr != nil && err == nil {
			err = exportErr
		}
	}
	return err
}

func exportBatch(opts batchOptions, format config.ExportFormat, c platform.Constraints, pref meta.LanguagePreference, batch *pipeline.BatchResult) error {
	if opts.export != "" {
		path := opts.export
		if filepath.Ext(path) == "" {
			path += "." + string(format)
		}
		exporter := sink.Exporter{Constraints: c, Language: pref}
		if err := exporter.ExportFile(path, batch.Metas()); err != nil {
			return err
		}
		log.Info().Str("path", path).Int("records", len(batch.Results)).Str("platform", string(c.ID)).Msg("exported metadata")
	}
	if opts.chart != "" {
		f, err := os.Create(opts.chart)
		if err != nil {
			return fmt.Errorf("failed to create chart file: %w", err)
		}
		defer f.Close()
		if err := trends.RenderChart(f, batch.Report, 15); err != nil {
			return err
		}
		log.Info().Str("path", opts.chart).Msg("wrote trend chart")
	}
	return nil
}

func printBatchSummary(batch *pipeline.BatchResult) {
	fmt.Printf("Batch %s: %d images, %d problems\n", batch.BatchID, len(batch.Results), len(batch.Errors))
	for _, res := range batch.Results {
		line := fmt.Sprintf("  %-32s %-8s seo %.2f  %s", filepath.Base(res.Path), res.Meta.MarketPotential(), res.Meta.SEOScore(), res.Projection.Title)
		if res.DuplicateOf != "" {
			line += fmt.Sprintf("  (near duplicate of %s)", filepath.Base(res.DuplicateOf))
		}
		fmt.Println(line)
	}
	for _, e := range batch.Errors {
		fmt.Printf("  ! %s\n", e.Error())
	}

	r := batch.Report
	fmt.Printf("\nAverage SEO score: %.2f\n", r.AverageSEOScore)
	fmt.Println("Top keywords:")
	for i, e := range r.TopScores(10) {
		fmt.Printf("  %2d. %-24s %.2f (%d)\n", i+1, e.Key, e.Score, e.Count)
	}
	fmt.Printf("Tokens: %d in / %d out, cost $%.4f\n", batch.Usage.InputTokens, batch.Usage.OutputTokens, batch.Usage.CostUSD)
}
