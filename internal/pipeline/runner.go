// Package pipeline runs the per-image metadata flow over a batch.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/raine/stockmeta/internal/analysis"
	"github.com/raine/stockmeta/internal/keyword"
	"github.com/raine/stockmeta/internal/llm"
	"github.com/raine/stockmeta/internal/marketplace"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/raine/stockmeta/internal/sink"
	"github.com/raine/stockmeta/internal/storage"
	"github.com/raine/stockmeta/internal/trends"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// ErrorKind classifies per-image failures. None of them stop the batch.
type ErrorKind string

const (
	KindRead       ErrorKind = "read"
	KindGeneration ErrorKind = "generation"
	KindSink       ErrorKind = "sink"
	KindUpload     ErrorKind = "upload"
	KindStore      ErrorKind = "store"
)

// ErrUnsupportedFormat is collected for files whose extension no marketplace
// accepts.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ImageError is one failure collected during a batch.
type ImageError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Path, e.Kind, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// Store persists records and uploads.
type Store interface {
	SaveRecord(rec *storage.StoredRecord) error
	CreateUpload(u *storage.Upload) error
}

// Config selects the marketplace and language for a run.
type Config struct {
	Platform platform.Constraints
	Language meta.LanguagePreference
	Workers  int
	Bounds   meta.KeywordBounds
	OwnerID  int64
}

// ImageResult is everything produced for one image.
type ImageResult struct {
	Path       string
	Meta       *meta.Meta
	Analysis   analysis.ImageAnalysis
	Keywords   []string
	Projection platform.Projection
	// Problems are marketplace validation failures of the projection.
	Problems    []string
	Generated   bool
	Cached      bool
	Usage       llm.Usage
	DuplicateOf string
	Sink        *sink.Result
	Upload      *marketplace.UploadResult

	hash *goimagehash.ImageHash
}

// BatchResult collects a whole run.
type BatchResult struct {
	BatchID string
	Results []ImageResult
	Errors  []*ImageError
	Report  trends.Report
	Usage   llm.Usage
}

// Metas returns the records of the batch in input order.
func (b *BatchResult) Metas() []*meta.Meta {
	out := make([]*meta.Meta, 0, len(b.Results))
	for _, r := range b.Results {
		out = append(out, r.Meta)
	}
	return out
}

// Runner processes images. It is safe for concurrent use.
type Runner struct {
	cfg      Config
	gen      llm.Generator
	store    Store
	writer   sink.MetadataWriter
	uploader marketplace.Uploader
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists every record and upload.
func WithStore(s Store) Option { return func(r *Runner) { r.store = s } }

// WithWriter embeds metadata into each processed file.
func WithWriter(w sink.MetadataWriter) Option { return func(r *Runner) { r.writer = w } }

// WithUploader submits each processed image.
func WithUploader(u marketplace.Uploader) Option { return func(r *Runner) { r.uploader = u } }

// New validates cfg and creates a runner.
func New(cfg Config, gen llm.Generator, opts ...Option) (*Runner, error) {
	lang, err := meta.ParseLanguage(string(cfg.Language))
	if err != nil {
		return nil, err
	}
	cfg.Language = lang
	if cfg.Platform.ID == "" {
		return nil, &platform.ConfigurationError{ID: ""}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	r := &Runner{cfg: cfg, gen: gen}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Constraints returns the marketplace the runner projects for.
func (r *Runner) Constraints() platform.Constraints { return r.cfg.Platform }

// Run processes paths with a bounded worker pool. Per-image failures are
// collected; cancellation stops launching new images and returns the
// context error with the partial result.
func (r *Runner) Run(ctx context.Context, paths []string) (*BatchResult, error) {
	batch := &BatchResult{BatchID: storage.NewBatchID()}
	results := make([]*ImageResult, len(paths))

	var mu sync.Mutex
	collect := func(errs []*ImageError) {
		mu.Lock()
		batch.Errors = append(batch.Errors, errs...)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers)

	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if !platform.IsSupportedFile(path) {
				log.Debug().Str("file", path).Msg("skipping unsupported file")
				collect([]*ImageError{{Path: path, Kind: KindRead, Err: ErrUnsupportedFormat}})
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				collect([]*ImageError{{Path: path, Kind: KindRead, Err: err}})
				return nil
			}
			res, errs := r.process(ctx, batch.BatchID, path, data, true)
			results[i] = res
			collect(errs)
			return nil
		})
	}
	g.Wait()
	markDuplicates(results)

	for _, res := range results {
		if res == nil {
			continue
		}
		batch.Results = append(batch.Results, *res)
		batch.Usage.InputTokens += res.Usage.InputTokens
		batch.Usage.OutputTokens += res.Usage.OutputTokens
		batch.Usage.TotalTokens += res.Usage.TotalTokens
		batch.Usage.CostUSD += res.Usage.CostUSD
	}
	batch.Report = trends.Aggregate(batch.Metas())

	log.Info().
		Str("batchID", batch.BatchID).
		Int("images", len(batch.Results)).
		Int("errors", len(batch.Errors)).
		Float64("avgSEO", batch.Report.AverageSEOScore).
		Float64("costUSD", batch.Usage.CostUSD).
		Msg("batch finished")

	return batch, ctx.Err()
}

// ProcessBytes runs one in-memory image through the pipeline without the
// on-disk sinks. Failures other than generation fall back silently; the
// returned errors describe what was substituted.
func (r *Runner) ProcessBytes(ctx context.Context, filename string, data []byte) (*ImageResult, []*ImageError) {
	return r.process(ctx, "", filename, data, false)
}

func (r *Runner) process(ctx context.Context, batchID, path string, data []byte, hashImage bool) (*ImageResult, []*ImageError) {
	var errs []*ImageError
	filename := filepath.Base(path)
	c := r.cfg.Platform

	img, _, decodeErr := image.Decode(bytes.NewReader(data))
	a := analysis.Neutral()
	if decodeErr == nil {
		a = analysis.Analyze(img)
	} else {
		log.Warn().Err(decodeErr).Str("file", filename).Msg("image decode failed, using neutral analysis")
	}

	res := &ImageResult{Path: path, Analysis: a}
	if hashImage {
		res.hash = imageHash(img)
	}

	draft, genErr := r.generate(ctx, filename, data, a, res)
	if genErr != nil {
		errs = append(errs, &ImageError{Path: path, Kind: KindGeneration, Err: genErr})
	}

	draft.KeywordsPrimary = appendUnique(draft.KeywordsPrimary, ExistingKeywords(data)...)
	draft.KeywordsPrimary = appendUnique(draft.KeywordsPrimary, keyword.TokenizeFilename(filename)...)

	m := meta.Enricher{Bounds: r.cfg.Bounds}.Enrich(draft, a, c)
	m.Filename = filename
	res.Meta = m

	keywords, err := m.MergedKeywords(r.cfg.Language, c.MaxKeywords)
	if err != nil {
		// New rejects unknown preferences, so this is a programming error.
		panic(err)
	}
	res.Keywords = keywords
	res.Projection = platform.Project(c, m.Title, m.Description, keywords, m.Category)
	res.Problems = platform.Validate(c, res.Projection.Title, res.Projection.Description, res.Projection.Keywords)

	if r.writer != nil && batchID != "" {
		sr := r.writer.WriteMetadata(path, res.Projection)
		res.Sink = &sr
		if !sr.OK {
			errs = append(errs, &ImageError{Path: path, Kind: KindSink, Err: errors.New(sr.Message)})
		}
	}

	if r.uploader != nil {
		if err := r.upload(ctx, path, filename, data, res); err != nil {
			errs = append(errs, &ImageError{Path: path, Kind: KindUpload, Err: err})
		}
	}

	if r.store != nil {
		rec := &storage.StoredRecord{
			BatchID:  batchID,
			OwnerID:  r.cfg.OwnerID,
			Platform: string(c.ID),
			Path:     path,
			Record:   m.Record(),
		}
		if rec.BatchID == "" {
			rec.BatchID = storage.NewBatchID()
		}
		if err := r.store.SaveRecord(rec); err != nil {
			errs = append(errs, &ImageError{Path: path, Kind: KindStore, Err: err})
		}
	}

	log.Info().
		Str("file", filename).
		Float64("seo", m.SEOScore()).
		Str("potential", string(m.MarketPotential())).
		Int("keywords", len(keywords)).
		Bool("generated", res.Generated).
		Msg("processed image")

	return res, errs
}

// generate calls the generator and substitutes the filename-based draft on
// failure.
func (r *Runner) generate(ctx context.Context, filename string, data []byte, a analysis.ImageAnalysis, res *ImageResult) (meta.Draft, error) {
	if r.gen == nil {
		return meta.FallbackDraft(filename, a), nil
	}
	out, err := r.gen.Generate(ctx, llm.GenerateRequest{
		Filename:    filename,
		Image:       data,
		MIMEType:    http.DetectContentType(data),
		Analysis:    a,
		Constraints: r.cfg.Platform,
	})
	if err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("generation failed, using fallback metadata")
		return meta.FallbackDraft(filename, a), err
	}
	res.Generated = true
	res.Cached = out.Cached
	res.Usage = out.Usage
	return out.Draft, nil
}

func (r *Runner) upload(ctx context.Context, path, filename string, data []byte, res *ImageResult) error {
	if len(res.Problems) > 0 {
		return fmt.Errorf("not uploaded: %s", strings.Join(res.Problems, "; "))
	}

	ur := r.uploader.UploadImage(ctx, marketplace.Submission{
		Filename:   filename,
		Image:      data,
		MIMEType:   http.DetectContentType(data),
		Projection: res.Projection,
	})
	res.Upload = &ur

	if r.store != nil {
		status := storage.UploadPending
		if !ur.Success {
			status = storage.UploadFailed
		}
		// Dry runs are recorded under the mock marketplace so the watcher
		// never asks a real one about them.
		uploadedTo := ur.Platform
		if uploadedTo == "" {
			uploadedTo = string(r.cfg.Platform.ID)
		}
		if err := r.store.CreateUpload(&storage.Upload{
			OwnerID:  r.cfg.OwnerID,
			Platform: uploadedTo,
			Path:     path,
			RemoteID: ur.UploadID,
			Status:   status,
			Message:  ur.ErrorMessage,
		}); err != nil {
			log.Warn().Err(err).Str("file", filename).Msg("failed to record upload")
		}
	}

	if !ur.Success {
		return errors.New(ur.ErrorMessage)
	}
	return nil
}

// appendUnique appends the keywords of extra not already in list, ignoring
// case.
func appendUnique(list []string, extra ...string) []string {
	seen := make(map[string]bool, len(list)+len(extra))
	for _, kw := range list {
		seen[strings.ToLower(strings.TrimSpace(kw))] = true
	}
	for _, kw := range extra {
		key := strings.ToLower(strings.TrimSpace(kw))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		list = append(list, kw)
	}
	return list
}
