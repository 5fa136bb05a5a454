// Package httpapi serves metadata generation and trend reports over HTTP.
package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raine/stockmeta/internal/analysis"
	"github.com/raine/stockmeta/internal/llm"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/pipeline"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/raine/stockmeta/internal/trends"
	"github.com/rs/zerolog/log"
)

// MaxUploadSize limits the multipart body of a metadata request.
const MaxUploadSize = 20 * 1024 * 1024

const defaultTopN = 10

// Error codes returned in the error envelope.
const (
	CodeBadRequest      = "bad_request"
	CodeUnknownPlatform = "unknown_platform"
	CodeUnknownLanguage = "unknown_language"
	CodeInternal        = "internal"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// MetadataResponse is the body of a successful POST /v1/metadata.
type MetadataResponse struct {
	Record      meta.Record            `json:"record"`
	Projection  platform.Projection    `json:"projection"`
	Problems    []string               `json:"problems"`
	Analysis    analysis.ImageAnalysis `json:"analysis"`
	Generated   bool                   `json:"generated"`
	Cached      bool                   `json:"cached"`
	Warnings    []string               `json:"warnings,omitempty"`
	Platform    platform.ID            `json:"platform"`
	Language    string                 `json:"language"`
	CostUSD     float64                `json:"cost_usd"`
	ProcessedAt time.Time              `json:"processed_at"`
}

// TrendsResponse is the body of a successful POST /v1/trends.
type TrendsResponse struct {
	trends.Report
	TopKeywords   []trends.Entry `json:"top_keywords"`
	TopScores     []trends.Entry `json:"top_scores"`
	TopCategories []trends.Entry `json:"top_categories"`
}

// Server holds what the handlers share. The zero value is not usable; use
// NewServer.
type Server struct {
	generator llm.Generator
	bounds    meta.KeywordBounds
	platform  platform.ID
	language  meta.LanguagePreference
	// maxKeywords caps marketplace keyword limits when positive.
	maxKeywords int
}

// NewServer creates a server drafting with gen. A nil generator produces
// filename and color based metadata only.
func NewServer(gen llm.Generator, bounds meta.KeywordBounds, id platform.ID, pref meta.LanguagePreference) *Server {
	return &Server{generator: gen, bounds: bounds, platform: id, language: pref}
}

// SetMaxKeywords caps the keyword count of drafted metadata below the
// marketplace limits.
func (s *Server) SetMaxKeywords(n int) {
	s.maxKeywords = n
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", s.healthz)

	v1 := router.Group("/v1")
	{
		v1.POST("/metadata", s.createMetadata)
		v1.GET("/platforms", s.listPlatforms)
		v1.GET("/platforms/:id", s.getPlatform)
		v1.POST("/trends", s.createTrends)
		v1.POST("/trends/chart", s.createTrendsChart)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listPlatforms(c *gin.Context) {
	out := make([]platform.Constraints, 0, len(platform.IDs()))
	for _, id := range platform.IDs() {
		out = append(out, platform.MustGet(id))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getPlatform(c *gin.Context) {
	constraints, err := platform.Get(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, CodeUnknownPlatform, err)
		return
	}
	c.JSON(http.StatusOK, constraints)
}

// createMetadata drafts metadata for one uploaded image. Form fields:
// image (file), platform and language (both optional).
func (s *Server) createMetadata(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

	constraints, err := platform.Get(c.DefaultPostForm("platform", string(s.platform)))
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeUnknownPlatform, err)
		return
	}
	constraints = constraints.CapKeywords(s.maxKeywords)
	pref, err := meta.ParseLanguage(c.DefaultPostForm("language", string(s.language)))
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeUnknownLanguage, err)
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, fmt.Errorf("missing image: %w", err))
		return
	}
	if !platform.IsSupportedFile(header.Filename) {
		respondError(c, http.StatusBadRequest, CodeBadRequest, fmt.Errorf("%w: %s", pipeline.ErrUnsupportedFormat, header.Filename))
		return
	}
	f, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, fmt.Errorf("failed to read image: %w", err))
		return
	}

	runner, err := pipeline.New(pipeline.Config{
		Platform: constraints,
		Language: pref,
		Workers:  1,
		Bounds:   s.bounds,
	}, s.generator)
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, err)
		return
	}

	res, errs := runner.ProcessBytes(c.Request.Context(), header.Filename, data)
	if res == nil || res.Meta == nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, errors.Join(imageErrors(errs)...))
		return
	}

	resp := MetadataResponse{
		Record:      res.Meta.Record(),
		Projection:  res.Projection,
		Problems:    res.Problems,
		Analysis:    res.Analysis,
		Generated:   res.Generated,
		Cached:      res.Cached,
		Platform:    constraints.ID,
		Language:    string(pref),
		CostUSD:     res.Usage.CostUSD,
		ProcessedAt: time.Now().UTC(),
	}
	if resp.Problems == nil {
		resp.Problems = []string{}
	}
	for _, e := range errs {
		resp.Warnings = append(resp.Warnings, e.Error())
	}
	c.JSON(http.StatusOK, resp)
}

func imageErrors(errs []*pipeline.ImageError) []error {
	out := make([]error, 0, len(errs))
	for _, e := range errs {
		out = append(out, e)
	}
	return out
}

func bindRecords(c *gin.Context) ([]meta.Record, bool) {
	var records []meta.Record
	if err := c.ShouldBindJSON(&records); err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, fmt.Errorf("expected a JSON array of records: %w", err))
		return nil, false
	}
	return records, true
}

func topN(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.DefaultQuery("top", strconv.Itoa(defaultTopN)))
	if err != nil || n < 0 {
		respondError(c, http.StatusBadRequest, CodeBadRequest, fmt.Errorf("invalid top %q", c.Query("top")))
		return 0, false
	}
	return n, true
}

// createTrends aggregates the posted records. ?top=N limits the listings.
func (s *Server) createTrends(c *gin.Context) {
	records, ok := bindRecords(c)
	if !ok {
		return
	}
	n, ok := topN(c)
	if !ok {
		return
	}
	report := trends.AggregateRecords(records)
	c.JSON(http.StatusOK, TrendsResponse{
		Report:        report,
		TopKeywords:   report.TopKeywords(n),
		TopScores:     report.TopScores(n),
		TopCategories: report.TopCategories(n),
	})
}

func (s *Server) createTrendsChart(c *gin.Context) {
	records, ok := bindRecords(c)
	if !ok {
		return
	}
	n, ok := topN(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := trends.RenderChart(&buf, trends.AggregateRecords(records), n); err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
