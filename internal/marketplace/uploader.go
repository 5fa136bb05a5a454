// Package marketplace submits finished images to stock marketplaces.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/stockmeta/internal/platform"
	"golang.org/x/time/rate"
)

// MockID selects the dry-run uploader.
const MockID = "mock"

// ErrUploadUnsupported is returned for marketplaces that have constraints
// but no submission API.
var ErrUploadUnsupported = errors.New("marketplace has no upload API")

// Credentials are stored encrypted per marketplace.
type Credentials struct {
	APIKey       string `json:"api_key,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	// Adobe service account fields used for the JWT exchange.
	TechnicalAccountID string `json:"technical_account_id,omitempty"`
	OrgID              string `json:"org_id,omitempty"`
	PrivateKeyPEM      string `json:"private_key_pem,omitempty"`
}

// Submission is one image plus the metadata projected for the target
// marketplace.
type Submission struct {
	Filename   string
	Image      []byte
	MIMEType   string
	Projection platform.Projection
}

// UploadResult reports the outcome of one upload. Failures are values, not
// errors, so a batch can keep going.
type UploadResult struct {
	Success      bool           `json:"success"`
	Platform     string         `json:"platform"`
	Filename     string         `json:"filename"`
	UploadID     string         `json:"upload_id,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Response     map[string]any `json:"response,omitempty"`
}

// Status is the review state reported by a marketplace.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus maps a marketplace review state onto Status. Anything not
// clearly final counts as pending.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "accepted", "published", "processed":
		return StatusApproved
	case "rejected", "declined", "refused":
		return StatusRejected
	default:
		return StatusPending
	}
}

// Uploader is implemented once per marketplace.
type Uploader interface {
	Authenticate(ctx context.Context) error
	UploadImage(ctx context.Context, sub Submission) UploadResult
	GetStatus(ctx context.Context, uploadID string) (Status, error)
}

type options struct {
	baseURL      string
	uploadURL    string
	authURL      string
	retries      int
	retryWait    time.Duration
	retryMaxWait time.Duration
	timeout      time.Duration
	rps          float64
}

// Option configures an uploader.
type Option func(*options)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = u } }

// WithUploadURL overrides the submission endpoint where it differs from the
// API endpoint.
func WithUploadURL(u string) Option { return func(o *options) { o.uploadURL = u } }

// WithAuthURL overrides the token exchange endpoint.
func WithAuthURL(u string) Option { return func(o *options) { o.authURL = u } }

// WithRetries sets retry count and initial wait for 429 and 5xx responses.
func WithRetries(n int, wait time.Duration) Option {
	return func(o *options) {
		o.retries = n
		o.retryWait = wait
	}
}

// WithRequestsPerSecond overrides the marketplace rate limit.
func WithRequestsPerSecond(rps float64) Option { return func(o *options) { o.rps = rps } }

// New returns the uploader for a marketplace id.
func New(id string, creds Credentials, opts ...Option) (Uploader, error) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case MockID:
		return NewMock(), nil
	case string(platform.Shutterstock):
		return NewShutterstock(creds, opts...), nil
	case string(platform.AdobeStock), "adobe":
		return NewAdobeStock(creds, opts...), nil
	}
	if _, err := platform.Get(id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrUploadUnsupported, id)
}

func buildOptions(c platform.Constraints, opts []Option) options {
	o := options{
		retries:      3,
		retryWait:    time.Second,
		retryMaxWait: 30 * time.Second,
		timeout:      5 * time.Minute,
		rps:          c.RequestsPerSecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// client is the rate-limited, retrying HTTP client shared by uploaders.
type client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

func newClient(o options) *client {
	limit := rate.Inf
	if o.rps > 0 {
		limit = rate.Limit(o.rps)
	}
	return &client{
		http: resty.New().
			SetDebug(false).
			SetTimeout(o.timeout).
			SetRetryCount(o.retries).
			SetRetryWaitTime(o.retryWait).
			SetRetryMaxWaitTime(o.retryMaxWait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err == nil && r != nil && retryStatuses[r.StatusCode()]
			}).
			SetHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// req waits for the rate limiter and returns a request bound to ctx.
func (c *client) req(ctx context.Context, result any) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	request := c.http.NewRequest().SetContext(ctx)
	if result != nil {
		request.SetResult(result)
	}
	return request, nil
}

// handleError turns >399 responses into errors.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		return res, fmt.Errorf("request failed: %s %s (status: %d): %s",
			res.Request.Method, res.Request.URL, res.StatusCode(), strings.TrimSpace(res.String()))
	}
	return res, nil
}

func validate(id platform.ID, sub Submission) []string {
	c := platform.MustGet(id)
	p := sub.Projection
	return platform.Validate(c, p.Title, p.Description, p.Keywords)
}

func failure(id platform.ID, filename, format string, args ...any) UploadResult {
	return UploadResult{
		Platform:     string(id),
		Filename:     filename,
		ErrorMessage: fmt.Sprintf(format, args...),
	}
}

func contentType(sub Submission) string {
	if sub.MIMEType != "" {
		return sub.MIMEType
	}
	return "image/jpeg"
}
