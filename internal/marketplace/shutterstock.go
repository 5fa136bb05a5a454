package marketplace

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/rs/zerolog/log"
)

const (
	shutterstockAPIURL    = "https://api.shutterstock.com/v2"
	shutterstockUploadURL = "https://submit-api.shutterstock.com/v1"
)

// Shutterstock uploads through the contributor submission API with a bearer
// token.
type Shutterstock struct {
	creds     Credentials
	api       *client
	apiURL    string
	uploadURL string
}

// NewShutterstock creates a Shutterstock uploader.
func NewShutterstock(creds Credentials, opts ...Option) *Shutterstock {
	o := buildOptions(platform.MustGet(platform.Shutterstock), opts)
	s := &Shutterstock{
		creds:     creds,
		api:       newClient(o),
		apiURL:    shutterstockAPIURL,
		uploadURL: shutterstockUploadURL,
	}
	if o.baseURL != "" {
		s.apiURL = o.baseURL
		s.uploadURL = o.baseURL
	}
	if o.uploadURL != "" {
		s.uploadURL = o.uploadURL
	}
	return s
}

func (s *Shutterstock) req(ctx context.Context, result any) (*resty.Request, error) {
	r, err := s.api.req(ctx, result)
	if err != nil {
		return nil, err
	}
	return r.SetAuthToken(s.creds.APIKey), nil
}

// Authenticate checks the token against the user endpoint.
func (s *Shutterstock) Authenticate(ctx context.Context) error {
	if s.creds.APIKey == "" {
		return fmt.Errorf("shutterstock api key is not configured")
	}
	r, err := s.req(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := handleError(r.Get(s.apiURL + "/user")); err != nil {
		return fmt.Errorf("shutterstock authentication failed: %w", err)
	}
	log.Info().Msg("shutterstock authentication successful")
	return nil
}

type submissionResponse struct {
	Status string `json:"status"`
}

// UploadImage submits the image and its metadata as one multipart request.
func (s *Shutterstock) UploadImage(ctx context.Context, sub Submission) UploadResult {
	if problems := validate(platform.Shutterstock, sub); len(problems) > 0 {
		return failure(platform.Shutterstock, sub.Filename, "validation errors: %s", strings.Join(problems, "; "))
	}

	category := sub.Projection.Category
	if category == "" {
		category = "Miscellaneous"
	}

	var result map[string]any
	r, err := s.req(ctx, &result)
	if err != nil {
		return failure(platform.Shutterstock, sub.Filename, "%v", err)
	}
	res, err := handleError(r.
		SetMultipartField("image_file", sub.Filename, contentType(sub), bytes.NewReader(sub.Image)).
		SetMultipartFormData(map[string]string{
			"title":       sub.Projection.Title,
			"description": sub.Projection.Description,
			"keywords":    strings.Join(sub.Projection.Keywords, ","),
			"category":    category,
			"editorial":   "false",
			"mature":      "false",
		}).
		Post(s.uploadURL + "/submissions"))
	if err != nil {
		return failure(platform.Shutterstock, sub.Filename, "%v", err)
	}

	id := idString(result["id"])
	log.Info().Str("file", sub.Filename).Str("uploadID", id).Int("status", res.StatusCode()).Msg("shutterstock upload complete")
	return UploadResult{
		Success:  true,
		Platform: string(platform.Shutterstock),
		Filename: sub.Filename,
		UploadID: id,
		Response: result,
	}
}

// GetStatus reads the review state of a submission.
func (s *Shutterstock) GetStatus(ctx context.Context, uploadID string) (Status, error) {
	var result submissionResponse
	r, err := s.req(ctx, &result)
	if err != nil {
		return StatusPending, err
	}
	if _, err := handleError(r.
		SetPathParam("id", uploadID).
		Get(s.uploadURL + "/submissions/{id}")); err != nil {
		return StatusPending, err
	}
	return ParseStatus(result.Status), nil
}

// idString renders JSON ids, which arrive as numbers or strings.
func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprint(t)
	}
}
