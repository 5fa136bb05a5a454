package marketplace

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/rs/zerolog/log"
)

const (
	adobeAPIURL  = "https://stock-upload.adobe.io/v2"
	adobeIMSURL  = "https://ims-na1.adobelogin.com"
	adobeScope   = "ent_stocksubmit_sdk"
	adobeJWTLife = 24 * time.Hour
)

// AdobeStock uploads through the submission API. It exchanges a signed
// service account JWT for an access token when a private key is configured,
// otherwise it uses the stored access token.
type AdobeStock struct {
	creds   Credentials
	api     *client
	apiURL  string
	authURL string
	now     func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewAdobeStock creates an Adobe Stock uploader.
func NewAdobeStock(creds Credentials, opts ...Option) *AdobeStock {
	o := buildOptions(platform.MustGet(platform.AdobeStock), opts)
	a := &AdobeStock{
		creds:       creds,
		api:         newClient(o),
		apiURL:      adobeAPIURL,
		authURL:     adobeIMSURL,
		now:         time.Now,
		accessToken: creds.AccessToken,
	}
	if o.baseURL != "" {
		a.apiURL = o.baseURL
	}
	if o.authURL != "" {
		a.authURL = o.authURL
	}
	return a
}

// signJWT builds the RS256 service account assertion.
func (a *AdobeStock) signJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.creds.PrivateKeyPEM))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}
	now := a.now()
	claims := jwt.MapClaims{
		"exp": now.Add(adobeJWTLife).Unix(),
		"iss": a.creds.OrgID,
		"sub": a.creds.TechnicalAccountID,
		"aud": a.authURL + "/c/" + a.creds.APIKey,
		a.authURL + "/s/" + adobeScope: true,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	// Milliseconds.
	ExpiresIn int64 `json:"expires_in"`
}

func (a *AdobeStock) exchangeJWT(ctx context.Context) error {
	assertion, err := a.signJWT()
	if err != nil {
		return err
	}

	var result tokenResponse
	r, err := a.api.req(ctx, &result)
	if err != nil {
		return err
	}
	if _, err := handleError(r.
		SetFormData(map[string]string{
			"client_id":     a.creds.APIKey,
			"client_secret": a.creds.ClientSecret,
			"jwt_token":     assertion,
		}).
		Post(a.authURL + "/ims/exchange/jwt")); err != nil {
		return fmt.Errorf("jwt exchange failed: %w", err)
	}
	if result.AccessToken == "" {
		return fmt.Errorf("jwt exchange returned no access token")
	}

	a.mu.Lock()
	a.accessToken = result.AccessToken
	a.expiresAt = a.now().Add(time.Duration(result.ExpiresIn) * time.Millisecond)
	a.mu.Unlock()
	return nil
}

func (a *AdobeStock) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	token, expiresAt := a.accessToken, a.expiresAt
	a.mu.Unlock()

	expired := !expiresAt.IsZero() && a.now().After(expiresAt.Add(-time.Minute))
	if a.creds.PrivateKeyPEM != "" && (token == "" || expired) {
		if err := a.exchangeJWT(ctx); err != nil {
			return "", err
		}
		a.mu.Lock()
		token = a.accessToken
		a.mu.Unlock()
	}
	if token == "" {
		return "", fmt.Errorf("adobe stock needs an access token or a service account key")
	}
	return token, nil
}

func (a *AdobeStock) req(ctx context.Context, result any) (*resty.Request, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}
	r, err := a.api.req(ctx, result)
	if err != nil {
		return nil, err
	}
	return r.SetAuthToken(token).SetHeader("x-api-key", a.creds.APIKey), nil
}

// Authenticate obtains a token if needed and checks it against the profile
// endpoint.
func (a *AdobeStock) Authenticate(ctx context.Context) error {
	r, err := a.req(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := handleError(r.Get(a.apiURL + "/user/profile")); err != nil {
		return fmt.Errorf("adobe stock authentication failed: %w", err)
	}
	log.Info().Msg("adobe stock authentication successful")
	return nil
}

type adobeSubmission struct {
	SubmissionName string   `json:"submission_name"`
	SubmitterTags  []string `json:"submitter_tags"`
	Category       string   `json:"category"`
	ContentType    string   `json:"content_type"`
}

// UploadImage creates a submission and then uploads the file into it.
func (a *AdobeStock) UploadImage(ctx context.Context, sub Submission) UploadResult {
	if problems := validate(platform.AdobeStock, sub); len(problems) > 0 {
		return failure(platform.AdobeStock, sub.Filename, "validation errors: %s", strings.Join(problems, "; "))
	}

	category := sub.Projection.Category
	if category == "" {
		category = "Graphics"
	}

	var created map[string]any
	r, err := a.req(ctx, &created)
	if err != nil {
		return failure(platform.AdobeStock, sub.Filename, "%v", err)
	}
	if _, err := handleError(r.
		SetBody(adobeSubmission{
			SubmissionName: sub.Projection.Title,
			SubmitterTags:  sub.Projection.Keywords,
			Category:       category,
			ContentType:    "photo",
		}).
		Post(a.apiURL + "/submissions")); err != nil {
		return failure(platform.AdobeStock, sub.Filename, "failed to create submission: %v", err)
	}

	id := idString(created["id"])
	if id == "" {
		return failure(platform.AdobeStock, sub.Filename, "submission response has no id")
	}

	var uploaded map[string]any
	r, err = a.req(ctx, &uploaded)
	if err != nil {
		return failure(platform.AdobeStock, sub.Filename, "%v", err)
	}
	if _, err := handleError(r.
		SetPathParam("id", id).
		SetMultipartField("content", sub.Filename, contentType(sub), bytes.NewReader(sub.Image)).
		Post(a.apiURL + "/submissions/{id}/content")); err != nil {
		return failure(platform.AdobeStock, sub.Filename, "upload failed: %v", err)
	}

	log.Info().Str("file", sub.Filename).Str("uploadID", id).Msg("adobe stock upload complete")
	return UploadResult{
		Success:  true,
		Platform: string(platform.AdobeStock),
		Filename: sub.Filename,
		UploadID: id,
		Response: uploaded,
	}
}

// GetStatus reads the review state of a submission.
func (a *AdobeStock) GetStatus(ctx context.Context, uploadID string) (Status, error) {
	var result submissionResponse
	r, err := a.req(ctx, &result)
	if err != nil {
		return StatusPending, err
	}
	if _, err := handleError(r.
		SetPathParam("id", uploadID).
		Get(a.apiURL + "/submissions/{id}")); err != nil {
		return StatusPending, err
	}
	return ParseStatus(result.Status), nil
}
