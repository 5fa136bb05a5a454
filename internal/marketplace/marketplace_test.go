package marketplace

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(url string) []Option {
	return []Option{
		WithBaseURL(url),
		WithAuthURL(url),
		WithRetries(2, time.Millisecond),
		WithRequestsPerSecond(0),
	}
}

func validSubmission() Submission {
	return Submission{
		Filename: "sunset.jpg",
		Image:    []byte("jpeg-bytes"),
		Projection: platform.Projection{
			Title:       "Golden sunset over the mountains",
			Description: "Warm evening light over a mountain range",
			Keywords:    []string{"sunset", "mountains", "landscape", "nature", "evening", "sky", "orange"},
			Category:    "Nature",
		},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
		want    any
	}{
		{id: "shutterstock", want: &Shutterstock{}},
		{id: "adobe_stock", want: &AdobeStock{}},
		{id: "ADOBE", want: &AdobeStock{}},
		{id: "mock", want: &Mock{}},
		{id: "getty", wantErr: true},
		{id: "nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			u, err := New(tt.id, Credentials{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, u)
		})
	}

	_, err := New("getty", Credentials{})
	assert.ErrorIs(t, err, ErrUploadUnsupported)

	_, err = New("nope", Credentials{})
	var cfgErr *platform.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"approved", StatusApproved},
		{"Accepted", StatusApproved},
		{"processed", StatusApproved},
		{"rejected", StatusRejected},
		{"in_review", StatusPending},
		{"", StatusPending},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseStatus(tt.in), tt.in)
	}
}

func TestShutterstockUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/user":
			w.Write([]byte(`{"id":"u1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/submissions":
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "Golden sunset over the mountains", r.FormValue("title"))
			assert.Equal(t, "sunset,mountains,landscape,nature,evening,sky,orange", r.FormValue("keywords"))
			assert.Equal(t, "Nature", r.FormValue("category"))
			assert.Equal(t, "false", r.FormValue("editorial"))
			if f, hdr, err := r.FormFile("image_file"); assert.NoError(t, err) {
				data, _ := io.ReadAll(f)
				assert.Equal(t, "jpeg-bytes", string(data))
				assert.Equal(t, "sunset.jpg", hdr.Filename)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":12345,"status":"pending"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/submissions/12345":
			w.Write([]byte(`{"status":"approved"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	u := NewShutterstock(Credentials{APIKey: "tok"}, testOptions(srv.URL)...)
	ctx := context.Background()

	require.NoError(t, u.Authenticate(ctx))

	res := u.UploadImage(ctx, validSubmission())
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "12345", res.UploadID)
	assert.Equal(t, "shutterstock", res.Platform)

	status, err := u.GetStatus(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, status)
}

func TestShutterstockValidation(t *testing.T) {
	u := NewShutterstock(Credentials{APIKey: "tok"}, testOptions("http://127.0.0.1:1")...)
	sub := validSubmission()
	sub.Projection.Title = "Shutterstock watermark sample"

	res := u.UploadImage(context.Background(), sub)
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "forbidden word")

	assert.Error(t, NewShutterstock(Credentials{}).Authenticate(context.Background()))
}

func TestShutterstockRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"rejected"}`))
	}))
	defer srv.Close()

	u := NewShutterstock(Credentials{APIKey: "tok"}, testOptions(srv.URL)...)
	status, err := u.GetStatus(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestShutterstockGivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	u := NewShutterstock(Credentials{APIKey: "bad"}, testOptions(srv.URL)...)
	err := u.Authenticate(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func generateKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return key, string(pem.EncodeToMemory(block))
}

func TestAdobeStockJWTUpload(t *testing.T) {
	key, keyPEM := generateKeyPEM(t)
	var exchanges atomic.Int32

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/ims/exchange/jwt" {
			exchanges.Add(1)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client-id", r.FormValue("client_id"))
			assert.Equal(t, "secret", r.FormValue("client_secret"))

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(r.FormValue("jwt_token"), claims, func(tok *jwt.Token) (any, error) {
				return &key.PublicKey, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
			assert.NoError(t, err)
			assert.Equal(t, "org@AdobeOrg", claims["iss"])
			assert.Equal(t, "tech@techacct", claims["sub"])
			assert.Equal(t, true, claims[srvURL+"/s/ent_stocksubmit_sdk"])

			w.Write([]byte(`{"access_token":"ims-token","expires_in":86400000}`))
			return
		}

		assert.Equal(t, "Bearer ims-token", r.Header.Get("Authorization"))
		assert.Equal(t, "client-id", r.Header.Get("x-api-key"))

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/user/profile":
			w.Write([]byte(`{}`))
		case r.Method == http.MethodPost && r.URL.Path == "/submissions":
			var body adobeSubmission
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Golden sunset over the mountains", body.SubmissionName)
			assert.Equal(t, "photo", body.ContentType)
			assert.Len(t, body.SubmitterTags, 7)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"sub-9"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/submissions/sub-9/content":
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			_, _, err := r.FormFile("content")
			assert.NoError(t, err)
			w.Write([]byte(`{"state":"uploaded"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/submissions/sub-9":
			w.Write([]byte(`{"status":"in_review"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	u := NewAdobeStock(Credentials{
		APIKey:             "client-id",
		ClientSecret:       "secret",
		OrgID:              "org@AdobeOrg",
		TechnicalAccountID: "tech@techacct",
		PrivateKeyPEM:      keyPEM,
	}, testOptions(srv.URL)...)
	ctx := context.Background()

	require.NoError(t, u.Authenticate(ctx))

	res := u.UploadImage(ctx, validSubmission())
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "sub-9", res.UploadID)
	assert.Equal(t, "uploaded", res.Response["state"])

	status, err := u.GetStatus(ctx, "sub-9")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	// The token is reused until it nears expiry.
	assert.Equal(t, int32(1), exchanges.Load())
}

func TestAdobeStockRequiresToken(t *testing.T) {
	u := NewAdobeStock(Credentials{APIKey: "k"}, testOptions("http://127.0.0.1:1")...)
	assert.Error(t, u.Authenticate(context.Background()))

	sub := validSubmission()
	sub.Projection.Keywords = []string{"one", "two"}
	res := u.UploadImage(context.Background(), sub)
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "minimum 7 keywords")
}

func TestMockUploader(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	require.NoError(t, m.Authenticate(ctx))

	res := m.UploadImage(ctx, validSubmission())
	require.True(t, res.Success)
	assert.Equal(t, "processed", res.Response["status"])

	status, err := m.GetStatus(ctx, res.UploadID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, status)

	status, err = m.GetStatus(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	res = m.UploadImage(ctx, Submission{Filename: "x.jpg"})
	assert.False(t, res.Success)
}
