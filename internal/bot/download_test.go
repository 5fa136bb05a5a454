package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFromTelegramFileID_Success(t *testing.T) {
	var handlerCalled bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/file/photo-1.jpg", r.URL.Path)
		handlerCalled = true
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer ts.Close()

	getFileDirectURL := func(fileID string) (string, error) {
		return ts.URL + "/file/" + fileID + ".jpg", nil
	}

	data, err := NewImageDownloader().DownloadFromTelegramFileID(context.Background(), getFileDirectURL, "photo-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.True(t, handlerCalled)
}

func TestDownloadFromTelegramFileID_URLResolutionError(t *testing.T) {
	getFileDirectURL := func(fileID string) (string, error) {
		return "", errors.New("file not found")
	}

	_, err := NewImageDownloader().DownloadFromTelegramFileID(context.Background(), getFileDirectURL, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get file URL")
}

func TestImageDownloader_DownloadFromURL(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		maxSize     int64
		wantErr     string
	}{
		{name: "image", status: 200, contentType: "image/png", body: "png"},
		{name: "telegram document", status: 200, contentType: "application/octet-stream", body: "raw"},
		{name: "not found", status: 404, contentType: "text/plain", body: "nope", wantErr: "status 404"},
		{name: "html", status: 200, contentType: "text/html", body: "<html>", wantErr: "invalid content type"},
		{name: "too large", status: 200, contentType: "image/jpeg", body: strings.Repeat("x", 100), maxSize: 50, wantErr: "image too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			d := NewImageDownloader()
			if tt.maxSize > 0 {
				d = d.WithMaxSize(tt.maxSize)
			}
			data, err := d.DownloadFromURL(context.Background(), ts.URL)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(data))
		})
	}
}

func TestImageDownloader_ContentLengthExceedsLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(5000))
		w.Write(make([]byte, 5000))
	}))
	defer ts.Close()

	_, err := NewImageDownloader().WithMaxSize(1000).DownloadFromURL(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit of 1000 bytes")
}

func TestImageDownloader_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewImageDownloader().DownloadFromURL(ctx, ts.URL)
	assert.Error(t, err)
}
