package llm

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raine/stockmeta/internal/analysis"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/raine/stockmeta/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type generatorMock struct {
	mock.Mock
}

func (m *generatorMock) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*GenerateResult)
	return result, args.Error(1)
}

type generatorFunc func(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

func (f generatorFunc) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	return f(ctx, req)
}

func newTestRequest(image string, id platform.ID) GenerateRequest {
	return GenerateRequest{
		Filename:    "photo.jpg",
		Image:       []byte(image),
		MIMEType:    "image/jpeg",
		Analysis:    analysis.Neutral(),
		Constraints: platform.MustGet(id),
	}
}

func TestCachedGenerator(t *testing.T) {
	key, err := storage.DeriveKey("test")
	require.NoError(t, err)
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), key)
	require.NoError(t, err)
	defer store.Close()

	inner := new(generatorMock)
	draft := meta.Draft{Title: "Sunset", KeywordsPrimary: []string{"sunset"}}
	inner.On("Generate", mock.Anything, mock.Anything).
		Return(&GenerateResult{Draft: draft, Model: "m"}, nil).Twice()

	gen := NewCachedGenerator(inner, store)
	ctx := context.Background()

	first, err := gen.Generate(ctx, newTestRequest("image-a", platform.Shutterstock))
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := gen.Generate(ctx, newTestRequest("image-a", platform.Shutterstock))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "Sunset", second.Draft.Title)
	assert.Equal(t, "m", second.Model)

	// Same image for another platform is a different entry.
	third, err := gen.Generate(ctx, newTestRequest("image-a", platform.AdobeStock))
	require.NoError(t, err)
	assert.False(t, third.Cached)

	inner.AssertExpectations(t)
}

func TestCachedGeneratorPropagatesError(t *testing.T) {
	inner := new(generatorMock)
	inner.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	gen := NewCachedGenerator(inner, nil)
	_, err := gen.Generate(context.Background(), newTestRequest("x", platform.Shutterstock))
	assert.EqualError(t, err, "boom")
}

func TestCachedGeneratorSkipsUnparseableText(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	var calls atomic.Int32
	inner := generatorFunc(func(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
		if calls.Add(1) == 1 {
			return draftResult(req, "I cannot describe this image.", "m", Usage{})
		}
		return draftResult(req, `{"title":"Harbor at Dawn"}`, "m", Usage{})
	})
	gen := NewCachedGenerator(inner, store)
	req := newTestRequest("image-b", platform.Shutterstock)

	_, err = gen.Generate(context.Background(), req)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, ErrUnparseable)

	entry, err := store.GetGenerationCache(cacheKey(req.Image, string(req.Constraints.ID)))
	require.NoError(t, err)
	assert.Nil(t, entry)

	result, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, "Harbor at Dawn", result.Draft.Title)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryingGeneratorRetriesUnparseableText(t *testing.T) {
	var calls atomic.Int32
	inner := generatorFunc(func(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
		calls.Add(1)
		return draftResult(req, "no json here", "m", Usage{})
	})

	gen := NewRetryingGenerator(inner, WithTries(2), WithInitialInterval(time.Millisecond))
	_, err := gen.Generate(context.Background(), newTestRequest("x", platform.Shutterstock))

	assert.ErrorIs(t, err, ErrUnparseable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, cacheKey([]byte("a"), "p"), cacheKey([]byte("a"), "p"))
	assert.NotEqual(t, cacheKey([]byte("a"), "p"), cacheKey([]byte("a"), "q"))
	assert.NotEqual(t, cacheKey([]byte("ab"), ""), cacheKey([]byte("a"), "b"))
	assert.Len(t, cacheKey(nil, ""), 64)
}

func TestRetryingGenerator(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		tries     int
		wantErr   bool
		wantCalls int32
	}{
		{name: "first attempt succeeds", failures: 0, tries: 3, wantCalls: 1},
		{name: "recovers after failures", failures: 2, tries: 3, wantCalls: 3},
		{name: "gives up", failures: 5, tries: 3, wantErr: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			inner := generatorFunc(func(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
				n := calls.Add(1)
				if n <= tt.failures {
					return nil, errors.New("temporarily unavailable")
				}
				return &GenerateResult{Draft: meta.Draft{Title: "ok"}}, nil
			})

			gen := NewRetryingGenerator(inner,
				WithTries(tt.tries),
				WithInitialInterval(time.Millisecond),
				WithRequestsPerSecond(0),
			)
			result, err := gen.Generate(context.Background(), newTestRequest("x", platform.Shutterstock))

			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				var genErr *GenerationError
				require.ErrorAs(t, err, &genErr)
				assert.Equal(t, "photo.jpg", genErr.Filename)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", result.Draft.Title)
		})
	}
}

func TestRetryingGeneratorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	inner := generatorFunc(func(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
		calls.Add(1)
		cancel()
		return nil, ctx.Err()
	})

	gen := NewRetryingGenerator(inner, WithTries(5), WithInitialInterval(time.Millisecond))
	_, err := gen.Generate(ctx, newTestRequest("x", platform.Shutterstock))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMockGenerator(t *testing.T) {
	req := newTestRequest("x", platform.Shutterstock)
	req.Filename = "Sunset_Over-Mountains_2023.jpg"
	req.Analysis.Composition = analysis.CompositionLandscape
	req.Analysis.DominantColors = []string{"orange"}

	result, err := MockGenerator{}.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Sunset Over Mountains 2023", result.Draft.Title)
	assert.Equal(t, []string{"sunset", "over", "mountains"}, result.Draft.KeywordsPrimary)
	assert.Equal(t, []string{"日落", "山脉"}, result.Draft.KeywordsSecondary)
	assert.Equal(t, "Nature", result.Draft.Category)
	assert.Equal(t, "mock", result.Model)
}
