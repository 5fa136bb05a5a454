package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/raine/stockmeta/internal/storage"
	"github.com/rs/zerolog/log"
)

// CacheStore is the part of the store the cache needs.
type CacheStore interface {
	GetGenerationCache(key string) (*storage.GenerationCacheEntry, error)
	SetGenerationCache(key string, entry *storage.GenerationCacheEntry) error
}

// CachedGenerator wraps a Generator with SQLite caching keyed by image
// content and target platform.
type CachedGenerator struct {
	inner Generator
	store CacheStore
}

// NewCachedGenerator creates a cached generator.
func NewCachedGenerator(inner Generator, store CacheStore) *CachedGenerator {
	return &CachedGenerator{inner: inner, store: store}
}

// cacheKey hashes the image with a length prefix followed by the platform
// id, so the same picture drafted for two marketplaces is cached twice.
func cacheKey(image []byte, platformID string) string {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(image)))
	h.Write(image)
	h.Write([]byte(platformID))
	return hex.EncodeToString(h.Sum(nil))
}

// Generate implements the Generator interface with caching.
func (c *CachedGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	key := cacheKey(req.Image, string(req.Constraints.ID))

	if c.store != nil {
		cached, err := c.store.GetGenerationCache(key)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check generation cache")
		} else if cached != nil {
			log.Debug().Str("hash", key[:16]).Str("file", req.Filename).Msg("generation cache hit")
			return &GenerateResult{
				Draft:  cached.Draft,
				Model:  cached.Model,
				Cached: true,
			}, nil
		}
	}

	result, err := c.inner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		entry := &storage.GenerationCacheEntry{Draft: result.Draft, Model: result.Model}
		if err := c.store.SetGenerationCache(key, entry); err != nil {
			log.Warn().Err(err).Msg("failed to cache generated draft")
		} else {
			log.Debug().Str("hash", key[:16]).Msg("cached generated draft")
		}
	}

	return result, nil
}
