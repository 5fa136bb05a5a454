package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/raine/stockmeta/internal/config"
	"github.com/raine/stockmeta/internal/llm"
	"github.com/raine/stockmeta/internal/marketplace"
	"github.com/raine/stockmeta/internal/sink"
	"github.com/raine/stockmeta/internal/storage"
	"github.com/rs/zerolog/log"
)

const defaultDBPath = "stockmeta.db"

// loadSettings reads settings.yaml and applies command line overrides on top.
func loadSettings(overrides map[string]string) (config.Settings, error) {
	path, err := config.SettingsPath()
	if err != nil {
		return config.Settings{}, err
	}
	settings, err := config.LoadSettings(path)
	if err != nil {
		return config.Settings{}, err
	}
	for _, key := range config.Keys {
		value, ok := overrides[key]
		if !ok {
			continue
		}
		if err := settings.Set(key, value); err != nil {
			return config.Settings{}, err
		}
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

// openStore opens the SQLite database. Without STOCKMETA_TOKEN_KEY stored
// credentials cannot be decrypted, everything else works.
func openStore() (*storage.SQLiteStore, error) {
	dbPath := os.Getenv("STOCKMETA_DB_PATH")
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	var key []byte
	if passphrase := os.Getenv("STOCKMETA_TOKEN_KEY"); passphrase != "" {
		var err error
		key, err = storage.DeriveKey(passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
	}

	store, err := storage.NewSQLiteStore(dbPath, key)
	if err != nil {
		return nil, err
	}
	log.Info().Str("dbPath", dbPath).Msg("store initialized")
	return store, nil
}

// buildGenerator creates the provider's generator wrapped with the retry
// policy and, when a store is given, the generation cache.
func buildGenerator(ctx context.Context, provider config.Provider, settings config.Settings, cache llm.CacheStore) (llm.Generator, error) {
	var gen llm.Generator
	switch provider {
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiGenerator(ctx, settings.GeneratorOptions())
		if err != nil {
			return nil, err
		}
		gen = gemini
	case config.ProviderOpenAI:
		gen = llm.NewOpenAIGenerator(settings.GeneratorOptions())
	case config.ProviderMock:
		gen = llm.MockGenerator{}
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	log.Info().Str("provider", string(provider)).Msg("generator initialized")

	if provider != config.ProviderMock {
		gen = llm.NewRetryingGenerator(gen,
			llm.WithTries(settings.Retries),
			llm.WithRequestsPerSecond(settings.RequestsPerSecond),
		)
	}
	if cache != nil {
		gen = llm.NewCachedGenerator(gen, cache)
		log.Info().Msg("generation caching enabled")
	}
	return gen, nil
}

// buildWriter returns the metadata sink chain selected by the settings, and
// a function releasing it. It returns nil when both sinks are disabled.
func buildWriter(settings config.Settings) (sink.MetadataWriter, func()) {
	var chain sink.Chain
	closer := func() {}
	if settings.WriteIPTC {
		w, err := sink.NewIPTCWriter()
		if err != nil {
			log.Warn().Err(err).Msg("exiftool unavailable, falling back to XMP sidecars")
		} else {
			chain.IPTC = w
			closer = func() {
				if err := w.Close(); err != nil {
					log.Warn().Err(err).Msg("failed to stop exiftool")
				}
			}
		}
	}
	if settings.XMPSidecar || (settings.WriteIPTC && chain.IPTC == nil) {
		chain.Sidecar = sink.XMPSidecarWriter{}
	}
	if chain.IPTC == nil && chain.Sidecar == nil {
		return nil, closer
	}
	return chain, closer
}

// CredentialStore is the part of the store uploaders read their
// credentials from.
type CredentialStore interface {
	LoadCredentials(platform string, dst any) (bool, error)
}

// uploaderFactory returns uploaders built from stored credentials. The mock
// marketplace needs none.
func uploaderFactory(store CredentialStore, opts ...marketplace.Option) func(string) (marketplace.Uploader, error) {
	return func(id string) (marketplace.Uploader, error) {
		var creds marketplace.Credentials
		if id != marketplace.MockID {
			found, err := store.LoadCredentials(id, &creds)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("no credentials stored for %s, run: stockmeta login %s", id, id)
			}
		}
		return marketplace.New(id, creds, opts...)
	}
}

// configFailure formats configuration errors with their code so users can
// tell a typo from a bad value.
func configFailure(err error) string {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return fmt.Sprintf("invalid configuration (%s): %v", config.Code(err), err)
	}
	return err.Error()
}
