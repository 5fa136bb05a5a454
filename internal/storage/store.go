package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/raine/stockmeta/internal/meta"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// GenerationCacheEntry is a cached generator draft keyed by image content.
type GenerationCacheEntry struct {
	Draft     meta.Draft
	Model     string
	CreatedAt time.Time
}

// UserSettings holds per-user bot preferences.
type UserSettings struct {
	TelegramID int64
	Platform   string
	Language   string
}

// AllowedUser represents a user in the whitelist.
type AllowedUser struct {
	TelegramID int64
	AddedAt    time.Time
	AddedBy    int64
}

// Store defines the persistence used by the pipeline and front-ends.
type Store interface {
	Close() error

	// Generation cache
	GetGenerationCache(key string) (*GenerationCacheEntry, error)
	SetGenerationCache(key string, entry *GenerationCacheEntry) error

	// Metadata records
	SaveRecord(rec *StoredRecord) error
	GetRecordsByBatch(batchID string) ([]StoredRecord, error)
	GetRecentRecords(ownerID int64, limit int) ([]StoredRecord, error)

	// Upload history
	CreateUpload(u *Upload) error
	UpdateUpload(id string, status UploadStatus, remoteID, message string) error
	GetUpload(id string) (*Upload, error)
	GetPendingUploads() ([]Upload, error)
	GetUploadsByOwner(ownerID int64, limit int) ([]Upload, error)

	// Marketplace credentials, encrypted at rest
	SaveCredentials(platform string, creds any) error
	LoadCredentials(platform string, dst any) (bool, error)
	DeleteCredentials(platform string) error

	// User settings
	GetUserSettings(telegramID int64) (*UserSettings, error)
	SaveUserSettings(settings *UserSettings) error

	// Allowed users
	IsUserAllowed(telegramID int64) (bool, error)
	AddAllowedUser(telegramID, addedBy int64) error
	RemoveAllowedUser(telegramID int64) error
	GetAllowedUsers() ([]AllowedUser, error)
}

// SQLiteStore implements Store on SQLite. Credentials are sealed with
// AES-GCM under encryptionKey.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// The file exists once the schema is created.
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", dbPath).Msg("failed to restrict database permissions")
	}

	return store, nil
}

var schema = []struct {
	table string
	query string
}{
	{"generation_cache", `
	CREATE TABLE IF NOT EXISTS generation_cache (
		cache_key TEXT PRIMARY KEY,
		draft TEXT NOT NULL,
		model TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`},
	{"records", `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		owner_id INTEGER NOT NULL DEFAULT 0,
		platform TEXT NOT NULL,
		path TEXT NOT NULL,
		record TEXT NOT NULL,
		seo_score REAL NOT NULL,
		market_potential TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`},
	{"uploads", `
	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL DEFAULT 0,
		platform TEXT NOT NULL,
		path TEXT NOT NULL,
		remote_id TEXT,
		status TEXT NOT NULL,
		message TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`},
	{"credentials", `
	CREATE TABLE IF NOT EXISTS credentials (
		platform TEXT PRIMARY KEY,
		encrypted TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`},
	{"user_settings", `
	CREATE TABLE IF NOT EXISTS user_settings (
		telegram_id INTEGER PRIMARY KEY,
		platform TEXT,
		language TEXT
	);`},
	{"allowed_users", `
	CREATE TABLE IF NOT EXISTS allowed_users (
		telegram_id INTEGER PRIMARY KEY,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		added_by INTEGER
	);`},
}

func (s *SQLiteStore) init() error {
	for _, t := range schema {
		if _, err := s.db.Exec(t.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.table, err)
		}
	}

	for _, idx := range []string{
		"CREATE INDEX IF NOT EXISTS idx_records_batch ON records(batch_id)",
		"CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads(status)",
	} {
		if _, err := s.db.Exec(idx); err != nil {
			// Indexes only speed up lookups.
			if !strings.Contains(err.Error(), "already exists") {
				log.Warn().Err(err).Msg("failed to create index")
			}
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetGenerationCache retrieves a cached draft. Returns nil, nil on a miss.
func (s *SQLiteStore) GetGenerationCache(key string) (*GenerationCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var draftJSON string
	var model sql.NullString
	var createdAt time.Time
	err := s.db.QueryRow(
		"SELECT draft, model, created_at FROM generation_cache WHERE cache_key = ?",
		key,
	).Scan(&draftJSON, &model, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query generation cache: %w", err)
	}

	var draft meta.Draft
	if err := json.Unmarshal([]byte(draftJSON), &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached draft: %w", err)
	}

	return &GenerationCacheEntry{Draft: draft, Model: model.String, CreatedAt: createdAt}, nil
}

// SetGenerationCache stores a draft in the cache.
func (s *SQLiteStore) SetGenerationCache(key string, entry *GenerationCacheEntry) error {
	draftJSON, err := json.Marshal(entry.Draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO generation_cache (cache_key, draft, model)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			draft = excluded.draft,
			model = excluded.model,
			created_at = CURRENT_TIMESTAMP
	`, key, string(draftJSON), entry.Model)

	if err != nil {
		return fmt.Errorf("failed to cache draft: %w", err)
	}
	return nil
}

// GetUserSettings returns nil, nil when the user has never changed settings.
func (s *SQLiteStore) GetUserSettings(telegramID int64) (*UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var platform, language sql.NullString
	err := s.db.QueryRow(
		"SELECT platform, language FROM user_settings WHERE telegram_id = ?",
		telegramID,
	).Scan(&platform, &language)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}

	return &UserSettings{
		TelegramID: telegramID,
		Platform:   platform.String,
		Language:   language.String,
	}, nil
}

// SaveUserSettings upserts the user's settings.
func (s *SQLiteStore) SaveUserSettings(settings *UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO user_settings (telegram_id, platform, language)
		VALUES (?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			platform = excluded.platform,
			language = excluded.language
	`, settings.TelegramID, settings.Platform, settings.Language)

	if err != nil {
		return fmt.Errorf("failed to save user settings: %w", err)
	}
	return nil
}

// IsUserAllowed checks if a user is in the whitelist.
func (s *SQLiteStore) IsUserAllowed(telegramID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM allowed_users WHERE telegram_id = ?",
		telegramID,
	).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("failed to check allowed user: %w", err)
	}

	return count > 0, nil
}

// AddAllowedUser adds a user to the whitelist.
func (s *SQLiteStore) AddAllowedUser(telegramID, addedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO allowed_users (telegram_id, added_by)
		VALUES (?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			added_by = excluded.added_by,
			added_at = CURRENT_TIMESTAMP
	`, telegramID, addedBy)

	if err != nil {
		return fmt.Errorf("failed to add allowed user: %w", err)
	}
	return nil
}

// RemoveAllowedUser removes a user from the whitelist.
func (s *SQLiteStore) RemoveAllowedUser(telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM allowed_users WHERE telegram_id = ?", telegramID)
	if err != nil {
		return fmt.Errorf("failed to remove allowed user: %w", err)
	}
	return nil
}

// GetAllowedUsers returns all users in the whitelist.
func (s *SQLiteStore) GetAllowedUsers() ([]AllowedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT telegram_id, added_at, added_by FROM allowed_users ORDER BY added_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed users: %w", err)
	}
	defer rows.Close()

	var users []AllowedUser
	for rows.Next() {
		var user AllowedUser
		var addedBy sql.NullInt64
		if err := rows.Scan(&user.TelegramID, &user.AddedAt, &addedBy); err != nil {
			return nil, fmt.Errorf("failed to scan allowed user: %w", err)
		}
		user.AddedBy = addedBy.Int64
		users = append(users, user)
	}

	return users, rows.Err()
}
