package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SaveCredentials encrypts creds as JSON and stores them for platform.
func (s *SQLiteStore) SaveCredentials(platform string, creds any) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	sealed, err := Encrypt(plain, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO credentials (platform, encrypted, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET
			encrypted = excluded.encrypted,
			updated_at = excluded.updated_at
	`, platform, sealed, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// LoadCredentials decrypts the credentials of platform into dst. It reports
// false when none are stored.
func (s *SQLiteStore) LoadCredentials(platform string, dst any) (bool, error) {
	s.mu.RLock()
	var sealed string
	err := s.db.QueryRow("SELECT encrypted FROM credentials WHERE platform = ?", platform).Scan(&sealed)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query credentials: %w", err)
	}

	plain, err := Decrypt(sealed, s.encryptionKey)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	if err := json.Unmarshal(plain, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return true, nil
}

// DeleteCredentials removes stored credentials for platform.
func (s *SQLiteStore) DeleteCredentials(platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM credentials WHERE platform = ?", platform); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
