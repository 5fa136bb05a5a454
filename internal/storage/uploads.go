package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UploadStatus tracks a marketplace submission through review.
type UploadStatus string

const (
	UploadPending  UploadStatus = "pending"
	UploadApproved UploadStatus = "approved"
	UploadRejected UploadStatus = "rejected"
	UploadFailed   UploadStatus = "failed"
)

// Final reports whether no further polling is needed.
func (s UploadStatus) Final() bool {
	return s != UploadPending
}

// Upload is one submission of an image to a marketplace.
type Upload struct {
	ID        string
	OwnerID   int64
	Platform  string
	Path      string
	RemoteID  string
	Status    UploadStatus
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateUpload inserts u, assigning ID and timestamps.
func (s *SQLiteStore) CreateUpload(u *Upload) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Status == "" {
		u.Status = UploadPending
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO uploads (id, owner_id, platform, path, remote_id, status, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.OwnerID, u.Platform, u.Path, u.RemoteID, string(u.Status), u.Message, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

// UpdateUpload sets the status of an upload. An empty remoteID keeps the
// stored one.
func (s *SQLiteStore) UpdateUpload(id string, status UploadStatus, remoteID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE uploads SET
			status = ?,
			remote_id = CASE WHEN ? = '' THEN remote_id ELSE ? END,
			message = ?,
			updated_at = ?
		WHERE id = ?
	`, string(status), remoteID, remoteID, message, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update upload: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("upload not found")
	}
	return nil
}

// GetUpload retrieves a single upload. Returns nil, nil if it doesn't exist.
func (s *SQLiteStore) GetUpload(id string) (*Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, owner_id, platform, path, remote_id, status, message, created_at, updated_at
		FROM uploads WHERE id = ?
	`, id)
	u, err := scanUpload(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return u, nil
}

// GetPendingUploads returns all uploads still awaiting review, oldest first.
func (s *SQLiteStore) GetPendingUploads() ([]Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, owner_id, platform, path, remote_id, status, message, created_at, updated_at
		FROM uploads WHERE status = ? ORDER BY rowid
	`, string(UploadPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending uploads: %w", err)
	}
	defer rows.Close()

	return scanUploads(rows)
}

// GetUploadsByOwner returns the newest uploads of an owner.
func (s *SQLiteStore) GetUploadsByOwner(ownerID int64, limit int) ([]Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, owner_id, platform, path, remote_id, status, message, created_at, updated_at
		FROM uploads WHERE owner_id = ? ORDER BY rowid DESC LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	return scanUploads(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*Upload, error) {
	var u Upload
	var remoteID, message sql.NullString
	var status string
	if err := row.Scan(&u.ID, &u.OwnerID, &u.Platform, &u.Path, &remoteID, &status, &message, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.RemoteID = remoteID.String
	u.Message = message.String
	u.Status = UploadStatus(status)
	return &u, nil
}

func scanUploads(rows *sql.Rows) ([]Upload, error) {
	var uploads []Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, *u)
	}
	return uploads, rows.Err()
}
