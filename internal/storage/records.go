package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raine/stockmeta/internal/meta"
)

// StoredRecord is one generated metadata record from a batch run.
type StoredRecord struct {
	ID        string
	BatchID   string
	OwnerID   int64
	Platform  string
	Path      string
	Record    meta.Record
	CreatedAt time.Time
}

// NewBatchID returns a fresh identifier for grouping records of one run.
func NewBatchID() string {
	return uuid.New().String()
}

// SaveRecord inserts rec, assigning ID and CreatedAt when empty.
func (s *SQLiteStore) SaveRecord(rec *StoredRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	recordJSON, err := json.Marshal(rec.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO records (id, batch_id, owner_id, platform, path, record, seo_score, market_potential, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.BatchID, rec.OwnerID, rec.Platform, rec.Path, string(recordJSON),
		rec.Record.SEOScore, string(rec.Record.MarketPotential), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// GetRecordsByBatch returns the records of one batch in insertion order.
func (s *SQLiteStore) GetRecordsByBatch(batchID string) ([]StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, batch_id, owner_id, platform, path, record, created_at
		FROM records WHERE batch_id = ? ORDER BY rowid
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetRecentRecords returns the newest records of an owner, newest first.
func (s *SQLiteStore) GetRecentRecords(ownerID int64, limit int) ([]StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, batch_id, owner_id, platform, path, record, created_at
		FROM records WHERE owner_id = ? ORDER BY rowid DESC LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]StoredRecord, error) {
	var records []StoredRecord
	for rows.Next() {
		var r StoredRecord
		var recordJSON string
		if err := rows.Scan(&r.ID, &r.BatchID, &r.OwnerID, &r.Platform, &r.Path, &recordJSON, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(recordJSON), &r.Record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
