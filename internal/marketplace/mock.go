package marketplace

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Mock accepts every valid submission without any network call.
type Mock struct {
	mu       sync.Mutex
	uploaded map[string]Submission
}

// NewMock creates a dry-run uploader.
func NewMock() *Mock {
	return &Mock{uploaded: map[string]Submission{}}
}

func (m *Mock) Authenticate(ctx context.Context) error { return nil }

// UploadImage records the submission and returns a generated id.
func (m *Mock) UploadImage(ctx context.Context, sub Submission) UploadResult {
	p := sub.Projection
	if p.Title == "" || p.Description == "" || len(p.Keywords) == 0 {
		return UploadResult{
			Platform:     MockID,
			Filename:     sub.Filename,
			ErrorMessage: "validation errors: title, description and keywords are required",
		}
	}

	id := "mock-" + uuid.New().String()
	m.mu.Lock()
	m.uploaded[id] = sub
	m.mu.Unlock()

	log.Info().Str("file", sub.Filename).Str("uploadID", id).Msg("mock upload")
	return UploadResult{
		Success:  true,
		Platform: MockID,
		Filename: sub.Filename,
		UploadID: id,
		Response: map[string]any{"status": "processed"},
	}
}

// GetStatus reports known uploads as approved.
func (m *Mock) GetStatus(ctx context.Context, uploadID string) (Status, error) {
	m.mu.Lock()
	_, ok := m.uploaded[uploadID]
	m.mu.Unlock()
	if !ok {
		return StatusPending, nil
	}
	return StatusApproved, nil
}
