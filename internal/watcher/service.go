// Package watcher polls marketplaces for the review status of submitted
// images.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/stockmeta/internal/marketplace"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/raine/stockmeta/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	// PollInterval is the time between polling cycles.
	PollInterval = 10 * time.Minute

	// DelayBetweenPlatforms spaces out the status checks of different
	// marketplaces within one cycle.
	DelayBetweenPlatforms = 2 * time.Second

	// StartDelay lets the rest of the process start before the first poll.
	StartDelay = 5 * time.Second
)

// BotSender abstracts the Telegram bot API for sending messages.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Store is the part of the storage the watcher needs.
type Store interface {
	GetPendingUploads() ([]storage.Upload, error)
	UpdateUpload(id string, status storage.UploadStatus, remoteID, message string) error
}

// UploaderFunc returns the uploader for a marketplace id.
type UploaderFunc func(platformID string) (marketplace.Uploader, error)

// Service is the background watcher service that polls pending uploads.
type Service struct {
	store     Store
	uploaders UploaderFunc
	bot       BotSender

	interval   time.Duration
	startDelay time.Duration
	spacing    time.Duration
}

// NewService creates a new watcher service. bot may be nil, in which case
// status changes are only logged.
func NewService(store Store, uploaders UploaderFunc, bot BotSender) *Service {
	return &Service{
		store:      store,
		uploaders:  uploaders,
		bot:        bot,
		interval:   PollInterval,
		startDelay: StartDelay,
		spacing:    DelayBetweenPlatforms,
	}
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("starting upload watcher")

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startDelay):
	}
	s.Poll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("upload watcher stopped")
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll executes one polling cycle over all pending uploads.
func (s *Service) Poll(ctx context.Context) {
	log.Debug().Msg("starting poll cycle")

	uploads, err := s.store.GetPendingUploads()
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch pending uploads")
		return
	}
	if len(uploads) == 0 {
		log.Debug().Msg("no pending uploads")
		return
	}

	// One uploader per marketplace and cycle.
	grouped := make(map[string][]storage.Upload)
	var order []string
	for _, u := range uploads {
		if _, ok := grouped[u.Platform]; !ok {
			order = append(order, u.Platform)
		}
		grouped[u.Platform] = append(grouped[u.Platform], u)
	}

	log.Debug().Int("uploads", len(uploads)).Int("platforms", len(grouped)).Msg("processing uploads")

	for i, platformID := range order {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && s.spacing > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.spacing):
			}
		}
		s.processPlatform(ctx, platformID, grouped[platformID])
	}

	log.Debug().Msg("poll cycle complete")
}

func (s *Service) processPlatform(ctx context.Context, platformID string, uploads []storage.Upload) {
	uploader, err := s.uploaders(platformID)
	if err != nil {
		log.Error().Err(err).Str("platform", platformID).Msg("no uploader for pending uploads")
		return
	}

	for _, u := range uploads {
		if ctx.Err() != nil {
			return
		}
		if u.RemoteID == "" {
			continue
		}
		s.refresh(ctx, uploader, u)
	}
}

// refresh fetches the marketplace status of one upload and records and
// announces a change.
func (s *Service) refresh(ctx context.Context, uploader marketplace.Uploader, u storage.Upload) {
	status, err := uploader.GetStatus(ctx, u.RemoteID)
	if err != nil {
		log.Warn().Err(err).Str("uploadID", u.ID).Str("platform", u.Platform).Msg("status check failed")
		return
	}

	var next storage.UploadStatus
	switch status {
	case marketplace.StatusApproved:
		next = storage.UploadApproved
	case marketplace.StatusRejected:
		next = storage.UploadRejected
	default:
		return
	}

	if err := s.store.UpdateUpload(u.ID, next, "", string(status)); err != nil {
		log.Error().Err(err).Str("uploadID", u.ID).Msg("failed to update upload")
		return
	}
	log.Info().
		Str("uploadID", u.ID).
		Str("platform", u.Platform).
		Str("status", string(next)).
		Msg("upload reviewed")

	if u.OwnerID != 0 {
		s.sendNotification(u, next)
	}
}

// sendNotification tells the owner that a marketplace finished reviewing an
// upload.
func (s *Service) sendNotification(u storage.Upload, status storage.UploadStatus) {
	if s.bot == nil {
		return
	}

	name := u.Platform
	if c, err := platform.Get(u.Platform); err == nil {
		name = c.Name
	}

	var sb strings.Builder
	if status == storage.UploadApproved {
		sb.WriteString(fmt.Sprintf("✅ *Approved on %s*\n", escapeMarkdown(name)))
	} else {
		sb.WriteString(fmt.Sprintf("❌ *Rejected on %s*\n", escapeMarkdown(name)))
	}
	sb.WriteString(escapeMarkdown(filepath.Base(u.Path)))

	msg := tgbotapi.NewMessage(u.OwnerID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := s.bot.Send(msg); err != nil {
		log.Error().
			Err(err).
			Int64("userID", u.OwnerID).
			Str("uploadID", u.ID).
			Msg("failed to send notification")
	} else {
		log.Debug().
			Int64("userID", u.OwnerID).
			Str("uploadID", u.ID).
			Msg("notification sent")
	}
}

// escapeMarkdown escapes special characters for Telegram Markdown V1.
func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "*", "\\*")
	text = strings.ReplaceAll(text, "_", "\\_")
	text = strings.ReplaceAll(text, "`", "\\`")
	text = strings.ReplaceAll(text, "[", "\\[")
	return text
}
