package bot

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/sink"
	"github.com/raine/stockmeta/internal/storage"
	"github.com/raine/stockmeta/internal/trends"
)

const (
	// recordsWindow is how many recent records /trends and /export cover.
	recordsWindow = 200
	topKeywords   = 10
	uploadsShown  = 10
)

func (b *Bot) recentMetas(session *UserSession) ([]*meta.Meta, error) {
	stored, err := b.store.GetRecentRecords(session.userId, recordsWindow)
	if err != nil {
		return nil, err
	}
	metas := make([]*meta.Meta, 0, len(stored))
	for _, rec := range stored {
		metas = append(metas, meta.FromRecord(rec.Record))
	}
	return metas, nil
}

// handleTrendsCommand summarizes the user's recent records and sends a bar
// chart of the top keywords.
func (b *Bot) handleTrendsCommand(session *UserSession) {
	metas, err := b.recentMetas(session)
	if err != nil {
		session.replyWithError(err)
		return
	}
	report := trends.Aggregate(metas)
	if report.Records == 0 {
		session.reply(MsgNoRecords)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(MsgTrendsHeader, pluralize("photo", "photos", report.Records)))
	sb.WriteString("\n\n")
	for i, e := range report.TopScores(topKeywords) {
		marker := ""
		if trends.IsHighDemand(e.Key) {
			marker = " 🔥"
		}
		sb.WriteString(fmt.Sprintf("%d. %s (%.1f)%s\n", i+1, escapeMarkdown(e.Key), e.Score, marker))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf(MsgTrendsAverage, report.AverageSEOScore))
	for _, p := range []meta.MarketPotential{meta.PotentialHigh, meta.PotentialMedium, meta.PotentialLow} {
		sb.WriteString(fmt.Sprintf("\n%s: %d", p, report.MarketPotentialHistogram[p]))
	}
	session._reply(sb.String(), false)

	var chart bytes.Buffer
	if err := trends.RenderChart(&chart, report, topKeywords); err != nil {
		session.replyWithError(err)
		return
	}
	photo := tgbotapi.NewPhoto(session.userId, tgbotapi.FileBytes{Name: "trends.png", Bytes: chart.Bytes()})
	photo.Caption = MsgTrendsCaption
	session.replyWithMessage(photo)
}

// handleExportCommand sends the user's recent records as a CSV document
// projected for their marketplace.
func (b *Bot) handleExportCommand(session *UserSession) {
	metas, err := b.recentMetas(session)
	if err != nil {
		session.replyWithError(err)
		return
	}
	if len(metas) == 0 {
		session.reply(MsgNoRecords)
		return
	}

	id, lang := session.Preferences()
	c, err := b.constraints(id)
	if err != nil {
		session.replyWithError(err)
		return
	}

	var buf bytes.Buffer
	exporter := sink.Exporter{Constraints: c, Language: lang}
	if err := exporter.WriteCSV(&buf, metas); err != nil {
		session.replyWithError(err)
		return
	}

	doc := tgbotapi.NewDocument(session.userId, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("stockmeta-%s.csv", c.ID),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf(MsgExportCaption, c.Name)
	session.replyWithMessage(doc)
}

// handleUploadsCommand lists the review state of the user's latest uploads.
func (b *Bot) handleUploadsCommand(session *UserSession) {
	uploads, err := b.store.GetUploadsByOwner(session.userId, uploadsShown)
	if err != nil {
		session.replyWithError(err)
		return
	}
	if len(uploads) == 0 {
		session.reply(MsgNoUploads)
		return
	}

	var sb strings.Builder
	sb.WriteString(MsgUploadsHeader)
	for _, u := range uploads {
		sb.WriteString(fmt.Sprintf(MsgUploadsLineFmt, statusIcon(u.Status), escapeMarkdown(filepath.Base(u.Path)), escapeMarkdown(u.Platform)))
	}
	session._reply(sb.String(), false)
}

func statusIcon(s storage.UploadStatus) string {
	switch s {
	case storage.UploadApproved:
		return "✅"
	case storage.UploadRejected:
		return "❌"
	case storage.UploadFailed:
		return "⚠️"
	default:
		return "⏳"
	}
}
