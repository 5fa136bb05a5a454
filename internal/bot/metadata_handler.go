package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/stockmeta/internal/pipeline"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/rs/zerolog/log"
)

var captionSeparatorRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// imageFilename names an upload for the tokenizer and the fallback title. A
// caption wins over the document's own name since it is what the user typed.
func imageFilename(message *tgbotapi.Message) string {
	ext := ".jpg"
	stem := "photo"
	if doc := message.Document; doc != nil && doc.FileName != "" {
		ext = strings.ToLower(filepath.Ext(doc.FileName))
		stem = strings.TrimSuffix(doc.FileName, filepath.Ext(doc.FileName))
	}
	if caption := strings.TrimSpace(message.Caption); caption != "" {
		stem = strings.Trim(captionSeparatorRe.ReplaceAllString(caption, "_"), "_")
	}
	return stem + ext
}

// imageFileID returns the file to download: the largest photo size, or the
// document if it is an image.
func imageFileID(message *tgbotapi.Message) (string, bool) {
	if n := len(message.Photo); n > 0 {
		return message.Photo[n-1].FileID, true
	}
	doc := message.Document
	if doc == nil {
		return "", false
	}
	if strings.HasPrefix(doc.MimeType, "image/") || platform.IsSupportedFile(doc.FileName) {
		return doc.FileID, true
	}
	return "", false
}

// handleImage drafts metadata for one photo or image document and replies
// with the projection for the user's marketplace.
// Called from session worker - no locking needed.
func (b *Bot) handleImage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	fileID, ok := imageFileID(message)
	if !ok {
		session.reply(MsgUnsupportedFile)
		return
	}

	typingCtx, stopTyping := context.WithCancel(ctx)
	defer stopTyping()
	go session.startTypingLoop(typingCtx)

	data, err := b.downloader.DownloadFromTelegramFileID(ctx, b.tg.GetFileDirectURL, fileID)
	if err != nil {
		log.Error().Err(err).Int64("userId", session.userId).Msg("failed to download image")
		session.reply(MsgDownloadFailed, escapeMarkdown(err.Error()))
		return
	}

	runner, err := b.runnerFor(session)
	if err != nil {
		session.replyWithError(err)
		return
	}

	res, errs := runner.ProcessBytes(ctx, imageFilename(message), data)
	stopTyping()

	generationFailed := false
	for _, e := range errs {
		if e.Kind == pipeline.KindGeneration {
			generationFailed = true
			continue
		}
		log.Warn().Err(e).Int64("userId", session.userId).Msg("image processed with errors")
	}

	session._reply(formatMetadataReply(res, runner.Constraints(), generationFailed), false)
}

func (b *Bot) runnerFor(session *UserSession) (*pipeline.Runner, error) {
	id, lang := session.Preferences()
	c, err := b.constraints(id)
	if err != nil {
		return nil, err
	}
	var opts []pipeline.Option
	if b.store != nil {
		opts = append(opts, pipeline.WithStore(b.store))
	}
	return pipeline.New(pipeline.Config{
		Platform: c,
		Language: lang,
		Workers:  1,
		Bounds:   b.bounds,
		OwnerID:  session.userId,
	}, b.generator, opts...)
}

func formatMetadataReply(res *pipeline.ImageResult, c platform.Constraints, generationFailed bool) string {
	if res == nil || res.Meta == nil {
		return formatReplyText(MsgUnexpectedErr, errors.New("no metadata produced"))
	}
	p := res.Projection

	keywords := make([]string, len(p.Keywords))
	for i, kw := range p.Keywords {
		keywords[i] = escapeMarkdown(kw)
	}
	category := p.Category
	if category == "" {
		category = "-"
	}

	var sb strings.Builder
	sb.WriteString(formatReplyText(MsgMetadataResultFmt,
		escapeMarkdown(p.Title),
		escapeMarkdown(p.Description),
		len(p.Keywords),
		strings.Join(keywords, c.KeywordSeparator+" "),
		escapeMarkdown(category),
		res.Meta.SEOScore(),
		res.Meta.MarketPotential(),
	))

	if len(res.Problems) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(fmt.Sprintf(MsgValidationHeader, escapeMarkdown(c.Name)))
		for _, problem := range res.Problems {
			sb.WriteString("\n• " + escapeMarkdown(problem))
		}
	}
	if generationFailed {
		sb.WriteString("\n\n" + MsgGenerationFailed)
	}
	return sb.String()
}
