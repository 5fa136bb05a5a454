package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/stockmeta/internal/bot"
	"github.com/raine/stockmeta/internal/config"
	"github.com/raine/stockmeta/internal/marketplace"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/raine/stockmeta/internal/watcher"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// runBotCommand runs the Telegram update loop and the upload watcher until
// ctx is canceled.
func runBotCommand(ctx context.Context) error {
	adminID, err := strconv.ParseInt(os.Getenv("ADMIN_TELEGRAM_ID"), 10, 64)
	if err != nil {
		return fmt.Errorf("ADMIN_TELEGRAM_ID must be a valid integer: %w", err)
	}

	settings, err := loadSettings(nil)
	if err != nil {
		return err
	}
	pref, err := meta.ParseLanguage(settings.Language)
	if err != nil {
		return err
	}
	provider, err := config.ProviderFromEnv()
	if err != nil {
		return err
	}

	tg, err := tgbotapi.NewBotAPI(os.Getenv("BOT_TOKEN"))
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	// Register bot commands for Telegram's command menu
	bot.RegisterCommands(tg)

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	gen, err := buildGenerator(ctx, provider, settings, store)
	if err != nil {
		return err
	}

	b := bot.NewBot(tg, store, adminID)
	b.SetGenerator(gen, settings.Bounds())
	b.SetDefaults(platform.ID(settings.Platform), pref)
	b.SetMaxKeywords(settings.MaxKeywords)
	defer b.Shutdown()

	g, ctx := errgroup.WithContext(ctx)

	// Run bot update loop
	g.Go(func() error {
		return runBot(ctx, tg, b)
	})

	// Run watcher service for upload review notifications
	watcherService := watcher.NewService(store, uploaderFactory(store), tg)
	g.Go(func() error {
		watcherService.Run(ctx)
		return nil
	})

	return g.Wait()
}

func runBot(ctx context.Context, tg *tgbotapi.BotAPI, b *bot.Bot) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}

// runWatch refreshes pending uploads without a bot, logging status changes
// only.
func runWatch(ctx context.Context) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	watcher.NewService(store, uploaderFactory(store), nil).Run(ctx)
	return ctx.Err()
}

// runLogin stores marketplace credentials after checking them against the
// marketplace.
func runLogin(ctx context.Context, args []string) error {
	fs := newLoginFlags()
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: stockmeta login [flags] <platform>")
	}
	if os.Getenv("STOCKMETA_TOKEN_KEY") == "" {
		return fmt.Errorf("STOCKMETA_TOKEN_KEY must be set to encrypt stored credentials")
	}
	id := fs.Arg(0)
	creds, err := fs.credentials()
	if err != nil {
		return err
	}

	uploader, err := marketplace.New(id, creds)
	if err != nil {
		return err
	}
	if err := uploader.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with %s: %w", id, err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveCredentials(id, creds); err != nil {
		return err
	}
	log.Info().Str("platform", id).Msg("credentials stored")
	return nil
}
