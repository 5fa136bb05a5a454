package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/raine/stockmeta/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const logFileName = "stockmeta.log"

const usage = `usage: stockmeta <command> [flags]

commands:
  batch [flags] <dir>    draft metadata for every image in dir
  bot                    run the Telegram bot and the upload watcher
  serve [-addr :8080]    run the HTTP API
  watch                  refresh the review status of pending uploads
  login <platform>       store marketplace credentials
  setup                  run the configuration wizard
`

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	// Try to load existing .env file
	config.LoadEnvFile()

	if command == "setup" {
		if !config.RunSetupWizard() {
			config.WaitOnWindows()
			os.Exit(1)
		}
		return
	}

	mode, ok := commandModes[command]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}
	ensureConfig(mode)

	closeLog := setupLogging()
	defer closeLog()

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch command {
	case "batch":
		err = runBatch(ctx, args)
	case "bot":
		err = runBotCommand(ctx)
	case "serve":
		err = runServe(ctx, args)
	case "watch":
		err = runWatch(ctx)
	case "login":
		err = runLogin(ctx, args)
	}

	if err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
		config.FatalWithWait("%s", configFailure(err))
	}
	log.Info().Msg("shutdown complete")
}

var commandModes = map[string]config.Mode{
	"batch": config.ModeBatch,
	"bot":   config.ModeBot,
	"serve": config.ModeServe,
	"watch": config.ModeBatch,
	"login": config.ModeBatch,
}

// ensureConfig runs the setup wizard, or fails, when variables mode needs
// are missing.
func ensureConfig(mode config.Mode) {
	provider, err := config.ProviderFromEnv()
	if err != nil {
		config.FatalWithWait("%s", configFailure(err))
	}
	missing := config.Missing(config.RequiredEnv(mode, provider))
	if len(missing) == 0 {
		return
	}
	if config.IsInteractiveTerminal() {
		// Interactive terminal - run setup wizard
		if !config.RunSetupWizard() {
			config.WaitOnWindows()
			os.Exit(1)
		}
		if missing = config.Missing(config.RequiredEnv(mode, provider)); len(missing) == 0 {
			return
		}
	}
	// Non-interactive (systemd, k8s, etc.) - fail with clear error
	config.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
}

// setupLogging logs to stderr, and to stockmeta.log unless running under
// systemd.
func setupLogging() func() {
	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it, and ProtectSystem=strict
	// makes the working directory read-only).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return func() {}
	}

	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		config.FatalWithWait("failed to open log file: %v", err)
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

	log.Info().Str("logFile", logFileName).Msg("logging to file")
	return func() { logFile.Close() }
}
