package config

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// envOrder is the order variables are written to config.env.
var envOrder = []string{
	"STOCKMETA_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY",
	"BOT_TOKEN", "ADMIN_TELEGRAM_ID", "STOCKMETA_TOKEN_KEY",
}

// IsInteractiveTerminal returns true if both stdin and stdout are TTYs.
// This is used to determine if we can run the interactive setup wizard.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunSetupWizard collects the provider key and, optionally, the Telegram bot
// settings, then writes config.env. Returns true if setup succeeded.
func RunSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("stockmeta - setup"))
	fmt.Println()

	provider := string(ProviderGemini)
	var apiKey, botToken, adminID string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Metadata generator").
				Options(
					huh.NewOption("Gemini", string(ProviderGemini)),
					huh.NewOption("OpenAI", string(ProviderOpenAI)),
					huh.NewOption("Offline (filename only)", string(ProviderMock)),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API Key").
				DescriptionFunc(func() string {
					if provider == string(ProviderOpenAI) {
						return "Get yours at https://platform.openai.com/api-keys"
					}
					return "Get yours at https://aistudio.google.com/apikey"
				}, &provider).
				Value(&apiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					if provider == string(ProviderGemini) {
						return validateGeminiKey(s)
					}
					return nil
				}),
		).WithHideFunc(func() bool { return provider == string(ProviderMock) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token (optional)").
				Description("Message @BotFather on Telegram → /newbot → copy token. Leave empty to skip the bot.").
				Value(&botToken).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					return validateTelegramToken(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Your Telegram User ID").
				Description("Message @userinfobot to get your ID: https://t.me/userinfobot").
				Value(&adminID).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("user ID is required")
					}
					if _, err := strconv.ParseInt(s, 10, 64); err != nil {
						return errors.New("must be a number")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return botToken == "" }),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{"STOCKMETA_PROVIDER": provider}
	switch Provider(provider) {
	case ProviderGemini:
		values["GEMINI_API_KEY"] = apiKey
	case ProviderOpenAI:
		values["OPENAI_API_KEY"] = apiKey
	}
	if botToken != "" {
		values["BOT_TOKEN"] = botToken
		values["ADMIN_TELEGRAM_ID"] = adminID
		values["STOCKMETA_TOKEN_KEY"] = generateTokenKey()
	}

	path, err := EnvFilePath()
	if err == nil {
		err = WriteEnvFile(path, values)
	}
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		WaitOnWindows()
		return false
	}

	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)
	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + path))
	fmt.Println()

	return true
}

func generateTokenKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("stockmeta-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

// validateTelegramToken validates a Telegram bot token by calling getMe.
func validateTelegramToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description,omitempty"`
	}
	_, err := resty.New().R().
		SetContext(ctx).
		SetPathParam("token", token).
		SetResult(&result).
		SetError(&result).
		Get("https://api.telegram.org/bot{token}/getMe")
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.New("connection timed out - check your internet")
		}
		return errors.New("connection failed - check your internet")
	}
	if !result.OK {
		if result.Description != "" {
			return errors.New(result.Description)
		}
		return errors.New("token rejected by Telegram")
	}
	return nil
}

// validateGeminiKey validates a Gemini API key with the lightweight models
// list endpoint.
func validateGeminiKey(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	resp, err := resty.New().R().
		SetContext(ctx).
		SetQueryParam("key", key).
		SetError(&apiErr).
		Get("https://generativelanguage.googleapis.com/v1beta/models")
	if err != nil {
		return errors.New("connection failed - check your internet")
	}

	switch code := resp.StatusCode(); {
	case code == 400 || code == 401 || code == 403:
		if apiErr.Error.Message != "" {
			return errors.New(apiErr.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", code)
	case code != 200:
		return fmt.Errorf("unexpected response (HTTP %d)", code)
	}
	return nil
}

// WriteEnvFile writes values to path in a fixed order with 0600 permissions
// since the file contains secrets. Values are quoted.
func WriteEnvFile(path string, values map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	for _, key := range envOrder {
		if val, ok := values[key]; ok {
			if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
	}
	return nil
}

// WaitOnWindows pauses execution on Windows so users can see error messages
// before the console window closes.
func WaitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// FatalWithWait logs a fatal error and waits on Windows before exiting.
func FatalWithWait(format string, args ...any) {
	log.Error().Msgf(format, args...)
	WaitOnWindows()
	os.Exit(1)
}
