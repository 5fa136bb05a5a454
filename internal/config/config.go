// Package config loads environment variables and the settings file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/raine/stockmeta/internal/llm"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
	"gopkg.in/yaml.v3"
)

const (
	AppName          = "stockmeta"
	EnvFileName      = "config.env"
	SettingsFileName = "settings.yaml"
)

const (
	// ErrUnknownKey means the settings file names a key that is not
	// recognized.
	ErrUnknownKey = "config_unknown_key"
	// ErrInvalidValue means a recognized key holds an unusable value.
	ErrInvalidValue = "config_invalid_value"
	// ErrUnreadable means the settings file could not be read or parsed.
	ErrUnreadable = "config_unreadable"
)

// Error is a configuration failure with a machine-readable code.
type Error struct {
	Code string
	Path string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Key != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %q: %v", e.Code, e.Path, e.Key, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%s: %s: %q", e.Code, e.Path, e.Key)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Path)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the code of a *Error, or "" for any other error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Dir returns the application's config directory, creating it when needed.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	dir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// EnvFilePath returns the path of config.env.
func EnvFilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, EnvFileName), nil
}

// SettingsPath returns the path of settings.yaml.
func SettingsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SettingsFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
// Variables already set in the environment win.
func LoadEnvFile() {
	path, err := EnvFilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Provider names the generation backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderMock   Provider = "mock"
)

// ProviderFromEnv reads STOCKMETA_PROVIDER, defaulting to Gemini.
func ProviderFromEnv() (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(os.Getenv("STOCKMETA_PROVIDER")))); p {
	case "":
		return ProviderGemini, nil
	case ProviderGemini, ProviderOpenAI, ProviderMock:
		return p, nil
	default:
		return "", &Error{Code: ErrInvalidValue, Path: "STOCKMETA_PROVIDER", Key: string(p)}
	}
}

// Mode is a command that needs its own set of environment variables.
type Mode string

const (
	ModeBatch Mode = "batch"
	ModeBot   Mode = "bot"
	ModeServe Mode = "serve"
)

// RequiredEnv lists the environment variables mode needs with provider.
func RequiredEnv(mode Mode, provider Provider) []string {
	var vars []string
	switch provider {
	case ProviderGemini:
		vars = append(vars, "GEMINI_API_KEY")
	case ProviderOpenAI:
		vars = append(vars, "OPENAI_API_KEY")
	}
	if mode == ModeBot {
		vars = append(vars, "BOT_TOKEN", "ADMIN_TELEGRAM_ID", "STOCKMETA_TOKEN_KEY")
	}
	return vars
}

// Missing returns the names in vars that are unset or empty.
func Missing(vars []string) []string {
	var missing []string
	for _, v := range vars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// ExportFormat selects the batch export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// Settings are the tunables of settings.yaml. Every field has a yaml key in
// the whitelist below; nothing else is accepted.
type Settings struct {
	Platform          string       `yaml:"platform"`
	Language          string       `yaml:"language"`
	MaxKeywords       int          `yaml:"max_keywords"`
	MinKeywordLength  int          `yaml:"min_keyword_length"`
	MaxKeywordLength  int          `yaml:"max_keyword_length"`
	Workers           int          `yaml:"workers"`
	RequestsPerSecond float64      `yaml:"requests_per_second"`
	Retries           int          `yaml:"retries"`
	Model             string       `yaml:"model"`
	Temperature       float64      `yaml:"temperature"`
	MaxTokens         int          `yaml:"max_tokens"`
	WriteIPTC         bool         `yaml:"write_iptc"`
	XMPSidecar        bool         `yaml:"xmp_sidecar"`
	ExportFormat      ExportFormat `yaml:"export_format"`
}

// Keys is the whitelist of recognized settings keys.
var Keys = []string{
	"platform", "language", "max_keywords", "min_keyword_length",
	"max_keyword_length", "workers", "requests_per_second", "retries",
	"model", "temperature", "max_tokens", "write_iptc", "xmp_sidecar",
	"export_format",
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		Platform:          string(platform.DefaultID),
		Language:          string(meta.LanguageBoth),
		MinKeywordLength:  meta.DefaultBounds.Min,
		MaxKeywordLength:  meta.DefaultBounds.Max,
		Workers:           4,
		RequestsPerSecond: 1,
		Retries:           3,
		Temperature:       0.2,
		MaxTokens:         800,
		WriteIPTC:         true,
		XMPSidecar:        true,
		ExportFormat:      ExportCSV,
	}
}

// LoadSettings reads path over DefaultSettings. A missing file yields the
// defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, &Error{Code: ErrUnreadable, Path: path, Err: err}
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		if key := unknownKey(err); key != "" {
			return s, &Error{Code: ErrUnknownKey, Path: path, Key: key}
		}
		return s, &Error{Code: ErrUnreadable, Path: path, Err: err}
	}

	if err := s.Validate(); err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return s, err
	}
	return s, nil
}

// unknownKey extracts the key name from yaml's strict-mode error, e.g.
// "line 3: field colour not found in type config.Settings".
func unknownKey(err error) string {
	msg := err.Error()
	i := strings.Index(msg, "field ")
	j := strings.Index(msg, " not found in type")
	if i < 0 || j < i {
		return ""
	}
	return msg[i+len("field ") : j]
}

// Validate checks every field.
func (s Settings) Validate() error {
	invalid := func(key string, err error) error {
		return &Error{Code: ErrInvalidValue, Path: SettingsFileName, Key: key, Err: err}
	}

	c, err := platform.Get(s.Platform)
	if err != nil {
		return invalid("platform", err)
	}
	if _, err := meta.ParseLanguage(s.Language); err != nil {
		return invalid("language", err)
	}
	if s.MaxKeywords < 0 || s.MaxKeywords > c.MaxKeywords {
		return invalid("max_keywords", fmt.Errorf("must be between 0 and %d", c.MaxKeywords))
	}
	if s.MinKeywordLength < 1 {
		return invalid("min_keyword_length", errors.New("must be at least 1"))
	}
	if s.MaxKeywordLength < s.MinKeywordLength {
		return invalid("max_keyword_length", errors.New("must not be below min_keyword_length"))
	}
	if s.Workers < 1 || s.Workers > 32 {
		return invalid("workers", errors.New("must be between 1 and 32"))
	}
	if s.RequestsPerSecond < 0 {
		return invalid("requests_per_second", errors.New("must not be negative"))
	}
	if s.Retries < 1 {
		return invalid("retries", errors.New("must be at least 1"))
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return invalid("temperature", errors.New("must be between 0 and 2"))
	}
	if s.MaxTokens < 0 {
		return invalid("max_tokens", errors.New("must not be negative"))
	}
	if s.ExportFormat != ExportCSV && s.ExportFormat != ExportJSON {
		return invalid("export_format", fmt.Errorf("must be %s or %s", ExportCSV, ExportJSON))
	}
	return nil
}

// Set assigns one whitelisted key from its string form, as given on the
// command line. The result is not validated; call Validate afterwards.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch key {
	case "platform":
		s.Platform = value
	case "language":
		s.Language = value
	case "max_keywords":
		s.MaxKeywords, err = strconv.Atoi(value)
	case "min_keyword_length":
		s.MinKeywordLength, err = strconv.Atoi(value)
	case "max_keyword_length":
		s.MaxKeywordLength, err = strconv.Atoi(value)
	case "workers":
		s.Workers, err = strconv.Atoi(value)
	case "requests_per_second":
		s.RequestsPerSecond, err = strconv.ParseFloat(value, 64)
	case "retries":
		s.Retries, err = strconv.Atoi(value)
	case "model":
		s.Model = value
	case "temperature":
		s.Temperature, err = strconv.ParseFloat(value, 64)
	case "max_tokens":
		s.MaxTokens, err = strconv.Atoi(value)
	case "write_iptc":
		s.WriteIPTC, err = strconv.ParseBool(value)
	case "xmp_sidecar":
		s.XMPSidecar, err = strconv.ParseBool(value)
	case "export_format":
		s.ExportFormat = ExportFormat(strings.ToLower(value))
	default:
		return &Error{Code: ErrUnknownKey, Path: "command line", Key: key}
	}
	if err != nil {
		return &Error{Code: ErrInvalidValue, Path: "command line", Key: key, Err: err}
	}
	return nil
}

// Constraints returns the platform constraints with the max_keywords
// override applied.
func (s Settings) Constraints() (platform.Constraints, error) {
	c, err := platform.Get(s.Platform)
	if err != nil {
		return c, err
	}
	return c.CapKeywords(s.MaxKeywords), nil
}

// Bounds returns the keyword length bounds.
func (s Settings) Bounds() meta.KeywordBounds {
	return meta.KeywordBounds{Min: s.MinKeywordLength, Max: s.MaxKeywordLength}
}

// GeneratorOptions returns the model options for the generation backend.
func (s Settings) GeneratorOptions() llm.Options {
	return llm.Options{Model: s.Model, Temperature: s.Temperature, MaxTokens: s.MaxTokens}
}
