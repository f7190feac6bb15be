// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/glmchat/internal/util"
	"github.com/jeranaias/glmchat/internal/zhipu"
)

// Environment variables read by ApplyEnvOverrides and ConfigDir.
const (
	EnvAPIKey   = "ZHIPU_API_KEY"
	EnvBaseURL  = "GLMCHAT_BASE_URL"
	EnvLanguage = "GLMCHAT_LANGUAGE"
	EnvLogLevel = "GLMCHAT_LOG_LEVEL"
	EnvHome     = "GLMCHAT_HOME"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete glmchat configuration.
type Config struct {
	Provider ProviderConfig `toml:"provider" json:"provider"`
	Chat     ChatConfig     `toml:"chat" json:"chat"`
	Image    ImageConfig    `toml:"image" json:"image"`
	Video    VideoConfig    `toml:"video" json:"video"`
	Storage  StorageConfig  `toml:"storage" json:"storage"`
	UI       UIConfig       `toml:"ui" json:"ui"`
	Log      LogConfig      `toml:"log" json:"log"`
}

// ProviderConfig contains Zhipu API settings.
type ProviderConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
	// APIKey is the stored key; ZHIPU_API_KEY is used when empty.
	APIKey     string `toml:"api_key" json:"api_key"`
	ChatModel  string `toml:"chat_model" json:"chat_model"`
	ImageModel string `toml:"image_model" json:"image_model"`
	VideoModel string `toml:"video_model" json:"video_model"`

	Temperature float64 `toml:"temperature" json:"temperature"`
	MaxTokens   int     `toml:"max_tokens" json:"max_tokens"`

	// RequestsPerSecond limits outgoing requests (0 = unlimited).
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// ChatConfig controls how chat replies are obtained.
type ChatConfig struct {
	// StreamFirst tries the streaming endpoint before the async task.
	StreamFirst       bool `toml:"stream_first" json:"stream_first"`
	TypewriterDelayMs int  `toml:"typewriter_delay_ms" json:"typewriter_delay_ms"`
	PollIntervalMs    int  `toml:"poll_interval_ms" json:"poll_interval_ms"`
	PollTimeoutSecs   int  `toml:"poll_timeout_secs" json:"poll_timeout_secs"`
}

// ImageConfig contains image generation parameters.
type ImageConfig struct {
	Size string `toml:"size" json:"size"`
}

// VideoConfig contains video generation parameters.
type VideoConfig struct {
	Quality   string `toml:"quality" json:"quality"`
	WithAudio bool   `toml:"with_audio" json:"with_audio"`
	Size      string `toml:"size" json:"size"`
	FPS       int    `toml:"fps" json:"fps"`
}

// StorageConfig selects where conversations are kept.
type StorageConfig struct {
	// Backend is "sqlite" or "json".
	Backend string `toml:"backend" json:"backend"`
	// Dir defaults to the config directory.
	Dir string `toml:"dir" json:"dir"`
	// MaxBytes caps the total size of stored conversations.
	MaxBytes int64 `toml:"max_bytes" json:"max_bytes"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	// Language is "zh" or "en".
	Language      string `toml:"language" json:"language"`
	Markdown      bool   `toml:"markdown" json:"markdown"`
	ShowReasoning bool   `toml:"show_reasoning" json:"show_reasoning"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// Dir enables file logging when set.
	Dir      string `toml:"dir" json:"dir"`
	MaxFiles int    `toml:"max_files" json:"max_files"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:     zhipu.DefaultBaseURL,
			ChatModel:   zhipu.DefaultChatModel,
			ImageModel:  zhipu.DefaultImageModel,
			VideoModel:  zhipu.DefaultVideoModel,
			Temperature: 0.9,
			MaxTokens:   1024,
			Burst:       1,
		},
		Chat: ChatConfig{
			StreamFirst:       true,
			TypewriterDelayMs: 70,
			PollIntervalMs:    1000,
			PollTimeoutSecs:   60,
		},
		Image: ImageConfig{
			Size: "1024x1024",
		},
		Video: VideoConfig{
			Quality:   "quality",
			WithAudio: true,
			Size:      "1920x1080",
			FPS:       30,
		},
		Storage: StorageConfig{
			Backend:  "sqlite",
			MaxBytes: 100 * 1024 * 1024,
		},
		UI: UIConfig{
			Language:      "zh",
			Markdown:      true,
			ShowReasoning: true,
		},
		Log: LogConfig{
			Level:    "warn",
			MaxFiles: 10,
		},
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// APIKey returns the stored key, falling back to ZHIPU_API_KEY.
func (c *Config) APIKey() string {
	if key := strings.TrimSpace(c.Provider.APIKey); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(EnvAPIKey))
}

// TypewriterDelay returns the per-character replay delay.
func (c *Config) TypewriterDelay() time.Duration {
	return time.Duration(c.Chat.TypewriterDelayMs) * time.Millisecond
}

// PollInterval returns the delay between async result lookups.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Chat.PollIntervalMs) * time.Millisecond
}

// PollTimeout returns the async task deadline.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Chat.PollTimeoutSecs) * time.Second
}

// StorageDir returns the conversation directory.
func (c *Config) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return expandHome(c.Storage.Dir)
	}
	return ConfigDir()
}

// LogDir returns the log directory, or "" when file logging is off.
func (c *Config) LogDir() (string, error) {
	if c.Log.Dir == "" {
		return "", nil
	}
	return expandHome(c.Log.Dir)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the glmchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".glmchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens config files to 0600 since they may hold
// an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file if it exists, then applies
// environment overrides, defaults and validation.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return LoadFromPath(path)
	}
	return finish(Default())
}

// LoadFromPath loads configuration from a specific TOML file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys absent from the file keep the values
// already in cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// SetDefaults replaces zero values that have no valid meaning.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = d.Provider.BaseURL
	}
	if c.Provider.ChatModel == "" {
		c.Provider.ChatModel = d.Provider.ChatModel
	}
	if c.Provider.ImageModel == "" {
		c.Provider.ImageModel = d.Provider.ImageModel
	}
	if c.Provider.VideoModel == "" {
		c.Provider.VideoModel = d.Provider.VideoModel
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = d.Provider.MaxTokens
	}
	if c.Provider.Burst == 0 {
		c.Provider.Burst = d.Provider.Burst
	}

	if c.Chat.PollIntervalMs == 0 {
		c.Chat.PollIntervalMs = d.Chat.PollIntervalMs
	}
	if c.Chat.PollTimeoutSecs == 0 {
		c.Chat.PollTimeoutSecs = d.Chat.PollTimeoutSecs
	}

	if c.Image.Size == "" {
		c.Image.Size = d.Image.Size
	}
	if c.Video.Quality == "" {
		c.Video.Quality = d.Video.Quality
	}
	if c.Video.Size == "" {
		c.Video.Size = d.Video.Size
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = d.Video.FPS
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.MaxBytes == 0 {
		c.Storage.MaxBytes = d.Storage.MaxBytes
	}
	if c.UI.Language == "" {
		c.UI.Language = d.UI.Language
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxFiles == 0 {
		c.Log.MaxFiles = d.Log.MaxFiles
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# glmchat configuration file\n")
	buf.WriteString("# Generated by glmchat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Provider
	if u, err := url.Parse(c.Provider.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("provider.base_url", "invalid URL '%s', must be http(s)://host[/path]", c.Provider.BaseURL)
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 1 {
		add("provider.temperature", "%.2f out of range, must be between 0 and 1", c.Provider.Temperature)
	}
	if c.Provider.MaxTokens < 1 {
		add("provider.max_tokens", "must be positive, got %d", c.Provider.MaxTokens)
	}
	if c.Provider.RequestsPerSecond < 0 {
		add("provider.requests_per_second", "must not be negative")
	}
	if c.Provider.Burst < 1 {
		add("provider.burst", "must be at least 1, got %d", c.Provider.Burst)
	}

	// Chat
	if c.Chat.TypewriterDelayMs < 0 || c.Chat.TypewriterDelayMs > 1000 {
		add("chat.typewriter_delay_ms", "%d out of range, must be between 0 and 1000", c.Chat.TypewriterDelayMs)
	}
	if c.Chat.PollIntervalMs < 100 {
		add("chat.poll_interval_ms", "must be at least 100, got %d", c.Chat.PollIntervalMs)
	}
	if c.Chat.PollTimeoutSecs < 1 || c.Chat.PollTimeoutSecs > 3600 {
		add("chat.poll_timeout_secs", "%d out of range, must be between 1 and 3600", c.Chat.PollTimeoutSecs)
	}

	// Media
	if !validSize(c.Image.Size) {
		add("image.size", "invalid size '%s', must look like 1024x1024", c.Image.Size)
	}
	if !validSize(c.Video.Size) {
		add("video.size", "invalid size '%s', must look like 1920x1080", c.Video.Size)
	}
	if q := strings.ToLower(c.Video.Quality); q != "quality" && q != "speed" {
		add("video.quality", "invalid quality '%s', must be one of: quality, speed", c.Video.Quality)
	}
	if c.Video.FPS != 30 && c.Video.FPS != 60 {
		add("video.fps", "must be 30 or 60, got %d", c.Video.FPS)
	}

	// Storage
	if b := strings.ToLower(c.Storage.Backend); b != "sqlite" && b != "json" {
		add("storage.backend", "invalid backend '%s', must be one of: sqlite, json", c.Storage.Backend)
	}
	if c.Storage.MaxBytes < 0 {
		add("storage.max_bytes", "must not be negative")
	}

	// UI and logging
	if l := strings.ToLower(c.UI.Language); !strings.HasPrefix(l, "zh") && !strings.HasPrefix(l, "en") {
		add("ui.language", "unsupported language '%s', must be zh or en", c.UI.Language)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		add("log.level", "%v", err)
	}
	if c.Log.MaxFiles < 1 {
		add("log.max_files", "must be at least 1, got %d", c.Log.MaxFiles)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validSize(s string) bool {
	var w, h int
	n, err := fmt.Sscanf(s, "%dx%d", &w, &h)
	return err == nil && n == 2 && w > 0 && h > 0 && fmt.Sprintf("%dx%d", w, h) == s
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - GLMCHAT_BASE_URL: overrides provider.base_url
//   - GLMCHAT_LANGUAGE: overrides ui.language
//   - GLMCHAT_LOG_LEVEL: overrides log.level
//
// ZHIPU_API_KEY is not copied into the config so that Save never writes it
// to disk; APIKey reads it directly.
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv(EnvBaseURL); u != "" {
		c.Provider.BaseURL = u
	}
	if lang := os.Getenv(EnvLanguage); lang != "" {
		c.UI.Language = lang
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as JSON with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Provider.APIKey != "" {
		safe.Provider.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// ErrNoAPIKey is returned by RequireAPIKey when no key is configured.
var ErrNoAPIKey = errors.New("no API key configured: run 'glmchat config set-key' or set " + EnvAPIKey)

// RequireAPIKey returns the API key or ErrNoAPIKey.
func (c *Config) RequireAPIKey() (string, error) {
	if key := c.APIKey(); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}
