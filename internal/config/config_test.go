// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvHome, dir)
	for _, env := range []string{EnvAPIKey, EnvBaseURL, EnvLanguage, EnvLogLevel} {
		t.Setenv(env, "")
	}
	return dir
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() is invalid: %v", err)
	}
	if !cfg.Chat.StreamFirst {
		t.Error("StreamFirst should default to true")
	}
	if cfg.PollInterval() != time.Second || cfg.PollTimeout() != time.Minute {
		t.Errorf("poll = %v/%v, want 1s/1m", cfg.PollInterval(), cfg.PollTimeout())
	}
	if cfg.TypewriterDelay() != 70*time.Millisecond {
		t.Errorf("TypewriterDelay = %v", cfg.TypewriterDelay())
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.ChatModel != Default().Provider.ChatModel {
		t.Errorf("ChatModel = %q", cfg.Provider.ChatModel)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	content := `
[chat]
poll_timeout_secs = 90

[video]
fps = 60
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chat.PollTimeoutSecs != 90 || cfg.Video.FPS != 60 {
		t.Errorf("file values not applied: %+v %+v", cfg.Chat, cfg.Video)
	}
	if !cfg.Chat.StreamFirst || !cfg.Video.WithAudio {
		t.Error("absent booleans should keep their defaults")
	}

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 600", perm)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[video]\nfps = 24\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromPath(path)
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("LoadFromPath error = %v, want ValidateErrors", err)
	}
	if len(verrs) != 1 || verrs[0].Field != "video.fps" {
		t.Errorf("errors = %v", verrs)
	}
}

func TestSaveAndReload(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Provider.APIKey = "abc.def"
	cfg.Storage.Backend = "json"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	path, _ := ConfigPath()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("saved permissions = %o, want 600", perm)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider.APIKey != "abc.def" || loaded.Storage.Backend != "json" {
		t.Errorf("reloaded = %+v", loaded.Provider)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBaseURL, "http://localhost:8080/v4")
	t.Setenv(EnvLanguage, "en")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.BaseURL != "http://localhost:8080/v4" || cfg.UI.Language != "en" || cfg.Log.Level != "debug" {
		t.Errorf("overrides not applied: %+v %+v %+v", cfg.Provider, cfg.UI, cfg.Log)
	}
}

func TestAPIKey_Precedence(t *testing.T) {
	isolate(t)
	cfg := Default()

	if _, err := cfg.RequireAPIKey(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("RequireAPIKey error = %v, want ErrNoAPIKey", err)
	}

	t.Setenv(EnvAPIKey, " from-env ")
	if got := cfg.APIKey(); got != "from-env" {
		t.Errorf("APIKey = %q, want from-env", got)
	}

	cfg.Provider.APIKey = "stored"
	if got := cfg.APIKey(); got != "stored" {
		t.Errorf("APIKey = %q, want stored", got)
	}
}

func TestString_RedactsKey(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = "secret-key"
	s := cfg.String()
	if strings.Contains(s, "secret-key") {
		t.Error("String() leaked the API key")
	}
	if cfg.Provider.APIKey != "secret-key" {
		t.Error("String() modified the original config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"bad url", func(c *Config) { c.Provider.BaseURL = "ftp://x" }, "provider.base_url"},
		{"temperature", func(c *Config) { c.Provider.Temperature = 1.5 }, "provider.temperature"},
		{"image size", func(c *Config) { c.Image.Size = "big" }, "image.size"},
		{"video quality", func(c *Config) { c.Video.Quality = "ultra" }, "video.quality"},
		{"backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"language", func(c *Config) { c.UI.Language = "fr" }, "ui.language"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"poll interval", func(c *Config) { c.Chat.PollIntervalMs = 5 }, "chat.poll_interval_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			err := cfg.Validate()
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() = %v, want ValidateErrors", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("field = %q, want %q", verrs[0].Field, tt.field)
			}
		})
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("video.fps", "60"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cfg.Set("chat.stream-first", "off"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cfg.Set("provider.temperature", "0.5"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if v, _ := cfg.Get("video.fps"); v != 60 {
		t.Errorf("video.fps = %v", v)
	}
	if cfg.Chat.StreamFirst {
		t.Error("chat.stream_first should be false")
	}
	if cfg.Provider.Temperature != 0.5 {
		t.Errorf("temperature = %v", cfg.Provider.Temperature)
	}

	for _, key := range []string{"", "nope", "video", "video.fps.x"} {
		if _, err := cfg.Get(key); err == nil {
			t.Errorf("Get(%q) should fail", key)
		}
	}
	if err := cfg.Set("video.fps", "sixty"); err == nil {
		t.Error("Set with a bad integer should fail")
	}
}

func TestAllKeys(t *testing.T) {
	keys := AllKeys()
	cfg := Default()
	for _, k := range keys {
		if _, err := cfg.Get(k); err != nil {
			t.Errorf("Get(%q) failed: %v", k, err)
		}
	}
	want := map[string]bool{"provider.api_key": false, "chat.stream_first": false, "storage.max_bytes": false}
	for _, k := range keys {
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("AllKeys() missing %q", k)
		}
	}
}

func TestStorageDir(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	got, err := cfg.StorageDir()
	if err != nil || got != dir {
		t.Errorf("StorageDir() = %q, %v; want %q", got, err, dir)
	}

	cfg.Storage.Dir = "/var/lib/glmchat"
	if got, _ := cfg.StorageDir(); got != "/var/lib/glmchat" {
		t.Errorf("StorageDir() = %q", got)
	}
}

// =============================================================================
// LOGGING
// =============================================================================

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output: %q", out)
	}

	if lvl, err := ParseLevel("DEBUG"); err != nil || lvl != slog.LevelDebug {
		t.Errorf("ParseLevel(DEBUG) = %v, %v", lvl, err)
	}
}

func TestSetupLogFile_Prunes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"glmchat-2024-01-01T00-00-00.000.log", "glmchat-2024-01-02T00-00-00.000.log", "other.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatal(err)
		}
	}

	f, err := SetupLogFile(dir, 2)
	if err != nil {
		t.Fatalf("SetupLogFile failed: %v", err)
	}
	defer f.Close()

	logs, _ := filepath.Glob(filepath.Join(dir, "glmchat-*.log"))
	if len(logs) != 2 {
		t.Fatalf("kept %d log files, want 2: %v", len(logs), logs)
	}
	if _, err := os.Stat(filepath.Join(dir, "glmchat-2024-01-01T00-00-00.000.log")); !os.IsNotExist(err) {
		t.Error("oldest log file should have been removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "other.log")); err != nil {
		t.Error("unrelated files must be kept")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	t.Chdir(t.TempDir())
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GLMCHAT_TEST_DOTENV=loaded\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("GLMCHAT_TEST_DOTENV") })

	if err := LoadDotEnv(); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("GLMCHAT_TEST_DOTENV"); got != "loaded" {
		t.Errorf("GLMCHAT_TEST_DOTENV = %q", got)
	}
}
