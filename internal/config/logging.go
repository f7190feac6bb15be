// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// logFilePrefix names log files as glmchat-<timestamp>.log.
const logFilePrefix = "glmchat-"

// ParseLevel converts a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", s)
	}
}

// NewLogger builds a text logger writing to w at the named level. Unknown
// levels fall back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl, _ := ParseLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// SetupLogFile creates a new timestamped log file and removes the oldest
// files beyond maxFiles. The caller must close the returned file.
func SetupLogFile(dir string, maxFiles int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s%s.log", logFilePrefix,
		time.Now().Format("2006-01-02T15-04-05.000")))

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	if err := cleanupOldLogs(dir, maxFiles); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to cleanup old logs: %v\n", err)
	}
	return f, nil
}

// cleanupOldLogs removes the oldest log files when count exceeds maxFiles.
func cleanupOldLogs(dir string, maxFiles int) error {
	if maxFiles < 1 {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(dir, logFilePrefix+"*.log"))
	if err != nil {
		return err
	}
	if len(files) <= maxFiles {
		return nil
	}

	// The timestamp format sorts chronologically.
	sort.Strings(files)
	for _, f := range files[:len(files)-maxFiles] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("remove %s: %w", f, err)
		}
	}
	return nil
}

// LoadDotEnv loads .env from the working directory and from the config
// directory. Variables already in the environment are kept and missing
// files are ignored.
func LoadDotEnv() error {
	paths := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}

	var errs []error
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("load %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
