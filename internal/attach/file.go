// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/glmchat/internal/i18n"
	"github.com/jeranaias/glmchat/internal/model"
)

const (
	// MaxSummaryRunes is the length of a text file summary.
	MaxSummaryRunes = 2000

	// MaxReadBytes caps how much of a file is read for summarizing.
	// SECURITY: Prevents loading huge files into memory.
	MaxReadBytes = 4 * 1024 * 1024
)

// =============================================================================
// FILE CONTEXT
// =============================================================================

// FileContext is a file summarized for a chat turn.
type FileContext struct {
	Name    string
	Summary string
	Path    string
}

// Attachments converts the context into session attachments.
func (fc FileContext) Attachments() model.Attachments {
	return model.Attachments{
		FileName:    fc.Name,
		FileSummary: fc.Summary,
		FilePath:    fc.Path,
	}
}

// SummarizeFile reads path and describes it for the model.
// Read failures are described in the summary rather than returned, so the
// user still sees which file failed.
func SummarizeFile(path string, loc *i18n.Localizer) FileContext {
	fc := FileContext{Name: filepath.Base(path), Path: path}
	if abs, err := filepath.Abs(path); err == nil {
		fc.Path = abs
	}

	f, err := os.Open(path)
	if err != nil {
		fc.Summary = loc.T(i18n.FileReadFailed, err.Error())
		return fc
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fc.Summary = loc.T(i18n.FileReadFailed, err.Error())
		return fc
	}
	if info.IsDir() {
		fc.Summary = loc.T(i18n.FileReadFailed, fmt.Sprintf("%s is a directory", fc.Name))
		return fc
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxReadBytes))
	if err != nil {
		fc.Summary = loc.T(i18n.FileReadFailed, err.Error())
		return fc
	}

	fc.Summary = Summarize(data, info.Size(), loc)
	return fc
}

// Summarize describes file contents: text is trimmed and cut to
// MaxSummaryRunes, anything else is described by its size.
func Summarize(data []byte, size int64, loc *i18n.Localizer) string {
	if !IsText(data) {
		return loc.T(i18n.FileNonText, strconv.FormatInt(sizeKB(size), 10))
	}
	return TruncateSummary(strings.TrimSpace(string(data)))
}

// TruncateSummary cuts s to MaxSummaryRunes runes, appending "…" when cut.
func TruncateSummary(s string) string {
	if utf8.RuneCountInString(s) <= MaxSummaryRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxSummaryRunes]) + "…"
}

// IsText reports whether data looks like UTF-8 text.
// A truncated trailing rune from a capped read is tolerated.
func IsText(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	if utf8.Valid(data) {
		return true
	}
	// Allow one incomplete rune at the end.
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		if utf8.Valid(data[:len(data)-i]) {
			return true
		}
	}
	return false
}

func sizeKB(size int64) int64 {
	kb := (size + 1023) / 1024
	if kb < 1 {
		kb = 1
	}
	return kb
}
