// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/glmchat/internal/model"
	"github.com/jeranaias/glmchat/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a conversation to one file format.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv model.Conversation) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md").
	FileExtension() string
}

// Format names accepted by ForFormat.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a front matter header with ids and dates.
	IncludeMetadata bool

	// IncludeTimestamps adds per-turn times.
	IncludeTimestamps bool

	// IncludeReasoning keeps the model's reasoning in a collapsed block.
	IncludeReasoning bool

	// Now stamps the export. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		IncludeReasoning:  true,
		Now:               time.Now,
	}
}

// ForFormat returns the exporter for a format name. "md" is accepted for
// Markdown.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMarkdown, "md", "":
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want markdown or json)", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports conv into dir under a name derived from its title and
// returns the written path. The file is written atomically.
func ToFile(conv model.Conversation, exporter Exporter, dir string) (string, error) {
	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	short := conv.ID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("conversation_%s_%s%s", sanitizeFilename(conv.Title), short, exporter.FileExtension())
	path := filepath.Join(dir, name)
	if err := util.AtomicWriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(strings.TrimSpace(s), 50)
	s = strings.TrimSuffix(s, util.Ellipsis)

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(s))
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
