// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/glmchat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(conv model.Conversation) ([]byte, error) {
	if len(conv.Turns) == 0 {
		return nil, errors.New("conversation has no turns")
	}

	var sb strings.Builder

	// YAML front matter
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(conv.Title))
		fmt.Fprintf(&sb, "id: %s\n", conv.ID)
		fmt.Fprintf(&sb, "date: %s\n", conv.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "updated: %s\n", conv.UpdatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "turns: %d\n", len(conv.Turns))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.Now().Format(time.RFC3339))
		sb.WriteString("generator: glmchat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Title))

	for i, turn := range conv.Turns {
		label := "User"
		if !turn.IsUser() {
			label = "Assistant"
		}
		if e.options.IncludeTimestamps && !turn.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(turn.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		e.writeTurn(&sb, turn)

		if i < len(conv.Turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "---\n\n*Exported from glmchat on %s*\n", formatTimestamp(e.options.Now()))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func (e *MarkdownExporter) writeTurn(sb *strings.Builder, turn model.Turn) {
	if turn.AttachedFileName != "" {
		fmt.Fprintf(sb, "> Attached file: `%s`\n\n", turn.AttachedFileName)
	}
	if len(turn.AttachedImageData) > 0 {
		sb.WriteString("> Attached image\n\n")
	}

	if e.options.IncludeReasoning && turn.HasReasoning() {
		sb.WriteString("<details>\n<summary>Reasoning</summary>\n\n")
		sb.WriteString(strings.TrimSpace(turn.Reasoning))
		sb.WriteString("\n\n</details>\n\n")
	}

	if text := strings.TrimSpace(turn.Text); text != "" {
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	for i, url := range turn.ImageURLs {
		fmt.Fprintf(sb, "![image %d](%s)\n\n", i+1, url)
	}
	if turn.VideoURL != "" {
		fmt.Fprintf(sb, "[video](%s)\n\n", turn.VideoURL)
	}
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes values containing YAML special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
