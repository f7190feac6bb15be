// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/jeranaias/glmchat/internal/attach"
	"github.com/jeranaias/glmchat/internal/i18n"
	"github.com/jeranaias/glmchat/internal/model"
	"github.com/jeranaias/glmchat/internal/zhipu"
)

// ComposeContent builds the outgoing user message from the typed text and
// the attached image and file.
func ComposeContent(text string, att model.Attachments, loc *i18n.Localizer) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(text))

	if att.HasImage() {
		sb.WriteString("\n\n")
		sb.WriteString(loc.T(i18n.AttachedImage))
		sb.WriteString(attach.DescribeImage(att.ImageData, loc))
	}

	if att.HasFile() {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = loc.T(i18n.SelectedFile)
		}
		sb.WriteString("\n\n")
		sb.WriteString(loc.T(i18n.AttachedFile, name))
		if att.FilePath != "" {
			sb.WriteString("\n")
			sb.WriteString(loc.T(i18n.FilePath, att.FilePath))
		}
		sb.WriteString("\n")
		sb.WriteString(att.FileSummary)
	}

	return strings.TrimSpace(sb.String())
}

// BuildMessages maps the prior transcript to provider messages and appends
// content as the final user message. Turns without text are skipped.
func BuildMessages(history []model.Turn, content string) []zhipu.Message {
	messages := make([]zhipu.Message, 0, len(history)+1)
	for _, t := range history {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		messages = append(messages, zhipu.Message{Role: t.Sender.Role(), Content: t.Text})
	}
	return append(messages, zhipu.Message{Role: "user", Content: content})
}
