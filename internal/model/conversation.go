// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// MaxTitleRunes is the length at which conversation titles are cut.
const MaxTitleRunes = 18

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a persisted transcript with its metadata.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []Turn    `json:"turns"`
}

// ApproxSize estimates the stored size of the conversation in bytes.
func (c Conversation) ApproxSize() int64 {
	var size int64
	for _, t := range c.Turns {
		size += t.ApproxSize()
	}
	return size
}

// MakeTitle derives a title from the first user message.
// Titles longer than MaxTitleRunes are cut and end with "…".
func MakeTitle(firstUserText, fallback string) string {
	text := strings.TrimSpace(firstUserText)
	if text == "" {
		return fallback
	}
	runes := []rune(text)
	if len(runes) > MaxTitleRunes {
		return string(runes[:MaxTitleRunes]) + "…"
	}
	return text
}

// SettleTurns clears streaming flags left on turns saved mid-request.
// Placeholders that never received text get the given notice.
func SettleTurns(turns []Turn, notice string) []Turn {
	out := cloneTurns(turns)
	for i := range out {
		if out[i].IsTerminal() {
			continue
		}
		if out[i].Text == "" && len(out[i].ImageURLs) == 0 && out[i].VideoURL == "" {
			out[i].Text = notice
		}
		out[i].Finish()
	}
	return out
}
