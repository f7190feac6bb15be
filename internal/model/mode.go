// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// MODE TYPE
// =============================================================================

// Mode selects what a submitted turn generates.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeImage Mode = "image"
	ModeVideo Mode = "video"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeChat, ModeImage, ModeVideo}

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeChat, "":
		return ModeChat, nil
	case ModeImage:
		return ModeImage, nil
	case ModeVideo:
		return ModeVideo, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want chat, image or video)", s)
	}
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// Attachments holds the context selected for the next submit.
type Attachments struct {
	ImageData   []byte
	FileName    string
	FileSummary string
	FilePath    string
}

// IsEmpty returns true if nothing is attached.
func (a Attachments) IsEmpty() bool {
	return len(a.ImageData) == 0 && a.FileSummary == "" && a.FileName == ""
}

// HasImage returns true if image bytes are attached.
func (a Attachments) HasImage() bool {
	return len(a.ImageData) > 0
}

// HasFile returns true if a file summary is attached.
func (a Attachments) HasFile() bool {
	return a.FileSummary != ""
}
