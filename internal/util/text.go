// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis marks truncated text.
const Ellipsis = "…"

// TruncateRunes cuts s to at most maxRunes characters, ending with Ellipsis
// when anything was removed.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes == 1 {
		return Ellipsis
	}
	return string(runes[:maxRunes-1]) + Ellipsis
}

// TruncateWidth cuts s to at most maxWidth terminal columns. CJK and other
// wide characters count as two columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, Ellipsis)
}

// PadWidth right-pads s with spaces to width terminal columns.
func PadWidth(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// StringWidth returns the number of terminal columns s occupies.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// OneLine collapses all whitespace runs, newlines included, to single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
