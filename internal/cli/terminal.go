// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"

	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// fdHolder is implemented by *os.File.
type fdHolder interface {
	Fd() uintptr
}

// isTerminal returns true if v is a file attached to a terminal.
// Buffers and pipes used in tests are never terminals.
func isTerminal(v any) bool {
	f, ok := v.(fdHolder)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// TERMINAL WIDTH DETECTION
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width we'll use for wrapping
	MinTerminalWidth = 40
)

// terminalWidth returns the width of the terminal behind v, or
// DefaultTerminalWidth if it cannot be determined.
func terminalWidth(v any) int {
	f, ok := v.(fdHolder)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// readSecret reads a line from stdin without echo.
func readSecret() (string, error) {
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
