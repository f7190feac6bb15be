// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// COLORS
// =============================================================================

// Purple - Assistant label, accents
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Cyan - User label, prompts
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald - Success, links
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Rose - Errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - Warnings
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// TextMuted - Status lines, reasoning, hints
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// TextSecondary - Labels and table headers
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}

// =============================================================================
// STYLES
// =============================================================================

// Styles holds the styles used for transcript and CLI output.
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Status    lipgloss.Style
	Reasoning lipgloss.Style
	Link      lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
	Muted     lipgloss.Style
	Header    lipgloss.Style
	Prompt    lipgloss.Style
}

// NewStyles builds styles for output written to w. Color is detected from w
// and disabled when noColor is set or NO_COLOR is in the environment.
func NewStyles(w io.Writer, noColor bool) Styles {
	r := lipgloss.NewRenderer(w)
	if noColor || termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}

	return Styles{
		User:      r.NewStyle().Foreground(Cyan).Bold(true),
		Assistant: r.NewStyle().Foreground(Purple).Bold(true),
		Status:    r.NewStyle().Foreground(TextMuted).Italic(true),
		Reasoning: r.NewStyle().Foreground(TextMuted).Faint(true),
		Link:      r.NewStyle().Foreground(Emerald).Underline(true),
		Error:     r.NewStyle().Foreground(Rose),
		Warning:   r.NewStyle().Foreground(Amber),
		Success:   r.NewStyle().Foreground(Emerald),
		Muted:     r.NewStyle().Foreground(TextMuted),
		Header:    r.NewStyle().Foreground(TextSecondary).Bold(true),
		Prompt:    r.NewStyle().Foreground(Cyan).Bold(true),
	}
}

// Paint applies style to each line of s separately, leaving newlines and
// empty lines untouched.
func Paint(style lipgloss.Style, s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
