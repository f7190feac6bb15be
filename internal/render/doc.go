// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render draws a chat transcript on a scrolling terminal.
//
// Terminal implements chat.Renderer. Live assistant turns are written
// incrementally: a status line while the request is pending, then reasoning
// and reply text as deltas, then any generated image or video links once the
// turn is terminal. Turns that are already terminal the first time they are
// seen, such as those of a loaded conversation, are printed whole, with the
// reply rendered as Markdown through glamour when enabled.
//
// Colors come from lipgloss adaptive colors on a renderer bound to the output
// writer, so piped output and NO_COLOR get plain text.
package render
