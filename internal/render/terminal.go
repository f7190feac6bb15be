// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/glmchat/internal/chat"
	"github.com/jeranaias/glmchat/internal/i18n"
	"github.com/jeranaias/glmchat/internal/model"
)

// DefaultWidth is the Markdown wrap width when none is set.
const DefaultWidth = 80

// Options configures a Terminal.
type Options struct {
	Localizer *i18n.Localizer

	// Markdown renders replayed replies through glamour. Live replies are
	// always streamed as plain text.
	Markdown bool
	// MarkdownStyle is a glamour standard style name; "" picks one from the
	// terminal background.
	MarkdownStyle string
	Width         int

	ShowReasoning bool
	NoColor       bool
}

// turnState tracks what has been written for one turn.
type turnState struct {
	status    bool
	reasoning string
	text      string
	done      bool
}

// Terminal writes transcript updates to a terminal or pipe.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	opts   Options
	loc    *i18n.Localizer
	styles Styles
	md     *glamour.TermRenderer

	convID string
	turns  map[string]*turnState
}

var _ chat.Renderer = (*Terminal)(nil)

// NewTerminal creates a renderer writing to out. Markdown falls back to
// plain text if glamour cannot be initialized.
func NewTerminal(out io.Writer, opts Options) *Terminal {
	if opts.Localizer == nil {
		opts.Localizer = i18n.Default()
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}

	t := &Terminal{
		out:    out,
		opts:   opts,
		loc:    opts.Localizer,
		styles: NewStyles(out, opts.NoColor),
		turns:  make(map[string]*turnState),
	}
	if opts.Markdown {
		t.md = newMarkdown(opts)
	}
	return t
}

func newMarkdown(opts Options) *glamour.TermRenderer {
	style := glamour.WithAutoStyle()
	if opts.MarkdownStyle != "" {
		style = glamour.WithStandardStyle(opts.MarkdownStyle)
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(opts.Width))
	if err != nil {
		return nil
	}
	return md
}

// Styles returns the styles bound to the output writer.
func (t *Terminal) Styles() Styles {
	return t.styles
}

// =============================================================================
// LIVE RENDERING
// =============================================================================

// Render implements chat.Renderer.
func (t *Terminal) Render(snap chat.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if snap.ConversationID != t.convID {
		t.convID = snap.ConversationID
		t.turns = make(map[string]*turnState)
	}

	for i, turn := range snap.Turns {
		st, seen := t.turns[turn.ID]
		if !seen {
			st = &turnState{}
			t.turns[turn.ID] = st

			if turn.IsUser() {
				st.done = true
				// The user typed a live turn; only replayed ones are echoed.
				if !t.startsRequest(snap.Turns, i) {
					t.writeUser(turn)
				}
				continue
			}
			if turn.IsTerminal() {
				st.done = true
				t.writeAssistant(turn)
				continue
			}
		}
		if st.done {
			continue
		}
		t.progress(snap.Mode, turn, st)
	}
}

// startsRequest reports whether the user turn at i is followed by a
// placeholder that has not been seen yet.
func (t *Terminal) startsRequest(turns []model.Turn, i int) bool {
	if i+1 >= len(turns) {
		return false
	}
	next := turns[i+1]
	_, seen := t.turns[next.ID]
	return !seen && !next.IsUser() && !next.IsTerminal()
}

// progress writes whatever changed in a live assistant turn.
func (t *Terminal) progress(mode model.Mode, turn model.Turn, st *turnState) {
	if turn.IsLoadingPending && turn.Text == "" && turn.Reasoning == "" {
		if !st.status {
			fmt.Fprintln(t.out, Paint(t.styles.Status, t.statusText(mode)))
			st.status = true
		}
		// A reset placeholder after a failed stream starts over.
		if st.text != "" || st.reasoning != "" {
			io.WriteString(t.out, "\n")
			st.text, st.reasoning = "", ""
		}
		return
	}

	if t.opts.ShowReasoning && st.text == "" && turn.Text == "" {
		t.writeDelta(&st.reasoning, turn.Reasoning, &t.styles.Reasoning)
	}
	if turn.Text != "" {
		if st.text == "" && st.reasoning != "" {
			io.WriteString(t.out, "\n\n")
		}
		t.writeDelta(&st.text, turn.Text, nil)
	}

	if turn.IsTerminal() {
		if st.text != "" || st.reasoning != "" {
			io.WriteString(t.out, "\n")
		}
		t.writeMedia(turn)
		st.done = true
	}
}

// writeDelta writes the part of next that extends what was printed. If next
// does not extend it, next is written on a fresh line.
func (t *Terminal) writeDelta(printed *string, next string, style *lipgloss.Style) {
	if next == *printed {
		return
	}

	out := next
	if strings.HasPrefix(next, *printed) {
		out = next[len(*printed):]
	} else if *printed != "" {
		io.WriteString(t.out, "\n")
	}
	if style != nil {
		out = Paint(*style, out)
	}
	io.WriteString(t.out, out)
	*printed = next
}

func (t *Terminal) statusText(mode model.Mode) string {
	switch mode {
	case model.ModeImage:
		return t.loc.T(i18n.GeneratingImage)
	case model.ModeVideo:
		return t.loc.T(i18n.GeneratingVideo)
	default:
		return t.loc.T(i18n.Thinking)
	}
}

// =============================================================================
// REPLAY
// =============================================================================

// PrintTranscript writes every turn in full.
func (t *Terminal) PrintTranscript(turns []model.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, turn := range turns {
		if turn.IsUser() {
			t.writeUser(turn)
		} else {
			t.writeAssistant(turn)
		}
	}
}

func (t *Terminal) writeUser(turn model.Turn) {
	var sb strings.Builder
	sb.WriteString(t.styles.User.Render(t.loc.T(i18n.LabelUser) + ":"))
	if turn.Text != "" {
		sb.WriteString(" ")
		sb.WriteString(turn.Text)
	}
	if len(turn.AttachedImageData) > 0 {
		sb.WriteString(" ")
		sb.WriteString(t.styles.Muted.Render(t.loc.T(i18n.LabelImage)))
	}
	if turn.AttachedFileName != "" {
		sb.WriteString(" ")
		sb.WriteString(t.styles.Muted.Render(t.loc.T(i18n.LabelFile, turn.AttachedFileName)))
	}
	fmt.Fprintln(t.out, sb.String())
}

func (t *Terminal) writeAssistant(turn model.Turn) {
	fmt.Fprintln(t.out, t.styles.Assistant.Render(t.loc.T(i18n.LabelAssistant)+":"))
	if t.opts.ShowReasoning && turn.HasReasoning() {
		fmt.Fprintln(t.out, Paint(t.styles.Reasoning, turn.Reasoning))
		fmt.Fprintln(t.out)
	}
	if turn.Text != "" {
		fmt.Fprintln(t.out, strings.TrimRight(t.markdown(turn.Text), "\n"))
	}
	t.writeMedia(turn)
	fmt.Fprintln(t.out)
}

func (t *Terminal) markdown(text string) string {
	if t.md == nil {
		return text
	}
	rendered, err := t.md.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

func (t *Terminal) writeMedia(turn model.Turn) {
	for _, u := range turn.ImageURLs {
		fmt.Fprintln(t.out, t.styles.Link.Render(u))
	}
	if turn.VideoURL != "" {
		fmt.Fprintln(t.out, t.styles.Link.Render(turn.VideoURL))
	}
}
