// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/rivo/uniseg"
)

// DefaultTypewriterDelay is the pause between characters during replay.
const DefaultTypewriterDelay = 70 * time.Millisecond

// Typewriter replays text one grapheme cluster at a time.
type Typewriter struct {
	Delay time.Duration
}

// Animate calls write with each growing prefix of text, pausing Delay
// between characters. The final call has done set. Cancellation is checked
// before every character; on cancellation Animate returns the context error
// immediately and the last written prefix stays as it was.
func (tw Typewriter) Animate(ctx context.Context, text string, write func(prefix string, done bool)) error {
	var timer *time.Timer
	if tw.Delay > 0 {
		timer = time.NewTimer(tw.Delay)
		timer.Stop()
		defer timer.Stop()
	}

	var sb strings.Builder
	sb.Grow(len(text))
	g := uniseg.NewGraphemes(text)
	for first := true; g.Next(); first = false {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !first && timer != nil {
			timer.Reset(tw.Delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
		sb.WriteString(g.Str())
		write(sb.String(), false)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	write(sb.String(), true)
	return nil
}
