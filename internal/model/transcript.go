// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "sync"

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the ordered list of turns for one conversation.
// It is safe for concurrent use.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
	index map[string]int
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{index: make(map[string]int)}
}

// Append adds a turn at the end of the transcript.
func (tr *Transcript) Append(t Turn) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.index[t.ID] = len(tr.turns)
	tr.turns = append(tr.turns, t.Clone())
}

// Update applies fn to a copy of the turn with the given id and stores the
// result back. It returns the stored turn and false if the id is unknown.
func (tr *Transcript) Update(id string, fn func(*Turn)) (Turn, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	i, ok := tr.index[id]
	if !ok {
		return Turn{}, false
	}
	t := tr.turns[i].Clone()
	fn(&t)
	t.ID = id
	tr.turns[i] = t
	return t.Clone(), true
}

// Get returns a copy of the turn with the given id.
func (tr *Transcript) Get(id string) (Turn, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	i, ok := tr.index[id]
	if !ok {
		return Turn{}, false
	}
	return tr.turns[i].Clone(), true
}

// Turns returns a snapshot of all turns.
func (tr *Transcript) Turns() []Turn {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return cloneTurns(tr.turns)
}

// Before returns a snapshot of the turns strictly before the given id.
// Unknown ids yield the whole transcript.
func (tr *Transcript) Before(id string) []Turn {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	i, ok := tr.index[id]
	if !ok {
		return cloneTurns(tr.turns)
	}
	return cloneTurns(tr.turns[:i])
}

// Len returns the number of turns.
func (tr *Transcript) Len() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.turns)
}

// Reset replaces the transcript contents.
func (tr *Transcript) Reset(turns []Turn) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.turns = cloneTurns(turns)
	tr.index = make(map[string]int, len(turns))
	for i, t := range tr.turns {
		tr.index[t.ID] = i
	}
}

// FirstUserText returns the text of the first user turn, if any.
func (tr *Transcript) FirstUserText() string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	for _, t := range tr.turns {
		if t.IsUser() {
			return t.Text
		}
	}
	return ""
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t.Clone()
	}
	return out
}
