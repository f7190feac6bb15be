// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who produced a turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// Role returns the provider chat role for the sender.
func (s Sender) Role() string {
	if s == SenderAssistant {
		return "assistant"
	}
	return "user"
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one message in the transcript.
//
// Assistant turns start life as a placeholder and are filled in by the
// session controller. Slices are always replaced wholesale, never mutated in
// place, so a copied Turn can be read without holding the transcript lock.
type Turn struct {
	// Identity
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	CreatedAt time.Time `json:"created_at"`

	// Content
	Text      string `json:"text"`
	Reasoning string `json:"reasoning,omitempty"`

	// Streaming state
	IsStreaming      bool `json:"is_streaming"`
	IsLoadingPending bool `json:"is_loading_pending"`

	// Generated media
	ImageURLs []string `json:"image_urls,omitempty"`
	VideoURL  string   `json:"video_url,omitempty"`

	// User attachments
	AttachedImageData []byte `json:"attached_image_data,omitempty"`
	AttachedFileName  string `json:"attached_file_name,omitempty"`
}

// NewUserTurn creates a user turn with optional attachments.
func NewUserTurn(text string, imageData []byte, fileName string) Turn {
	return Turn{
		ID:                NewID(),
		Sender:            SenderUser,
		CreatedAt:         time.Now(),
		Text:              text,
		AttachedImageData: cloneBytes(imageData),
		AttachedFileName:  fileName,
	}
}

// NewPlaceholder creates the assistant turn that a request fills in.
func NewPlaceholder() Turn {
	return Turn{
		ID:               NewID(),
		Sender:           SenderAssistant,
		CreatedAt:        time.Now(),
		IsStreaming:      true,
		IsLoadingPending: true,
	}
}

// NewID returns a fresh turn identifier.
func NewID() string {
	return uuid.NewString()
}

// IsUser returns true if the turn was sent by the user.
func (t Turn) IsUser() bool {
	return t.Sender == SenderUser
}

// IsTerminal returns true once neither streaming flag is set.
func (t Turn) IsTerminal() bool {
	return !t.IsStreaming && !t.IsLoadingPending
}

// HasReasoning returns true if the turn carries reasoning text.
func (t Turn) HasReasoning() bool {
	return t.Reasoning != ""
}

// Finish clears both streaming flags.
func (t *Turn) Finish() {
	t.IsStreaming = false
	t.IsLoadingPending = false
}

// Clone returns a deep copy of the turn.
func (t Turn) Clone() Turn {
	c := t
	c.ImageURLs = cloneStrings(t.ImageURLs)
	c.AttachedImageData = cloneBytes(t.AttachedImageData)
	return c
}

// ApproxSize estimates the stored size of the turn in bytes.
// Each turn carries a fixed overhead for its metadata.
func (t Turn) ApproxSize() int64 {
	size := int64(len(t.Text) + len(t.Reasoning) + len(t.VideoURL) + len(t.AttachedFileName))
	for _, u := range t.ImageURLs {
		size += int64(len(u))
	}
	size += int64(len(t.AttachedImageData))
	return size + turnOverhead
}

const turnOverhead = 128

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
