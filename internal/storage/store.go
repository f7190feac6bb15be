// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/glmchat/internal/model"
	"github.com/jeranaias/glmchat/internal/util"
)

// DefaultMaxBytes is the default size limit for all stored conversations.
const DefaultMaxBytes int64 = 100 * 1024 * 1024

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// PreviewRunes is the length previews are cut to.
const PreviewRunes = 80

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists conversations.
type Store interface {
	// Save inserts or replaces a conversation, then evicts old ones.
	Save(conv model.Conversation) error

	// Load returns a conversation or ErrConversationNotFound.
	Load(id string) (model.Conversation, error)

	// List returns metadata for all conversations, most recent first.
	List() ([]ConversationMeta, error)

	// Delete removes a conversation or returns ErrConversationNotFound.
	Delete(id string) error

	// Clear removes every conversation.
	Clear() error

	Close() error
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int       `json:"turn_count"`
	Size      int64     `json:"size"`
	Preview   string    `json:"preview"` // First user message truncated
}

// metaOf builds the listing metadata for conv.
func metaOf(conv model.Conversation) ConversationMeta {
	return ConversationMeta{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		TurnCount: len(conv.Turns),
		Size:      conv.ApproxSize(),
		Preview:   preview(conv.Turns),
	}
}

func preview(turns []model.Turn) string {
	for _, t := range turns {
		if t.IsUser() && strings.TrimSpace(t.Text) != "" {
			return util.TruncateRunes(util.OneLine(t.Text), PreviewRunes)
		}
	}
	return ""
}

// =============================================================================
// OPENING
// =============================================================================

// Options selects and configures a backend.
type Options struct {
	Backend  string // "sqlite" (default) or "json"
	Dir      string
	MaxBytes int64 // 0 means DefaultMaxBytes, negative disables eviction
	Logger   *slog.Logger
}

// Open creates the store described by opts.
func Open(opts Options) (Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendSQLite:
		return NewSQLiteStore(filepath.Join(opts.Dir, "conversations.db"), opts.MaxBytes, opts.Logger)
	case BackendJSON:
		return NewJSONStore(filepath.Join(opts.Dir, "conversations"), opts.MaxBytes, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// =============================================================================
// EVICTION
// =============================================================================

// evictionCandidates returns the ids to delete so that the remaining
// conversations fit in maxBytes. keepID is never returned.
func evictionCandidates(metas []ConversationMeta, keepID string, maxBytes int64) []string {
	if maxBytes <= 0 {
		return nil
	}

	var total int64
	for _, m := range metas {
		total += m.Size
	}
	if total <= maxBytes {
		return nil
	}

	oldest := make([]ConversationMeta, len(metas))
	copy(oldest, metas)
	sort.SliceStable(oldest, func(i, j int) bool {
		return oldest[i].UpdatedAt.Before(oldest[j].UpdatedAt)
	})

	var ids []string
	for _, m := range oldest {
		if total <= maxBytes {
			break
		}
		if m.ID == keepID {
			continue
		}
		ids = append(ids, m.ID)
		total -= m.Size
	}
	return ids
}

// =============================================================================
// SEARCH
// =============================================================================

// Search returns the metas whose title or preview contains query,
// case-insensitively.
func Search(metas []ConversationMeta, query string) []ConversationMeta {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return metas
	}

	var results []ConversationMeta
	for _, meta := range metas {
		if strings.Contains(strings.ToLower(meta.Title), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}
	return results
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrInvalidID is returned for ids that cannot name a stored conversation.
var ErrInvalidID = &ConversationError{Message: "invalid conversation id"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func validateID(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
