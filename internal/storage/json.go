// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/glmchat/internal/model"
	"github.com/jeranaias/glmchat/internal/util"
)

// =============================================================================
// JSON STORE
// =============================================================================

// JSONStore writes one JSON file per conversation.
type JSONStore struct {
	// BaseDir is the directory for storing conversations.
	BaseDir string

	maxBytes int64
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewJSONStore creates a store rooted at baseDir.
func NewJSONStore(baseDir string, maxBytes int64, logger *slog.Logger) (*JSONStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	return &JSONStore{BaseDir: baseDir, maxBytes: maxBytes, logger: logger}, nil
}

// Close is a no-op.
func (s *JSONStore) Close() error {
	return nil
}

// Save writes conv atomically, then evicts old conversations.
func (s *JSONStore) Save(conv model.Conversation) error {
	if err := validateID(conv.ID); err != nil {
		return err
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = time.Now()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.AtomicWriteFile(s.filePath(conv.ID), data, 0600); err != nil {
		return err
	}
	return s.evict(conv.ID)
}

func (s *JSONStore) evict(keepID string) error {
	metas, err := s.list()
	if err != nil {
		return err
	}
	for _, id := range evictionCandidates(metas, keepID, s.maxBytes) {
		s.logger.Info("evicting conversation", "id", id)
		if err := s.remove(id); err != nil && !errors.Is(err, ErrConversationNotFound) {
			return err
		}
	}
	return nil
}

// Load retrieves a conversation by ID.
func (s *JSONStore) Load(id string) (model.Conversation, error) {
	if err := validateID(id); err != nil {
		return model.Conversation{}, err
	}

	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Conversation{}, ErrConversationNotFound
		}
		return model.Conversation{}, err
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return model.Conversation{}, fmt.Errorf("corrupt conversation %s: %w", id, err)
	}
	return conv, nil
}

// List returns all saved conversations, most recent first.
func (s *JSONStore) List() ([]ConversationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *JSONStore) list() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	metas := []ConversationMeta{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		conv, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable conversation", "file", entry.Name(), "error", err)
			continue
		}
		metas = append(metas, metaOf(conv))
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Delete removes a conversation by ID.
func (s *JSONStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id)
}

func (s *JSONStore) remove(id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// Clear removes all saved conversations.
func (s *JSONStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			if err := os.Remove(filepath.Join(s.BaseDir, entry.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *JSONStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}
