// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/glmchat/internal/model"
)

// schemaSQL creates the conversation tables.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL, -- Unix nanoseconds
    updated_at INTEGER NOT NULL, -- Unix nanoseconds
    size INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);

CREATE TABLE IF NOT EXISTS turns (
    conversation_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    id TEXT NOT NULL,
    sender TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    text TEXT NOT NULL,
    reasoning TEXT NOT NULL,
    is_streaming INTEGER NOT NULL,
    is_loading_pending INTEGER NOT NULL,
    image_urls TEXT,            -- JSON array
    video_url TEXT NOT NULL,
    attached_image BLOB,
    attached_file_name TEXT NOT NULL,
    PRIMARY KEY (conversation_id, position),
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);
`

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore keeps conversations in a SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	maxBytes int64
	logger   *slog.Logger

	// mu serializes save-then-evict sequences.
	mu sync.Mutex
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string, maxBytes int64, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, maxBytes: maxBytes, logger: logger}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE
// =============================================================================

// Save replaces the stored copy of conv in one transaction.
func (s *SQLiteStore) Save(conv model.Conversation) error {
	if err := validateID(conv.ID); err != nil {
		return err
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = time.Now()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(conv); err != nil {
		return err
	}
	return s.evict(conv.ID)
}

func (s *SQLiteStore) write(conv model.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO conversations (id, title, created_at, updated_at, size)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			size = excluded.size`,
		conv.ID, conv.Title, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano(), conv.ApproxSize())
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM turns WHERE conversation_id = ?", conv.ID); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO turns (conversation_id, position, id, sender, created_at, text, reasoning,
			is_streaming, is_loading_pending, image_urls, video_url, attached_image, attached_file_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range conv.Turns {
		urls, err := encodeURLs(t.ImageURLs)
		if err != nil {
			return err
		}
		_, err = stmt.Exec(conv.ID, i, t.ID, string(t.Sender), t.CreatedAt.UnixNano(), t.Text, t.Reasoning,
			t.IsStreaming, t.IsLoadingPending, urls, t.VideoURL, t.AttachedImageData, t.AttachedFileName)
		if err != nil {
			return fmt.Errorf("failed to save turn %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) evict(keepID string) error {
	metas, err := s.List()
	if err != nil {
		return err
	}
	for _, id := range evictionCandidates(metas, keepID, s.maxBytes) {
		s.logger.Info("evicting conversation", "id", id)
		if err := s.Delete(id); err != nil && !errors.Is(err, ErrConversationNotFound) {
			return err
		}
	}
	return nil
}

// =============================================================================
// LOAD AND LIST
// =============================================================================

// Load reads a conversation and its turns.
func (s *SQLiteStore) Load(id string) (model.Conversation, error) {
	var (
		conv             model.Conversation
		created, updated int64
	)
	err := s.db.QueryRow(
		"SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?", id,
	).Scan(&conv.ID, &conv.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.CreatedAt = fromNanos(created)
	conv.UpdatedAt = fromNanos(updated)

	rows, err := s.db.Query(`
		SELECT id, sender, created_at, text, reasoning, is_streaming, is_loading_pending,
			image_urls, video_url, attached_image, attached_file_name
		FROM turns WHERE conversation_id = ? ORDER BY position`, id)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t       model.Turn
			sender  string
			at      int64
			urls    sql.NullString
			imgData []byte
		)
		if err := rows.Scan(&t.ID, &sender, &at, &t.Text, &t.Reasoning, &t.IsStreaming, &t.IsLoadingPending,
			&urls, &t.VideoURL, &imgData, &t.AttachedFileName); err != nil {
			return model.Conversation{}, fmt.Errorf("failed to read turn: %w", err)
		}
		t.Sender = model.Sender(sender)
		t.CreatedAt = fromNanos(at)
		if t.ImageURLs, err = decodeURLs(urls); err != nil {
			return model.Conversation{}, err
		}
		if len(imgData) > 0 {
			t.AttachedImageData = imgData
		}
		conv.Turns = append(conv.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return model.Conversation{}, fmt.Errorf("failed to read turns: %w", err)
	}
	return conv, nil
}

// List returns metadata for all conversations, most recent first.
func (s *SQLiteStore) List() ([]ConversationMeta, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.title, c.created_at, c.updated_at, c.size,
			(SELECT COUNT(*) FROM turns t WHERE t.conversation_id = c.id),
			COALESCE((SELECT t.text FROM turns t
				WHERE t.conversation_id = c.id AND t.sender = 'user' AND TRIM(t.text) != ''
				ORDER BY t.position LIMIT 1), '')
		FROM conversations c
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	metas := []ConversationMeta{}
	for rows.Next() {
		var (
			m                ConversationMeta
			created, updated int64
			first            string
		)
		if err := rows.Scan(&m.ID, &m.Title, &created, &updated, &m.Size, &m.TurnCount, &first); err != nil {
			return nil, fmt.Errorf("failed to read conversation: %w", err)
		}
		m.CreatedAt = fromNanos(created)
		m.UpdatedAt = fromNanos(updated)
		m.Preview = preview([]model.Turn{{Sender: model.SenderUser, Text: first}})
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a conversation and its turns.
func (s *SQLiteStore) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM turns WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	res, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrConversationNotFound
	}
	return tx.Commit()
}

// Clear removes all conversations.
func (s *SQLiteStore) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM turns"); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM conversations"); err != nil {
		return fmt.Errorf("failed to clear conversations: %w", err)
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func encodeURLs(urls []string) (any, error) {
	if urls == nil {
		return nil, nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image urls: %w", err)
	}
	return string(data), nil
}

func decodeURLs(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(s.String), &urls); err != nil {
		return nil, fmt.Errorf("failed to decode image urls: %w", err)
	}
	return urls, nil
}
