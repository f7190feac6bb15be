// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/jeranaias/glmchat/internal/i18n"
	"github.com/jeranaias/glmchat/internal/model"
	"github.com/jeranaias/glmchat/internal/tasks"
	"github.com/jeranaias/glmchat/internal/zhipu"
)

// =============================================================================
// CHAT
// =============================================================================

// handleChat answers a chat turn, streaming first when configured and
// falling back to an async task replayed through the typewriter.
func (s *Session) handleChat(ctx context.Context, user model.Turn, id string, att model.Attachments) error {
	content := ComposeContent(user.Text, att, s.loc)
	req := zhipu.ChatRequest{
		Model:       s.cfg.ChatModel,
		Messages:    BuildMessages(s.transcript.Before(user.ID), content),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}

	if s.cfg.StreamFirst {
		err := s.streamChat(ctx, req, id)
		if err == nil {
			return nil
		}
		if isCancellation(ctx, err) {
			s.finishCancelled(id, i18n.Cancelled)
			return context.Canceled
		}

		s.logger.Warn("streaming failed, falling back to async task", "error", err)
		s.update(id, func(t *model.Turn) {
			t.Text = ""
			t.Reasoning = ""
			t.IsStreaming = true
			t.IsLoadingPending = true
		})
	}

	err := s.pollChat(ctx, req, id)
	if err == nil {
		return nil
	}
	if isCancellation(ctx, err) {
		s.finishCancelled(id, i18n.Cancelled)
		return context.Canceled
	}
	s.finishError(id, err, i18n.PrefixChat)
	return err
}

// streamChat consumes the streaming endpoint into the placeholder.
// A stream that ends without content returns zhipu.ErrNoContent.
func (s *Session) streamChat(ctx context.Context, req zhipu.ChatRequest, id string) error {
	stream, err := s.provider.ChatStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	var reasoning strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			s.update(id, func(t *model.Turn) { t.Finish() })
			return nil
		}
		if err != nil {
			return err
		}

		if chunk.Reasoning != "" {
			reasoning.WriteString(chunk.Reasoning)
			trimmed := strings.TrimSpace(reasoning.String())
			s.update(id, func(t *model.Turn) {
				if trimmed != "" {
					t.Reasoning = trimmed
				}
				t.IsLoadingPending = false
			})
		}
		if chunk.Content != "" {
			delta := chunk.Content
			s.update(id, func(t *model.Turn) {
				t.Text += delta
				t.IsStreaming = true
				t.IsLoadingPending = false
			})
		}
	}
}

// pollChat submits the request as an async task, waits for it and replays
// the answer through the typewriter.
func (s *Session) pollChat(ctx context.Context, req zhipu.ChatRequest, id string) error {
	sub, err := s.provider.SubmitAsyncChat(ctx, req)
	if err != nil {
		return err
	}
	s.logger.Debug("async chat submitted", "task_id", sub.ID)

	res, err := s.poller.Poll(ctx, sub.ID, tasks.ExpectText)
	if err != nil {
		return err
	}

	if r := res.FirstReasoning(); r != "" {
		s.update(id, func(t *model.Turn) { t.Reasoning = r })
	}

	text := res.FirstContent()
	if text == "" {
		notice := s.loc.T(i18n.EmptyReply)
		s.update(id, func(t *model.Turn) {
			t.Text = notice
			t.Finish()
		})
		return nil
	}

	return s.typewriter.Animate(ctx, text, func(prefix string, done bool) {
		s.update(id, func(t *model.Turn) {
			t.Text = prefix
			t.IsStreaming = !done
			t.IsLoadingPending = false
		})
	})
}

// =============================================================================
// IMAGE
// =============================================================================

// handleImage generates images synchronously.
func (s *Session) handleImage(ctx context.Context, user model.Turn, id string) error {
	resp, err := s.provider.GenerateImage(ctx, zhipu.ImageRequest{
		Model:  s.cfg.ImageModel,
		Prompt: user.Text,
		Size:   s.cfg.ImageSize,
	})
	if err != nil {
		return s.finishFailed(ctx, id, err, i18n.ImageCancelled, i18n.PrefixImage)
	}

	urls := resp.URLs()
	if len(urls) == 0 {
		notice := s.loc.T(i18n.ImageNoLink)
		s.update(id, func(t *model.Turn) {
			t.Text = notice
			t.Finish()
		})
		return nil
	}

	done := s.loc.T(i18n.ImageDone)
	s.update(id, func(t *model.Turn) {
		t.Text = done
		t.ImageURLs = urls
		t.Finish()
	})
	return nil
}

// =============================================================================
// VIDEO
// =============================================================================

// handleVideo submits a video task and polls it to completion.
func (s *Session) handleVideo(ctx context.Context, user model.Turn, id string) error {
	sub, err := s.provider.SubmitVideo(ctx, zhipu.VideoRequest{
		Model:     s.cfg.VideoModel,
		Prompt:    user.Text,
		Quality:   s.cfg.VideoQuality,
		WithAudio: s.cfg.VideoWithAudio,
		Size:      s.cfg.VideoSize,
		FPS:       s.cfg.VideoFPS,
	})
	if err != nil {
		return s.finishFailed(ctx, id, err, i18n.VideoCancelled, i18n.PrefixVideo)
	}
	s.logger.Debug("video task submitted", "task_id", sub.ID)

	res, err := s.poller.Poll(ctx, sub.ID, tasks.ExpectMedia)
	if err != nil {
		return s.finishFailed(ctx, id, err, i18n.VideoCancelled, i18n.PrefixVideo)
	}

	url := res.FirstVideoURL()
	if url == "" {
		notice := s.loc.T(i18n.VideoNoLink)
		s.update(id, func(t *model.Turn) {
			t.Text = notice
			t.Finish()
		})
		return nil
	}

	s.update(id, func(t *model.Turn) {
		t.Text = ""
		t.VideoURL = url
		t.Finish()
	})
	return nil
}

// =============================================================================
// TERMINAL STATES
// =============================================================================

// finishFailed settles the placeholder as cancelled or failed depending on
// why err occurred, and returns the error to report.
func (s *Session) finishFailed(ctx context.Context, id string, err error, cancelled, prefix i18n.Key) error {
	if isCancellation(ctx, err) {
		s.finishCancelled(id, cancelled)
		return context.Canceled
	}
	s.finishError(id, err, prefix)
	return err
}

func (s *Session) finishCancelled(id string, key i18n.Key) {
	notice := s.loc.T(key)
	s.update(id, func(t *model.Turn) {
		t.Text = notice
		t.Finish()
	})
}

func (s *Session) finishError(id string, err error, prefix i18n.Key) {
	msg := FriendlyError(s.loc, err, prefix)
	s.update(id, func(t *model.Turn) {
		t.Text = msg
		t.Finish()
	})
}
