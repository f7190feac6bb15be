// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package zhipu

import "strings"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message is a single chat message in provider format.
type Message struct {
	Role    string `json:"role"`    // "user", "assistant" or "system"
	Content string `json:"content"` // The message content
}

// ChatRequest is the body for streaming and async chat completions.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// ImageRequest is the body for synchronous image generation.
type ImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

// VideoRequest is the body for asynchronous video generation.
type VideoRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Quality   string `json:"quality,omitempty"`
	WithAudio bool   `json:"with_audio,omitempty"`
	Size      string `json:"size,omitempty"`
	FPS       int    `json:"fps,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// TaskSubmission is returned when an asynchronous task is accepted.
type TaskSubmission struct {
	ID         string `json:"id"`
	TaskStatus string `json:"task_status"`
	Model      string `json:"model,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// ContentFilter reports a moderation decision attached to a response.
type ContentFilter struct {
	Role  string `json:"role,omitempty"`
	Level int    `json:"level,omitempty"`
}

// ImageData is one generated image.
type ImageData struct {
	URL string `json:"url"`
}

// ImageResponse is the body of a synchronous image generation response.
type ImageResponse struct {
	Created       int64           `json:"created"`
	Data          []ImageData     `json:"data"`
	ContentFilter []ContentFilter `json:"content_filter,omitempty"`
}

// URLs returns the non-empty image URLs in order.
func (r *ImageResponse) URLs() []string {
	var urls []string
	for _, d := range r.Data {
		if u := strings.TrimSpace(d.URL); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// ResultMessage is the message inside a completed async chat choice.
type ResultMessage struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// ResultChoice is one choice of a completed async chat task.
type ResultChoice struct {
	Index        int           `json:"index"`
	Message      ResultMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// VideoResult is one generated video.
type VideoResult struct {
	URL           string `json:"url"`
	CoverImageURL string `json:"cover_image_url,omitempty"`
}

// AsyncResult is the body of an async result lookup.
type AsyncResult struct {
	ID            string          `json:"id"`
	TaskStatus    string          `json:"task_status,omitempty"`
	Model         string          `json:"model,omitempty"`
	Choices       []ResultChoice  `json:"choices,omitempty"`
	VideoResult   []VideoResult   `json:"video_result,omitempty"`
	ContentFilter []ContentFilter `json:"content_filter,omitempty"`
}

// Task status values reported by the provider.
const (
	StatusProcessing = "PROCESSING"
	StatusPending    = "PENDING"
	StatusQueued     = "QUEUED"
	StatusSuccess    = "SUCCESS"
	StatusFail       = "FAIL"
)

// Status returns the upper-cased, trimmed task status.
func (r *AsyncResult) Status() string {
	return strings.ToUpper(strings.TrimSpace(r.TaskStatus))
}

// FirstContent returns the trimmed content of the first choice.
func (r *AsyncResult) FirstContent() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}

// FirstReasoning returns the trimmed reasoning of the first choice.
func (r *AsyncResult) FirstReasoning() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.ReasoningContent)
}

// FirstVideoURL returns the first non-empty video URL.
func (r *AsyncResult) FirstVideoURL() string {
	for _, v := range r.VideoResult {
		if u := strings.TrimSpace(v.URL); u != "" {
			return u
		}
	}
	return ""
}

// HasChoices returns true if the result carries at least one choice.
func (r *AsyncResult) HasChoices() bool {
	return len(r.Choices) > 0
}

// HasMedia returns true if the result carries at least one video.
func (r *AsyncResult) HasMedia() bool {
	return len(r.VideoResult) > 0
}
