// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/glmchat/internal/attach"
	"github.com/jeranaias/glmchat/internal/i18n"
	"github.com/jeranaias/glmchat/internal/model"
	"github.com/jeranaias/glmchat/internal/tasks"
	"github.com/jeranaias/glmchat/internal/zhipu"
)

// =============================================================================
// FAKES
// =============================================================================

// fakeProvider scripts provider behaviour per test.
type fakeProvider struct {
	mu sync.Mutex

	stream   func(ctx context.Context, req zhipu.ChatRequest) (*zhipu.ChatStream, error)
	submit   func(ctx context.Context, req zhipu.ChatRequest) (*zhipu.TaskSubmission, error)
	video    func(ctx context.Context, req zhipu.VideoRequest) (*zhipu.TaskSubmission, error)
	image    func(ctx context.Context, req zhipu.ImageRequest) (*zhipu.ImageResponse, error)
	fetch    func(ctx context.Context, taskID string) (*zhipu.AsyncResult, error)
	requests []zhipu.ChatRequest
	fetches  int
}

func (p *fakeProvider) ChatStream(ctx context.Context, req zhipu.ChatRequest) (*zhipu.ChatStream, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	fn := p.stream
	p.mu.Unlock()
	if fn == nil {
		return nil, errors.New("stream not scripted")
	}
	return fn(ctx, req)
}

func (p *fakeProvider) SubmitAsyncChat(ctx context.Context, req zhipu.ChatRequest) (*zhipu.TaskSubmission, error) {
	p.mu.Lock()
	fn := p.submit
	p.mu.Unlock()
	if fn == nil {
		return nil, errors.New("submit not scripted")
	}
	return fn(ctx, req)
}

func (p *fakeProvider) SubmitVideo(ctx context.Context, req zhipu.VideoRequest) (*zhipu.TaskSubmission, error) {
	return p.video(ctx, req)
}

func (p *fakeProvider) GenerateImage(ctx context.Context, req zhipu.ImageRequest) (*zhipu.ImageResponse, error) {
	return p.image(ctx, req)
}

func (p *fakeProvider) FetchAsyncResult(ctx context.Context, taskID string) (*zhipu.AsyncResult, error) {
	p.mu.Lock()
	p.fetches++
	fn := p.fetch
	p.mu.Unlock()
	return fn(ctx, taskID)
}

func (p *fakeProvider) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

func (p *fakeProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakeProvider) lastRequest() zhipu.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

// sse builds an event-stream body from content deltas.
func sse(deltas ...string) io.ReadCloser {
	var sb strings.Builder
	for _, d := range deltas {
		fmt.Fprintf(&sb, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
	}
	sb.WriteString("data: [DONE]\n\n")
	return io.NopCloser(strings.NewReader(sb.String()))
}

func streamOf(deltas ...string) func(context.Context, zhipu.ChatRequest) (*zhipu.ChatStream, error) {
	return func(ctx context.Context, _ zhipu.ChatRequest) (*zhipu.ChatStream, error) {
		return zhipu.NewChatStream(ctx, sse(deltas...)), nil
	}
}

// blockingStream never delivers a chunk until ctx is cancelled.
func blockingStream(ctx context.Context, _ zhipu.ChatRequest) (*zhipu.ChatStream, error) {
	pr, _ := io.Pipe()
	return zhipu.NewChatStream(ctx, pr), nil
}

type memoryStore struct {
	mu    sync.Mutex
	convs map[string]model.Conversation
	saves int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{convs: make(map[string]model.Conversation)}
}

func (m *memoryStore) Save(conv model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.convs[conv.ID] = conv
	return nil
}

func (m *memoryStore) Load(id string) (model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok {
		return model.Conversation{}, fmt.Errorf("conversation %s not found", id)
	}
	return conv, nil
}

func (m *memoryStore) get(id string) (model.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	return conv, ok
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) Render(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

type staticContext struct {
	fc attach.FileContext
	ok bool
}

func (c staticContext) CurrentFile() (attach.FileContext, bool) { return c.fc, c.ok }

func newTestSession(p *fakeProvider) *Session {
	cfg := DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.PollTimeout = 2 * time.Second
	cfg.TypewriterDelay = 0
	cfg.Localizer = i18n.New("zh")
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSession(p, cfg)
}

func lastTurn(t *testing.T, s *Session) model.Turn {
	t.Helper()
	turns := s.Turns()
	require.NotEmpty(t, turns)
	return turns[len(turns)-1]
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_EmptyIsNoop(t *testing.T) {
	s := newTestSession(&fakeProvider{})

	assert.False(t, s.Submit("   ", model.Attachments{}))
	assert.Empty(t, s.Turns())
	assert.False(t, s.IsSending())
}

func TestSubmit_AppendsUserAndPlaceholder(t *testing.T) {
	p := &fakeProvider{stream: blockingStream}
	s := newTestSession(p)
	defer func() {
		s.Cancel()
		s.Wait()
	}()

	require.True(t, s.Submit("  hello  ", model.Attachments{}))

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, model.SenderUser, turns[0].Sender)
	assert.Equal(t, "hello", turns[0].Text)
	assert.Equal(t, model.SenderAssistant, turns[1].Sender)
	assert.Equal(t, "", turns[1].Text)
	assert.True(t, turns[1].IsStreaming)
	assert.True(t, s.IsSending())
}

func TestSubmit_AttachmentOnly(t *testing.T) {
	p := &fakeProvider{stream: streamOf("ok")}
	s := newTestSession(p)

	att := model.Attachments{FileName: "notes.txt", FileSummary: "line one"}
	require.True(t, s.Submit("", att))
	s.Wait()

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "notes.txt", turns[0].AttachedFileName)

	req := p.lastRequest()
	content := req.Messages[len(req.Messages)-1].Content
	assert.Contains(t, content, "notes.txt")
	assert.Contains(t, content, "line one")
}

func TestSubmit_StreamReassemblesContent(t *testing.T) {
	p := &fakeProvider{stream: streamOf("Hel", "lo")}
	s := newTestSession(p)

	require.True(t, s.Submit("hi", model.Attachments{}))
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, "Hello", last.Text)
	assert.Equal(t, "", last.Reasoning)
	assert.False(t, last.IsStreaming)
	assert.False(t, last.IsLoadingPending)
	assert.False(t, s.IsSending())
	assert.NoError(t, s.Err())
}

func TestSubmit_StreamReasoningIsTrimmed(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"  think \"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"answer\"}}]}\n\n" +
		"data: [DONE]\n\n"
	p := &fakeProvider{stream: func(ctx context.Context, _ zhipu.ChatRequest) (*zhipu.ChatStream, error) {
		return zhipu.NewChatStream(ctx, io.NopCloser(strings.NewReader(body))), nil
	}}
	s := newTestSession(p)

	s.Submit("why", model.Attachments{})
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, "answer", last.Text)
	assert.Equal(t, "think", last.Reasoning)
}

func TestSubmit_HistoryIsSent(t *testing.T) {
	p := &fakeProvider{stream: streamOf("first answer")}
	s := newTestSession(p)

	s.Submit("first", model.Attachments{})
	s.Wait()
	s.Submit("second", model.Attachments{})
	s.Wait()

	req := p.lastRequest()
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "first", req.Messages[0].Content)
	assert.Equal(t, "assistant", req.Messages[1].Role)
	assert.Equal(t, "first answer", req.Messages[1].Content)
	assert.Equal(t, "second", req.Messages[2].Content)
	assert.Equal(t, zhipu.DefaultChatModel, req.Model)
}

func TestSubmit_ClearsSelection(t *testing.T) {
	p := &fakeProvider{stream: streamOf("ok")}
	s := newTestSession(p)

	s.Select(model.Attachments{FileName: "a.go", FileSummary: "package a"})
	s.Submit("look", s.Selected())
	s.Wait()

	assert.True(t, s.Selected().IsEmpty())
}

func TestSubmit_LastSubmitWins(t *testing.T) {
	p := &fakeProvider{stream: blockingStream}
	s := newTestSession(p)
	loc := s.Localizer()

	s.Submit("first", model.Attachments{})
	require.Eventually(t, func() bool { return p.requestCount() == 1 }, time.Second, time.Millisecond)

	p.mu.Lock()
	p.stream = streamOf("second answer")
	p.mu.Unlock()
	s.Submit("second", model.Attachments{})
	s.Wait()

	turns := s.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, "first", turns[0].Text)
	assert.Equal(t, loc.T(i18n.Cancelled), turns[1].Text)
	assert.True(t, turns[1].IsTerminal())
	assert.Equal(t, "second", turns[2].Text)
	assert.Equal(t, "second answer", turns[3].Text)
	assert.False(t, s.IsSending())
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_IdleIsNoop(t *testing.T) {
	p := &fakeProvider{stream: streamOf("done")}
	s := newTestSession(p)
	s.Submit("hi", model.Attachments{})
	s.Wait()
	before := s.Turns()

	s.Cancel()
	s.Cancel()

	assert.Equal(t, before, s.Turns())
	assert.False(t, s.IsSending())
}

func TestCancel_StreamingChat(t *testing.T) {
	p := &fakeProvider{
		stream: blockingStream,
		submit: func(context.Context, zhipu.ChatRequest) (*zhipu.TaskSubmission, error) {
			t.Error("fallback must not run after cancellation")
			return nil, errors.New("unexpected")
		},
	}
	s := newTestSession(p)

	s.Submit("hi", model.Attachments{})
	require.Eventually(t, func() bool { return p.requestCount() == 1 }, time.Second, time.Millisecond)
	s.Cancel()
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, s.Localizer().T(i18n.Cancelled), last.Text)
	assert.False(t, last.IsStreaming)
	assert.False(t, last.IsLoadingPending)
	assert.False(t, s.IsSending())
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestCancel_VideoPolling(t *testing.T) {
	p := &fakeProvider{
		video: func(context.Context, zhipu.VideoRequest) (*zhipu.TaskSubmission, error) {
			return &zhipu.TaskSubmission{ID: "t1"}, nil
		},
		fetch: func(context.Context, string) (*zhipu.AsyncResult, error) {
			return &zhipu.AsyncResult{TaskStatus: zhipu.StatusProcessing}, nil
		},
	}
	s := newTestSession(p)
	s.SetMode(model.ModeVideo)

	s.Submit("a cat", model.Attachments{})
	require.Eventually(t, func() bool { return p.fetchCount() >= 1 }, time.Second, time.Millisecond)
	s.Cancel()
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, s.Localizer().T(i18n.VideoCancelled), last.Text)
	assert.True(t, last.IsTerminal())
	assert.False(t, s.IsSending())
}

// =============================================================================
// FALLBACK
// =============================================================================

func TestChat_FallsBackToPolling(t *testing.T) {
	var submitted zhipu.ChatRequest
	p := &fakeProvider{
		stream: streamOf(), // [DONE] only
		submit: func(_ context.Context, req zhipu.ChatRequest) (*zhipu.TaskSubmission, error) {
			submitted = req
			return &zhipu.TaskSubmission{ID: "t1"}, nil
		},
		fetch: func(_ context.Context, id string) (*zhipu.AsyncResult, error) {
			assert.Equal(t, "t1", id)
			return &zhipu.AsyncResult{
				TaskStatus: zhipu.StatusSuccess,
				Choices: []zhipu.ResultChoice{{
					Message: zhipu.ResultMessage{Content: "hi there", ReasoningContent: "because"},
				}},
			}, nil
		},
	}
	s := newTestSession(p)

	s.Submit("hello", model.Attachments{})
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, "hi there", last.Text)
	assert.Equal(t, "because", last.Reasoning)
	assert.False(t, last.IsStreaming)
	assert.False(t, last.IsLoadingPending)
	assert.False(t, submitted.Stream)
	assert.Equal(t, "hello", submitted.Messages[len(submitted.Messages)-1].Content)
}

func TestChat_NoStreamGoesStraightToPolling(t *testing.T) {
	p := &fakeProvider{
		submit: func(context.Context, zhipu.ChatRequest) (*zhipu.TaskSubmission, error) {
			return &zhipu.TaskSubmission{ID: "t1"}, nil
		},
		fetch: func(context.Context, string) (*zhipu.AsyncResult, error) {
			return &zhipu.AsyncResult{
				TaskStatus: zhipu.StatusSuccess,
				Choices:    []zhipu.ResultChoice{{Message: zhipu.ResultMessage{Content: "polled"}}},
			}, nil
		},
	}
	cfg := DefaultConfig()
	cfg.StreamFirst = false
	cfg.PollInterval = 5 * time.Millisecond
	cfg.TypewriterDelay = 0
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSession(p, cfg)

	s.Submit("hello", model.Attachments{})
	s.Wait()

	assert.Equal(t, "polled", lastTurn(t, s).Text)
	assert.Zero(t, p.requestCount())
}

func TestChat_EmptyPolledReply(t *testing.T) {
	p := &fakeProvider{
		stream: streamOf(),
		submit: func(context.Context, zhipu.ChatRequest) (*zhipu.TaskSubmission, error) {
			return &zhipu.TaskSubmission{ID: "t1"}, nil
		},
		fetch: func(context.Context, string) (*zhipu.AsyncResult, error) {
			return &zhipu.AsyncResult{TaskStatus: zhipu.StatusSuccess}, nil
		},
	}
	s := newTestSession(p)

	s.Submit("hello", model.Attachments{})
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, s.Localizer().T(i18n.EmptyReply), last.Text)
	assert.True(t, last.IsTerminal())
}

func TestChat_PollTimeout(t *testing.T) {
	p := &fakeProvider{
		stream: streamOf(),
		submit: func(context.Context, zhipu.ChatRequest) (*zhipu.TaskSubmission, error) {
			return &zhipu.TaskSubmission{ID: "t1"}, nil
		},
		fetch: func(context.Context, string) (*zhipu.AsyncResult, error) {
			return &zhipu.AsyncResult{TaskStatus: zhipu.StatusProcessing}, nil
		},
	}
	s := newTestSession(p)
	s.poller.WithTimeout(30 * time.Millisecond)

	s.Submit("hello", model.Attachments{})
	s.Wait()

	loc := s.Localizer()
	last := lastTurn(t, s)
	assert.Equal(t, FriendlyError(loc, tasks.ErrTimeout, i18n.PrefixChat), last.Text)
	assert.True(t, last.IsTerminal())
}

func TestChat_MissingKeyRendersLocalizedError(t *testing.T) {
	p := &fakeProvider{
		stream: func(context.Context, zhipu.ChatRequest) (*zhipu.ChatStream, error) {
			return nil, zhipu.ErrMissingAPIKey
		},
		submit: func(context.Context, zhipu.ChatRequest) (*zhipu.TaskSubmission, error) {
			return nil, zhipu.ErrMissingAPIKey
		},
	}
	s := newTestSession(p)

	s.Submit("hello", model.Attachments{})
	s.Wait()

	loc := s.Localizer()
	last := lastTurn(t, s)
	assert.Equal(t, loc.Join(loc.T(i18n.PrefixChat), loc.T(i18n.MissingAPIKey)), last.Text)
	assert.False(t, last.IsStreaming)
	assert.False(t, s.IsSending())
}

// =============================================================================
// IMAGE / VIDEO
// =============================================================================

func TestImage_Success(t *testing.T) {
	var got zhipu.ImageRequest
	p := &fakeProvider{image: func(_ context.Context, req zhipu.ImageRequest) (*zhipu.ImageResponse, error) {
		got = req
		return &zhipu.ImageResponse{Data: []zhipu.ImageData{{URL: "https://x/1.png"}, {URL: " "}}}, nil
	}}
	s := newTestSession(p)
	s.SetMode(model.ModeImage)

	s.Submit("a red fox", model.Attachments{})
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, s.Localizer().T(i18n.ImageDone), last.Text)
	assert.Equal(t, []string{"https://x/1.png"}, last.ImageURLs)
	assert.True(t, last.IsTerminal())
	assert.Equal(t, "a red fox", got.Prompt)
	assert.Equal(t, "1024x1024", got.Size)
}

func TestImage_NoLink(t *testing.T) {
	p := &fakeProvider{image: func(context.Context, zhipu.ImageRequest) (*zhipu.ImageResponse, error) {
		return &zhipu.ImageResponse{}, nil
	}}
	s := newTestSession(p)
	s.SetMode(model.ModeImage)

	s.Submit("a red fox", model.Attachments{})
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, s.Localizer().T(i18n.ImageNoLink), last.Text)
	assert.Empty(t, last.ImageURLs)
}

func TestImage_HTTPError(t *testing.T) {
	httpErr := &zhipu.HTTPError{StatusCode: 500, Body: "boom"}
	p := &fakeProvider{image: func(context.Context, zhipu.ImageRequest) (*zhipu.ImageResponse, error) {
		return nil, httpErr
	}}
	s := newTestSession(p)
	s.SetMode(model.ModeImage)

	s.Submit("a red fox", model.Attachments{})
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, FriendlyError(s.Localizer(), httpErr, i18n.PrefixImage), last.Text)
	assert.Contains(t, last.Text, "500")
	assert.Contains(t, last.Text, "boom")
}

func TestErr_TracksLastRequest(t *testing.T) {
	httpErr := &zhipu.HTTPError{StatusCode: 401, Body: "bad key"}
	fail := true
	p := &fakeProvider{image: func(context.Context, zhipu.ImageRequest) (*zhipu.ImageResponse, error) {
		if fail {
			return nil, httpErr
		}
		return &zhipu.ImageResponse{Data: []zhipu.ImageData{{URL: "https://x/fox.png"}}}, nil
	}}
	s := newTestSession(p)
	s.SetMode(model.ModeImage)
	assert.NoError(t, s.Err())

	s.Submit("a red fox", model.Attachments{})
	s.Wait()

	var got *zhipu.HTTPError
	require.ErrorAs(t, s.Err(), &got)
	assert.Equal(t, 401, got.StatusCode)

	fail = false
	s.Submit("a red fox", model.Attachments{})
	s.Wait()
	assert.NoError(t, s.Err())
}

func TestVideo_PollsUntilSuccess(t *testing.T) {
	var got zhipu.VideoRequest
	p := &fakeProvider{
		video: func(_ context.Context, req zhipu.VideoRequest) (*zhipu.TaskSubmission, error) {
			got = req
			return &zhipu.TaskSubmission{ID: "t1"}, nil
		},
	}
	p.fetch = func(context.Context, string) (*zhipu.AsyncResult, error) {
		if p.fetchCount() < 2 {
			return &zhipu.AsyncResult{TaskStatus: zhipu.StatusProcessing}, nil
		}
		return &zhipu.AsyncResult{
			TaskStatus:  zhipu.StatusSuccess,
			VideoResult: []zhipu.VideoResult{{URL: "https://x/v.mp4"}},
		}, nil
	}
	s := newTestSession(p)
	s.SetMode(model.ModeVideo)

	s.Submit("a cat", model.Attachments{})
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, "https://x/v.mp4", last.VideoURL)
	assert.Equal(t, "", last.Text)
	assert.True(t, last.IsTerminal())
	assert.Equal(t, 2, p.fetchCount())
	assert.Equal(t, "a cat", got.Prompt)
	assert.Equal(t, 30, got.FPS)
	assert.True(t, got.WithAudio)
}

func TestVideo_TerminalWithoutMedia(t *testing.T) {
	p := &fakeProvider{
		video: func(context.Context, zhipu.VideoRequest) (*zhipu.TaskSubmission, error) {
			return &zhipu.TaskSubmission{ID: "t1"}, nil
		},
		fetch: func(context.Context, string) (*zhipu.AsyncResult, error) {
			return &zhipu.AsyncResult{TaskStatus: zhipu.StatusFail}, nil
		},
	}
	s := newTestSession(p)
	s.SetMode(model.ModeVideo)

	s.Submit("a cat", model.Attachments{})
	s.Wait()

	last := lastTurn(t, s)
	assert.Equal(t, s.Localizer().T(i18n.VideoNoLink), last.Text)
	assert.Equal(t, 1, p.fetchCount())
}

// =============================================================================
// RENDERING AND PERSISTENCE
// =============================================================================

func TestRenderer_SeesLifecycle(t *testing.T) {
	p := &fakeProvider{stream: streamOf("a", "b")}
	s := newTestSession(p)
	rec := &recorder{}
	s.AddRenderer(rec)

	s.Submit("hi", model.Attachments{})
	s.Wait()

	snaps := rec.all()
	require.GreaterOrEqual(t, len(snaps), 3)
	assert.Empty(t, snaps[0].Turns)

	sawSending := false
	for _, snap := range snaps {
		if snap.Sending {
			sawSending = true
		}
	}
	assert.True(t, sawSending)

	final := snaps[len(snaps)-1]
	assert.False(t, final.Sending)
	last, ok := final.Last()
	require.True(t, ok)
	assert.Equal(t, "ab", last.Text)
}

func TestPersistence_SavesOnSubmitAndFinish(t *testing.T) {
	p := &fakeProvider{stream: streamOf("answer")}
	store := newMemoryStore()
	s := newTestSession(p)
	s.SetStore(store)

	s.Submit("hello world", model.Attachments{})
	s.Wait()

	conv, ok := store.get(s.ConversationID())
	require.True(t, ok)
	assert.Equal(t, "hello world", conv.Title)
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, "answer", conv.Turns[1].Text)
	assert.True(t, conv.Turns[1].IsTerminal())
	assert.GreaterOrEqual(t, store.saves, 2)
}

func TestLoad_SettlesUnfinishedTurns(t *testing.T) {
	store := newMemoryStore()
	user := model.NewUserTurn("hi", nil, "")
	pending := model.NewPlaceholder()
	require.NoError(t, store.Save(model.Conversation{
		ID:    "c1",
		Title: "hi",
		Turns: []model.Turn{user, pending},
	}))

	s := newTestSession(&fakeProvider{})
	s.SetStore(store)
	require.NoError(t, s.Load("c1"))

	assert.Equal(t, "c1", s.ConversationID())
	last := lastTurn(t, s)
	assert.Equal(t, s.Localizer().T(i18n.Cancelled), last.Text)
	assert.True(t, last.IsTerminal())

	assert.Error(t, s.Load("missing"))
}

func TestLoad_WithoutStore(t *testing.T) {
	s := newTestSession(&fakeProvider{})
	assert.Error(t, s.Load("c1"))
}

func TestNewConversation_ResetsTranscript(t *testing.T) {
	p := &fakeProvider{stream: streamOf("x")}
	s := newTestSession(p)
	s.Submit("hi", model.Attachments{})
	s.Wait()
	oldID := s.ConversationID()

	s.NewConversation()

	assert.Empty(t, s.Turns())
	assert.NotEqual(t, oldID, s.ConversationID())
}

func TestAttachEditorContext(t *testing.T) {
	s := newTestSession(&fakeProvider{})

	_, ok := s.AttachEditorContext()
	assert.False(t, ok)

	s.Select(model.Attachments{ImageData: []byte{1, 2}})
	s.SetContextProvider(staticContext{
		fc: attach.FileContext{Name: "main.go", Summary: "package main", Path: "/src/main.go"},
		ok: true,
	})
	fc, ok := s.AttachEditorContext()
	require.True(t, ok)
	assert.Equal(t, "main.go", fc.Name)

	sel := s.Selected()
	assert.Equal(t, []byte{1, 2}, sel.ImageData)
	assert.Equal(t, "main.go", sel.FileName)
	assert.Equal(t, "/src/main.go", sel.FilePath)
}
