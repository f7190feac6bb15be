// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/glmchat/internal/attach"
	"github.com/jeranaias/glmchat/internal/i18n"
	"github.com/jeranaias/glmchat/internal/model"
	"github.com/jeranaias/glmchat/internal/tasks"
	"github.com/jeranaias/glmchat/internal/zhipu"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Provider is the set of provider operations a session uses.
// *zhipu.Client implements it.
type Provider interface {
	ChatStream(ctx context.Context, req zhipu.ChatRequest) (*zhipu.ChatStream, error)
	SubmitAsyncChat(ctx context.Context, req zhipu.ChatRequest) (*zhipu.TaskSubmission, error)
	SubmitVideo(ctx context.Context, req zhipu.VideoRequest) (*zhipu.TaskSubmission, error)
	GenerateImage(ctx context.Context, req zhipu.ImageRequest) (*zhipu.ImageResponse, error)
	FetchAsyncResult(ctx context.Context, taskID string) (*zhipu.AsyncResult, error)
}

// Store persists conversations. Implementations apply their eviction
// policy after each save.
type Store interface {
	Save(conv model.Conversation) error
	Load(id string) (model.Conversation, error)
}

// ContextProvider reports the file currently open in the user's editor.
type ContextProvider interface {
	CurrentFile() (attach.FileContext, bool)
}

// Snapshot is what renderers see after each mutation.
type Snapshot struct {
	ConversationID string
	Mode           model.Mode
	Turns          []model.Turn
	Sending        bool
	ChangedID      string // id of the turn that changed, "" for whole-transcript changes
}

// Last returns the final turn, if any.
func (s Snapshot) Last() (model.Turn, bool) {
	if len(s.Turns) == 0 {
		return model.Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// Renderer observes the transcript.
type Renderer interface {
	Render(Snapshot)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(Snapshot)

// Render calls f.
func (f RenderFunc) Render(s Snapshot) { f(s) }

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the session's request parameters.
type Config struct {
	// StreamFirst tries the streaming endpoint before the async fallback.
	StreamFirst bool

	PollInterval    time.Duration
	PollTimeout     time.Duration
	TypewriterDelay time.Duration

	ChatModel   string
	Temperature float64
	MaxTokens   int

	ImageModel string
	ImageSize  string

	VideoModel     string
	VideoQuality   string
	VideoWithAudio bool
	VideoSize      string
	VideoFPS       int

	Localizer *i18n.Localizer
	Logger    *slog.Logger
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		StreamFirst:     true,
		PollInterval:    tasks.DefaultInterval,
		PollTimeout:     tasks.DefaultTimeout,
		TypewriterDelay: DefaultTypewriterDelay,
		ChatModel:       zhipu.DefaultChatModel,
		Temperature:     0.9,
		MaxTokens:       1024,
		ImageModel:      zhipu.DefaultImageModel,
		ImageSize:       "1024x1024",
		VideoModel:      zhipu.DefaultVideoModel,
		VideoQuality:    "quality",
		VideoWithAudio:  true,
		VideoSize:       "1920x1080",
		VideoFPS:        30,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the request orchestrator for one conversation.
// All methods are safe for concurrent use.
type Session struct {
	provider   Provider
	poller     *tasks.Poller
	typewriter Typewriter
	cfg        Config
	loc        *i18n.Localizer
	logger     *slog.Logger

	transcript *model.Transcript
	cancelMgr  *cancelManager

	// submitMu serializes Submit, Load and NewConversation.
	submitMu sync.Mutex

	mu         sync.Mutex
	mode       model.Mode
	selection  model.Attachments
	sending    bool
	lastErr    error
	convID     string
	createdAt  time.Time
	store      Store
	contextSrc ContextProvider
	renderers  []Renderer

	// notifyMu keeps renderer calls sequential.
	notifyMu sync.Mutex
}

// NewSession creates a session with an empty transcript.
func NewSession(provider Provider, cfg Config) *Session {
	if cfg.Localizer == nil {
		cfg.Localizer = i18n.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		provider: provider,
		poller: tasks.NewPoller(provider).
			WithInterval(cfg.PollInterval).
			WithTimeout(cfg.PollTimeout).
			WithLogger(cfg.Logger),
		typewriter: Typewriter{Delay: cfg.TypewriterDelay},
		cfg:        cfg,
		loc:        cfg.Localizer,
		logger:     cfg.Logger,
		transcript: model.NewTranscript(),
		cancelMgr:  newCancelManager(),
		mode:       model.ModeChat,
		convID:     model.NewID(),
		createdAt:  time.Now(),
	}
}

// Localizer returns the session's localizer.
func (s *Session) Localizer() *i18n.Localizer {
	return s.loc
}

// SetStore enables persistence of this session's transcript.
func (s *Session) SetStore(store Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
}

// SetContextProvider sets the editor context source.
func (s *Session) SetContextProvider(p ContextProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextSrc = p
}

// AddRenderer registers an observer and renders the current state to it.
func (s *Session) AddRenderer(r Renderer) {
	s.mu.Lock()
	s.renderers = append(s.renderers, r)
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	r.Render(s.snapshot(""))
}

// =============================================================================
// STATE ACCESSORS
// =============================================================================

// Mode returns the current generation mode.
func (s *Session) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode changes the generation mode for the next submit.
func (s *Session) SetMode(m model.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// Select replaces the attachments for the next submit.
func (s *Session) Select(att model.Attachments) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = att
}

// Selected returns the attachments for the next submit.
func (s *Session) Selected() model.Attachments {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// ClearSelection drops all selected attachments.
func (s *Session) ClearSelection() {
	s.Select(model.Attachments{})
}

// AttachEditorContext selects the file reported by the context provider,
// keeping any selected image. It returns false if there is nothing to attach.
func (s *Session) AttachEditorContext() (attach.FileContext, bool) {
	s.mu.Lock()
	src := s.contextSrc
	s.mu.Unlock()
	if src == nil {
		return attach.FileContext{}, false
	}

	fc, ok := src.CurrentFile()
	if !ok || strings.TrimSpace(fc.Summary) == "" {
		return attach.FileContext{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.FileName = fc.Name
	s.selection.FileSummary = fc.Summary
	s.selection.FilePath = fc.Path
	return fc, true
}

// IsSending returns true while a request is in flight.
func (s *Session) IsSending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// ConversationID returns the id the transcript is saved under.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convID
}

// Turns returns a snapshot of the transcript.
func (s *Session) Turns() []model.Turn {
	return s.transcript.Turns()
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// Submit starts a request for text and att. It returns false without doing
// anything when both are empty.
//
// A request already in flight is cancelled and waited for first, so its
// placeholder shows the cancelled notice before the new user turn and
// placeholder are appended. Both new turns are in the transcript when
// Submit returns; the request itself runs in the background.
func (s *Session) Submit(text string, att model.Attachments) bool {
	text = strings.TrimSpace(text)
	if text == "" && att.IsEmpty() {
		return false
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	s.cancelAndWait()

	s.mu.Lock()
	mode := s.mode
	s.selection = model.Attachments{}
	s.lastErr = nil
	s.mu.Unlock()

	user := model.NewUserTurn(text, att.ImageData, att.FileName)
	placeholder := model.NewPlaceholder()
	s.transcript.Append(user)
	s.transcript.Append(placeholder)

	ctx, op := s.cancelMgr.start()
	s.setSending(true)
	s.notify("")
	s.persist()

	s.logger.Debug("request started", "mode", mode, "turn_id", placeholder.ID)
	go s.run(ctx, op, mode, user, placeholder.ID, att)
	return true
}

// Cancel cancels the request in flight. It does nothing when idle.
func (s *Session) Cancel() {
	if op := s.cancelMgr.cancel(); op != nil {
		s.logger.Debug("request cancel requested")
	}
}

// Wait blocks until the request in flight, if any, has finished.
func (s *Session) Wait() {
	if op := s.cancelMgr.active(); op != nil {
		<-op.done
	}
}

// Err returns the error of the most recent finished request: nil on
// success, context.Canceled when it was cancelled, otherwise the provider
// error. It is nil while a request is in flight.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// cancelAndWait cancels the request in flight and waits for its
// placeholder to reach a terminal state.
func (s *Session) cancelAndWait() {
	if op := s.cancelMgr.cancel(); op != nil {
		<-op.done
	}
}

// run executes one request and always settles the session afterwards.
func (s *Session) run(ctx context.Context, op *operation, mode model.Mode, user model.Turn, id string, att model.Attachments) {
	start := time.Now()
	var err error
	defer func() {
		if err != nil && isCancellation(ctx, err) {
			err = context.Canceled
		}
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		s.setSending(false)
		s.notify(id)
		s.persist()
		s.cancelMgr.clear(op)
		close(op.done)
	}()

	switch mode {
	case model.ModeImage:
		err = s.handleImage(ctx, user, id)
	case model.ModeVideo:
		err = s.handleVideo(ctx, user, id)
	default:
		err = s.handleChat(ctx, user, id, att)
	}

	switch {
	case err == nil:
		s.logger.Debug("request finished", "mode", mode, "duration", time.Since(start))
	case isCancellation(ctx, err):
		s.logger.Info("request cancelled", "mode", mode, "duration", time.Since(start))
	default:
		s.logger.Warn("request failed", "mode", mode, "error", err, "duration", time.Since(start))
	}
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewConversation cancels any request and starts an empty transcript.
func (s *Session) NewConversation() {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	s.cancelAndWait()

	s.transcript.Reset(nil)
	s.mu.Lock()
	s.convID = model.NewID()
	s.createdAt = time.Now()
	s.selection = model.Attachments{}
	s.mu.Unlock()
	s.notify("")
}

// Load cancels any request and replaces the transcript with a stored
// conversation. Turns saved mid-request are settled as cancelled.
func (s *Session) Load(id string) error {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	if store == nil {
		return fmt.Errorf("no conversation store configured")
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	s.cancelAndWait()

	conv, err := store.Load(id)
	if err != nil {
		return err
	}

	s.transcript.Reset(model.SettleTurns(conv.Turns, s.loc.T(i18n.Cancelled)))
	s.mu.Lock()
	s.convID = conv.ID
	s.createdAt = conv.CreatedAt
	s.mu.Unlock()
	s.notify("")
	return nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// update replaces the turn with the given id and notifies renderers.
func (s *Session) update(id string, fn func(*model.Turn)) {
	if _, ok := s.transcript.Update(id, fn); ok {
		s.notify(id)
	}
}

func (s *Session) setSending(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = v
}

func (s *Session) snapshot(changed string) Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		ConversationID: s.convID,
		Mode:           s.mode,
		Sending:        s.sending,
		ChangedID:      changed,
	}
	s.mu.Unlock()
	snap.Turns = s.transcript.Turns()
	return snap
}

func (s *Session) notify(changed string) {
	s.mu.Lock()
	renderers := make([]Renderer, len(s.renderers))
	copy(renderers, s.renderers)
	s.mu.Unlock()
	if len(renderers) == 0 {
		return
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	snap := s.snapshot(changed)
	for _, r := range renderers {
		r.Render(snap)
	}
}

// persist saves the transcript. Failures are logged, never shown.
func (s *Session) persist() {
	s.mu.Lock()
	store := s.store
	conv := model.Conversation{
		ID:        s.convID,
		CreatedAt: s.createdAt,
	}
	s.mu.Unlock()
	if store == nil {
		return
	}

	conv.Turns = s.transcript.Turns()
	if len(conv.Turns) == 0 {
		return
	}
	conv.Title = model.MakeTitle(s.transcript.FirstUserText(), s.loc.T(i18n.NewConversation))
	conv.UpdatedAt = time.Now()

	if err := store.Save(conv); err != nil {
		s.logger.Error("failed to save conversation", "id", conv.ID, "error", err)
	}
}
