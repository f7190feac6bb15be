// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/glmchat/internal/attach"
	"github.com/jeranaias/glmchat/internal/chat"
	"github.com/jeranaias/glmchat/internal/config"
	"github.com/jeranaias/glmchat/internal/i18n"
	"github.com/jeranaias/glmchat/internal/model"
	"github.com/jeranaias/glmchat/internal/render"
	"github.com/jeranaias/glmchat/internal/storage"
)

// chatOptions holds the flags of the chat command.
type chatOptions struct {
	mode         string
	conversation string
	watch        string
	noStream     bool
}

func newChatCommand(app *App) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Type a message and press Enter to send it. Lines starting with / are
commands; type /help to list them. Ctrl+C cancels a reply in progress,
Ctrl+D exits.`,
		Example: `  glmchat chat
  glmchat chat --mode image
  glmchat chat --conversation 1a2b3c4d
  glmchat chat --watch ./notes.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runChat(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.mode, "mode", "m", "chat", "generation mode: chat, image or video")
	flags.StringVarP(&opts.conversation, "conversation", "c", "", "continue a saved conversation (id or prefix)")
	flags.StringVarP(&opts.watch, "watch", "w", "", "follow a file as editor context for /editor")
	flags.BoolVar(&opts.noStream, "no-stream", false, "skip streaming and use async tasks")
	return cmd
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// runChat runs the interactive loop until the user quits.
func (a *App) runChat(ctx context.Context, opts chatOptions) error {
	mode, err := model.ParseMode(opts.mode)
	if err != nil {
		return NewUsageError("--mode", opts.mode, err.Error())
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	session := chat.NewSession(a.newClient(), a.sessionConfig(a.Config.Chat.StreamFirst && !opts.noStream))
	session.SetStore(store)
	session.SetMode(mode)

	var editorUpdates <-chan attach.FileContext
	if opts.watch != "" {
		w, err := attach.NewWatcher(a.Localizer, 0)
		if err != nil {
			return err
		}
		defer w.Close()
		w.WithLogger(a.Logger)
		if err := w.Track(opts.watch); err != nil {
			return err
		}
		session.SetContextProvider(w)
		editorUpdates = w.Updates()
	}

	if opts.conversation != "" {
		id, err := resolveID(store, opts.conversation)
		if err != nil {
			return err
		}
		if err := session.Load(id); err != nil {
			return err
		}
	}

	term := a.newTerminal()
	r := &repl{
		app:     a,
		session: session,
		store:   store,
		styles:  term.Styles(),
		out:     a.Out,
	}
	r.printWelcome()
	session.AddRenderer(term)

	if editorUpdates != nil {
		stopFollow := make(chan struct{})
		defer close(stopFollow)
		go r.followEditor(editorUpdates, stopFollow)
	}

	// Ctrl+C while a reply is in progress cancels it. At the prompt liner
	// reports it as ErrPromptAborted instead.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if session.IsSending() {
				session.Cancel()
			}
		}
	}()

	line := newLineReader()
	defer line.Close()

	for {
		if ctx != nil && ctx.Err() != nil {
			return nil
		}
		input, err := line.ReadInput(r.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			fmt.Fprintln(a.Out)
			return nil
		}

		quit, err := r.handle(input)
		if err != nil {
			fmt.Fprintf(a.Err, "%s %v\n", r.styles.Error.Render("[Error]"), err)
		}
		if quit {
			return nil
		}
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader provides input history and line editing for interactive chat.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	lr := &lineReader{line: line, historyFile: filepath.Join(configDir, "chat_history")}

	if f, err := os.Open(lr.historyFile); err == nil {
		lr.line.ReadHistory(f)
		f.Close()
	}
	return lr
}

// ReadInput reads a line of input with the given prompt.
func (lr *lineReader) ReadInput(prompt string) (string, error) {
	input, err := lr.line.Prompt(prompt)
	if err != nil {
		return input, err
	}
	if strings.TrimSpace(input) != "" {
		lr.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (lr *lineReader) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(lr.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			lr.line.WriteHistory(f)
			f.Close()
		}
	}
	lr.line.Close()
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// repl executes chat input against a session.
type repl struct {
	app     *App
	session *chat.Session
	store   storage.Store
	styles  render.Styles
	out     io.Writer
}

// parseCommand splits "/name arg..." into a lower-case name and the rest.
func parseCommand(input string) (name, arg string) {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	name, arg, _ = strings.Cut(input, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

// handle runs one line of input. It returns true when the user quits.
// Messages block until the reply is finished.
func (r *repl) handle(input string) (bool, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, nil
	}
	if !strings.HasPrefix(input, "/") {
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return true, nil
		}
		r.send(input)
		return false, nil
	}

	name, arg := parseCommand(input)
	switch name {
	case "help", "h", "?":
		r.printHelp()

	case "mode", "m":
		if arg == "" {
			r.info("Mode: %s", r.modeTitle(r.session.Mode()))
			return false, nil
		}
		mode, err := model.ParseMode(arg)
		if err != nil {
			return false, err
		}
		r.session.SetMode(mode)
		r.info("Mode: %s", r.modeTitle(mode))

	case "attach", "a":
		if arg == "" {
			return false, ErrMissingArgument("path", "/attach ./photo.png")
		}
		att, desc, err := attachPath(r.session.Selected(), arg, r.app.Localizer)
		if err != nil {
			return false, err
		}
		r.session.Select(att)
		r.info("Attached %s", desc)

	case "editor", "e":
		fc, ok := r.session.AttachEditorContext()
		if !ok {
			return false, errors.New("no editor file is being followed (start chat with --watch FILE)")
		}
		r.info("Attached %s", fc.Name)

	case "detach", "d":
		r.session.ClearSelection()
		r.info("Attachments cleared.")

	case "send", "s":
		if r.session.Selected().IsEmpty() {
			return false, errors.New("nothing attached to send")
		}
		r.send(arg)

	case "new", "n":
		r.session.NewConversation()
		r.info("Started a new conversation.")

	case "history":
		metas, err := r.store.List()
		if err != nil {
			return false, err
		}
		printConversations(r.out, storage.Search(metas, arg), r.styles)

	case "load", "l":
		if arg == "" {
			return false, ErrMissingArgument("conversation id", "/load 1a2b3c4d")
		}
		id, err := resolveID(r.store, arg)
		if err != nil {
			return false, err
		}
		return false, r.session.Load(id)

	case "cancel", "c":
		r.session.Cancel()

	case "quit", "q", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command /%s (type /help)", name)
	}
	return false, nil
}

// send submits text with the current attachments and waits for the reply.
func (r *repl) send(text string) {
	if r.session.Submit(text, r.session.Selected()) {
		r.session.Wait()
	}
}

func (r *repl) prompt() string {
	p := "glm"
	if mode := r.session.Mode(); mode != model.ModeChat {
		p += "[" + mode.String() + "]"
	}
	if !r.session.Selected().IsEmpty() {
		p += "+"
	}
	return p + "> "
}

func (r *repl) modeTitle(m model.Mode) string {
	loc := r.app.Localizer
	switch m {
	case model.ModeImage:
		return loc.T(i18n.ModeImage)
	case model.ModeVideo:
		return loc.T(i18n.ModeVideo)
	default:
		return loc.T(i18n.ModeChat)
	}
}

// followEditor prints a notice for each new summary of the followed file
// until stop is closed.
func (r *repl) followEditor(updates <-chan attach.FileContext, stop <-chan struct{}) {
	for {
		select {
		case fc := <-updates:
			r.info("Editor file: %s (/editor to attach)", fc.Name)
		case <-stop:
			return
		}
	}
}

func (r *repl) info(format string, args ...any) {
	fmt.Fprintln(r.out, r.styles.Muted.Render(fmt.Sprintf(format, args...)))
}

func (r *repl) printWelcome() {
	fmt.Fprintln(r.out, r.styles.Assistant.Render("glmchat")+" "+
		r.styles.Muted.Render(fmt.Sprintf("(%s, %s)", r.modeTitle(r.session.Mode()), r.app.Config.Provider.ChatModel)))
	if _, err := r.app.Config.RequireAPIKey(); err != nil {
		fmt.Fprintln(r.out, r.styles.Warning.Render(r.app.Localizer.T(i18n.MissingAPIKey)))
	}
	fmt.Fprintln(r.out, r.styles.Muted.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(r.out)
}

func (r *repl) printHelp() {
	commands := []struct{ name, desc string }{
		{"/help", "Show this help"},
		{"/mode [chat|image|video]", "Show or change the generation mode"},
		{"/attach PATH", "Attach an image or a file to the next message"},
		{"/editor", "Attach the file followed with --watch"},
		{"/detach", "Drop all attachments"},
		{"/send [text]", "Send the attachments, with optional text"},
		{"/new", "Start a new conversation"},
		{"/history [query]", "List saved conversations"},
		{"/load ID", "Continue a saved conversation"},
		{"/cancel", "Cancel the reply in progress"},
		{"/quit", "Exit"},
	}
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n", r.styles.Prompt.Render(fmt.Sprintf("%-26s", c.name)), c.desc)
	}
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// attachPath adds the file at path to att. Decodable images replace the
// attached image; anything else replaces the attached file summary.
func attachPath(att model.Attachments, path string, loc *i18n.Localizer) (model.Attachments, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return att, "", fmt.Errorf("cannot attach %s: %w", path, err)
	}
	if info.IsDir() {
		return att, "", fmt.Errorf("cannot attach %s: is a directory", path)
	}

	if data, err := attach.LoadImage(path); err == nil {
		if w, h, ok := attach.ImageSize(data); ok {
			att.ImageData = data
			return att, fmt.Sprintf("image %s (%dx%d)", filepath.Base(path), w, h), nil
		}
	}

	fc := attach.SummarizeFile(path, loc)
	att.FileName = fc.Name
	att.FileSummary = fc.Summary
	att.FilePath = fc.Path
	return att, "file " + fc.Name, nil
}
