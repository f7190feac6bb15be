// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/glmchat/internal/chat"
	"github.com/jeranaias/glmchat/internal/model"
)

// askOptions holds the flags of the ask command.
type askOptions struct {
	mode     string
	attach   []string
	noStream bool
	noSave   bool
}

func newAskCommand(app *App) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one prompt and print the reply",
		Long: `Send one prompt and print the reply.

The prompt is read from standard input when no argument is given and input
is piped. Ctrl+C cancels the request.`,
		Example: `  glmchat ask "用一句话介绍 Go 语言"
  glmchat ask --mode image "a red panda reading a book"
  glmchat ask --attach main.go "review this file"
  git diff | glmchat ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runAsk(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.mode, "mode", "m", "chat", "generation mode: chat, image or video")
	flags.StringSliceVarP(&opts.attach, "attach", "a", nil, "attach an image or file (repeatable)")
	flags.BoolVar(&opts.noStream, "no-stream", false, "skip streaming and use an async task")
	flags.BoolVar(&opts.noSave, "no-save", false, "do not save the conversation")
	return cmd
}

// runAsk submits one prompt and waits for the reply to finish. A failed or
// cancelled request is returned so Execute can map it to an exit code.
func (a *App) runAsk(ctx context.Context, prompt string, opts askOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	mode, err := model.ParseMode(opts.mode)
	if err != nil {
		return NewUsageError("--mode", opts.mode, err.Error())
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" && !isTerminal(a.In) {
		data, err := io.ReadAll(io.LimitReader(a.In, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}

	var att model.Attachments
	for _, path := range opts.attach {
		if att, _, err = attachPath(att, path, a.Localizer); err != nil {
			return err
		}
	}
	if prompt == "" && att.IsEmpty() {
		return ErrMissingArgument("prompt", `glmchat ask "hello"`)
	}

	session := chat.NewSession(a.newClient(), a.sessionConfig(a.Config.Chat.StreamFirst && !opts.noStream))
	session.SetMode(mode)
	if !opts.noSave {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		session.SetStore(store)
	}
	session.AddRenderer(a.newTerminal())

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	go func() {
		<-sigCtx.Done()
		session.Cancel()
	}()

	session.Submit(prompt, att)
	session.Wait()
	a.Logger.Debug("ask finished", "conversation", session.ConversationID())
	if err := session.Err(); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return nil
}
