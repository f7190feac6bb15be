// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/glmchat/internal/chat"
	"github.com/jeranaias/glmchat/internal/config"
	"github.com/jeranaias/glmchat/internal/i18n"
	"github.com/jeranaias/glmchat/internal/render"
	"github.com/jeranaias/glmchat/internal/storage"
	"github.com/jeranaias/glmchat/internal/zhipu"
)

// BuildInfo is set by main from linker flags.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// =============================================================================
// APPLICATION STATE
// =============================================================================

// App holds what every command needs once flags are parsed.
type App struct {
	// Global flags
	configPath string
	logLevel   string
	lang       string
	noColor    bool

	Config    *config.Config
	Logger    *slog.Logger
	Localizer *i18n.Localizer
	logFile   *os.File

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// NewApp creates an App bound to the process's standard streams.
func NewApp() *App {
	return &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// setup loads configuration and builds the logger and localizer.
func (a *App) setup() error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(a.Err, "Warning: %v\n", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	return a.apply(cfg)
}

// setupLenient is setup for the config commands, which must work even when
// the file on disk does not validate.
func (a *App) setupLenient() error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(a.Err, "Warning: %v\n", err)
	}

	cfg := config.Default()
	path, err := a.settingsPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	return a.apply(cfg)
}

func (a *App) apply(cfg *config.Config) error {
	if a.logLevel != "" {
		if _, err := config.ParseLevel(a.logLevel); err != nil {
			return NewUsageError("--log-level", a.logLevel, err.Error())
		}
		cfg.Log.Level = a.logLevel
	}
	if a.lang != "" {
		cfg.UI.Language = a.lang
	}
	a.Config = cfg
	a.Localizer = i18n.New(cfg.UI.Language)

	var logOut io.Writer = a.Err
	if dir, err := cfg.LogDir(); err != nil {
		fmt.Fprintf(a.Err, "Warning: %v\n", err)
	} else if dir != "" {
		f, err := config.SetupLogFile(dir, cfg.Log.MaxFiles)
		if err != nil {
			fmt.Fprintf(a.Err, "Warning: file logging disabled: %v\n", err)
		} else {
			a.logFile = f
			logOut = f
		}
	}
	a.Logger = config.NewLogger(cfg.Log.Level, logOut)
	return nil
}

// close releases the log file.
func (a *App) close() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

// settingsPath returns the config file commands read and write.
func (a *App) settingsPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ConfigPath()
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// newClient builds a provider client. The key is read on every request so
// a key saved during the session takes effect immediately.
func (a *App) newClient() *zhipu.Client {
	cfg := a.Config
	return zhipu.NewClient(cfg.APIKey).
		WithBaseURL(cfg.Provider.BaseURL).
		WithRateLimit(cfg.Provider.RequestsPerSecond, cfg.Provider.Burst).
		WithLogger(a.Logger)
}

// sessionConfig maps the loaded configuration onto a session.
func (a *App) sessionConfig(streamFirst bool) chat.Config {
	cfg := a.Config
	return chat.Config{
		StreamFirst:     streamFirst,
		PollInterval:    cfg.PollInterval(),
		PollTimeout:     cfg.PollTimeout(),
		TypewriterDelay: cfg.TypewriterDelay(),
		ChatModel:       cfg.Provider.ChatModel,
		Temperature:     cfg.Provider.Temperature,
		MaxTokens:       cfg.Provider.MaxTokens,
		ImageModel:      cfg.Provider.ImageModel,
		ImageSize:       cfg.Image.Size,
		VideoModel:      cfg.Provider.VideoModel,
		VideoQuality:    cfg.Video.Quality,
		VideoWithAudio:  cfg.Video.WithAudio,
		VideoSize:       cfg.Video.Size,
		VideoFPS:        cfg.Video.FPS,
		Localizer:       a.Localizer,
		Logger:          a.Logger,
	}
}

// openStore opens the configured conversation store.
func (a *App) openStore() (storage.Store, error) {
	dir, err := a.Config.StorageDir()
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Options{
		Backend:  a.Config.Storage.Backend,
		Dir:      dir,
		MaxBytes: a.Config.Storage.MaxBytes,
		Logger:   a.Logger,
	})
}

// newTerminal builds the transcript renderer for a.Out. Markdown is only
// rendered on a terminal.
func (a *App) newTerminal() *render.Terminal {
	tty := isTerminal(a.Out)
	return render.NewTerminal(a.Out, render.Options{
		Localizer:     a.Localizer,
		Markdown:      a.Config.UI.Markdown && tty,
		Width:         terminalWidth(a.Out),
		ShowReasoning: a.Config.UI.ShowReasoning,
		NoColor:       a.noColor,
	})
}

// styles returns output styles for a.Out.
func (a *App) styles() render.Styles {
	return render.NewStyles(a.Out, a.noColor)
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the glmchat command tree.
func NewRootCommand(app *App, info BuildInfo) *cobra.Command {
	var chatOpts chatOptions

	root := &cobra.Command{
		Use:   "glmchat",
		Short: "Terminal chat client for Zhipu GLM models",
		Long: `glmchat talks to the Zhipu BigModel API from the terminal.

It streams chat replies (falling back to an asynchronous task when streaming
fails), generates images and videos, and keeps conversation history locally.
Running glmchat without a subcommand starts an interactive chat.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runChat(cmd.Context(), chatOpts)
		},
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "config file (default ~/.glmchat/config.toml)")
	flags.StringVar(&app.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&app.lang, "lang", "", "display language: zh or en")
	flags.BoolVar(&app.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newChatCommand(app),
		newAskCommand(app),
		newHistoryCommand(app),
		newConfigCommand(app),
		newVersionCommand(info),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, info BuildInfo) int {
	app := NewApp()
	root := NewRootCommand(app, info)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(app.Err, "Error: %v\n", err)
		var usageErr *UsageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(app.Err, "Run '%s --help' for usage.\n", root.Name())
		}
		return ExitCode(err)
	}
	return ExitSuccess
}
