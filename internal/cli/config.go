// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/glmchat/internal/config"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit settings",
		Long: `Show and edit the glmchat configuration file.

Settings use dot notation matching the file's sections, for example
chat.stream_first, video.fps or ui.language.`,
		// Config commands must work with a broken file so it can be fixed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setupLenient()
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (API key redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(app.Out, app.Config.String())
			if err := app.Config.Validate(); err != nil {
				fmt.Fprintln(app.Out, app.styles().Warning.Render("Invalid: "+err.Error()))
			}
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.settingsPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, p)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.settingsPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(p); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", p)
			}
			if err := config.SaveTOML(config.Default(), p); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Wrote %s\n", p)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	get := &cobra.Command{
		Use:   "get [KEY]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := config.AllKeys()
			if len(args) == 1 {
				keys = args
			}
			for _, key := range keys {
				v, err := app.Config.Get(key)
				if err != nil {
					return NewUsageError("key", key, err.Error())
				}
				if key == "provider.api_key" && v != "" {
					v = "[REDACTED]"
				}
				if len(args) == 1 {
					fmt.Fprintln(app.Out, v)
				} else {
					fmt.Fprintf(app.Out, "%s = %v\n", key, v)
				}
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.updateFile(func(cfg *config.Config) error {
				if err := cfg.Set(args[0], args[1]); err != nil {
					return NewUsageError("key", args[0], err.Error())
				}
				return nil
			})
		},
	}

	setKey := &cobra.Command{
		Use:   "set-key [KEY]",
		Short: "Store the Zhipu API key",
		Long: `Store the Zhipu API key in the config file (permissions 0600).

With no argument the key is read from the terminal without echo, or from
the first line of standard input when it is not a terminal. ZHIPU_API_KEY
is used whenever no key is stored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				var err error
				if key, err = app.readKey(); err != nil {
					return err
				}
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return ErrMissingArgument("API key", "glmchat config set-key <id>.<secret>")
			}
			if err := app.updateFile(func(cfg *config.Config) error {
				cfg.Provider.APIKey = key
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, app.styles().Success.Render("API key saved."))
			return nil
		},
	}

	cmd.AddCommand(show, path, initCmd, get, set, setKey)
	return cmd
}

// updateFile applies edit to the settings stored on disk and writes them
// back. Environment overrides are not applied, so they are never saved.
func (a *App) updateFile(edit func(*config.Config) error) error {
	p, err := a.settingsPath()
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(p); statErr == nil {
		if err := config.LoadTOML(cfg, p); err != nil {
			return err
		}
	}
	if err := edit(cfg); err != nil {
		return err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, p); err != nil {
		return err
	}
	a.Logger.Debug("config saved", "path", p)
	return nil
}

// readKey prompts for the API key.
func (a *App) readKey() (string, error) {
	if isTerminal(a.In) {
		fmt.Fprint(a.Out, "Zhipu API key: ")
		key, err := readSecret()
		fmt.Fprintln(a.Out)
		return key, err
	}

	line, err := bufio.NewReader(a.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return line, nil
}
