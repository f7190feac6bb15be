// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/glmchat/internal/export"
	"github.com/jeranaias/glmchat/internal/render"
	"github.com/jeranaias/glmchat/internal/storage"
	"github.com/jeranaias/glmchat/internal/util"
)

// Column widths for conversation listings.
const (
	idColumnWidth    = 8
	titleColumnWidth = 24
	dateLayout       = "2006-01-02 15:04"
)

func newHistoryCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Manage saved conversations",
		Long: `List, show, export and delete saved conversations.

Conversations can be named by their full id or any unique id prefix, as
shown in the ID column of 'glmchat history list'.`,
	}

	var jsonOut bool
	list := &cobra.Command{
		Use:     "list [query]",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			metas, err := store.List()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				metas = storage.Search(metas, args[0])
			}
			if jsonOut {
				enc := json.NewEncoder(app.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(metas)
			}
			printConversations(app.Out, metas, app.styles())
			return nil
		},
	}
	list.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := resolveID(store, args[0])
			if err != nil {
				return err
			}
			conv, err := store.Load(id)
			if err != nil {
				return err
			}

			st := app.styles()
			fmt.Fprintln(app.Out, st.Header.Render(conv.Title))
			fmt.Fprintln(app.Out, st.Muted.Render(fmt.Sprintf("%s  %s", conv.ID, conv.UpdatedAt.Local().Format(dateLayout))))
			fmt.Fprintln(app.Out)
			app.newTerminal().PrintTranscript(conv.Turns)
			return nil
		},
	}

	del := &cobra.Command{
		Use:     "delete ID...",
		Aliases: []string{"rm"},
		Short:   "Delete conversations",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, arg := range args {
				id, err := resolveID(store, arg)
				if err != nil {
					return err
				}
				if err := store.Delete(id); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Deleted %s\n", id)
			}
			return nil
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm(app.In, app.Out, "Delete all saved conversations?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(app.Out, "Cancelled.")
					return nil
				}
			}

			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "All conversations deleted.")
			return nil
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	var (
		format    string
		outputDir string
		noReason  bool
	)
	exportCmd := &cobra.Command{
		Use:   "export ID",
		Short: "Write a conversation to a Markdown or JSON file",
		Long: `Write a conversation to a Markdown or JSON file.

Use --output - to print to standard output instead of a file.`,
		Example: `  glmchat history export 1a2b3c4d
  glmchat history export 1a2b3c4d --format json --output ./exports
  glmchat history export 1a2b3c4d --output - | less`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.IncludeReasoning = !noReason
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return NewUsageError("--format", format, err.Error())
			}

			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := resolveID(store, args[0])
			if err != nil {
				return err
			}
			conv, err := store.Load(id)
			if err != nil {
				return err
			}

			if outputDir == "-" {
				data, err := exporter.Export(conv)
				if err != nil {
					return err
				}
				_, err = app.Out.Write(data)
				return err
			}
			path, err := export.ToFile(conv, exporter, outputDir)
			if err != nil {
				return err
			}
			app.Logger.Debug("conversation exported", "id", id, "path", path)
			fmt.Fprintf(app.Out, "Exported to %s\n", path)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", export.FormatMarkdown, "markdown or json")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory, or - for stdout")
	exportCmd.Flags().BoolVar(&noReason, "no-reasoning", false, "leave out model reasoning")

	cmd.AddCommand(list, show, del, clearCmd, exportCmd)
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveID finds the conversation named by an id or unique id prefix.
func resolveID(store storage.Store, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrMissingArgument("conversation id", "glmchat history show 1a2b3c4d")
	}

	metas, err := store.List()
	if err != nil {
		return "", err
	}

	var matches []string
	for _, m := range metas {
		if m.ID == ref {
			return m.ID, nil
		}
		if strings.HasPrefix(m.ID, ref) {
			matches = append(matches, m.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", storage.ErrConversationNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", NewUsageError("conversation id", ref,
			fmt.Sprintf("prefix matches %d conversations", len(matches)))
	}
}

// printConversations writes a table of conversations. Titles are cut by
// display width so CJK titles keep the columns aligned.
func printConversations(w io.Writer, metas []storage.ConversationMeta, st render.Styles) {
	if len(metas) == 0 {
		fmt.Fprintln(w, st.Muted.Render("No saved conversations."))
		return
	}

	header := fmt.Sprintf("%s  %s  %s  %s  %s",
		util.PadWidth("ID", idColumnWidth),
		util.PadWidth("UPDATED", len(dateLayout)),
		util.PadWidth("TURNS", 5),
		util.PadWidth("TITLE", titleColumnWidth),
		"PREVIEW")
	fmt.Fprintln(w, st.Header.Render(header))

	for _, m := range metas {
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			util.PadWidth(shortID(m.ID), idColumnWidth),
			m.UpdatedAt.Local().Format(dateLayout),
			util.PadWidth(strconv.Itoa(m.TurnCount), 5),
			util.PadWidth(util.TruncateWidth(m.Title, titleColumnWidth), titleColumnWidth),
			st.Muted.Render(util.TruncateWidth(m.Preview, 40)))
	}
}

func shortID(id string) string {
	if len(id) <= idColumnWidth {
		return id
	}
	return id[:idColumnWidth]
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
