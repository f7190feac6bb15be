// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionData is the JSON form of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd.OutOrStdout(), info, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")
	return cmd
}

func printVersion(w io.Writer, info BuildInfo, jsonOut bool) error {
	data := VersionData{
		Version:   info.Version,
		GitCommit: info.GitCommit,
		BuildDate: info.BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	fmt.Fprintf(w, "glmchat %s\n", data.Version)
	fmt.Fprintf(w, "  Commit:   %s\n", data.GitCommit)
	fmt.Fprintf(w, "  Built:    %s\n", data.BuildDate)
	fmt.Fprintf(w, "  Go:       %s\n", data.GoVersion)
	fmt.Fprintf(w, "  Platform: %s\n", data.Platform)
	return nil
}
