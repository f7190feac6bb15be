// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the glmchat command line.
//
// Commands are built with cobra. Every command shares an App, which holds
// the loaded configuration, the logger, the localizer and the standard
// streams, so tests can run the whole command tree against buffers.
//
// # Commands
//
//   - chat: interactive session with slash commands (default)
//   - ask: one prompt, reply printed to stdout
//   - history: list, show, delete and clear saved conversations
//   - config: show, path, init, get, set and set-key
//   - version: build information
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute(context.Background(), cli.BuildInfo{Version: "1.0.0"}))
//	}
//
// # Exit Codes
//
// Execute maps errors onto exit codes with ExitCode: usage errors exit 2,
// configuration errors 3, authentication failures 4, network errors 5,
// missing conversations 7 and timeouts 8.
package cli
