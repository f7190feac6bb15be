// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach turns local files into context attached to a chat turn.
//
// # Key Types
//
//   - FileContext: Name, summary text and path of an attached file
//   - Watcher: fsnotify-backed tracker of the file currently open in an editor
//
// # Usage
//
// Summarize a file for the next submit:
//
//	fc := attach.SummarizeFile("notes.md", loc)
//	session.Select(fc.Attachments())
//
// Track an editor buffer and pull its contents on demand:
//
//	w, err := attach.NewWatcher(loc, 200*time.Millisecond)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	w.Track("main.go")
//	if fc, ok := w.CurrentFile(); ok {
//	    session.Select(fc.Attachments())
//	}
package attach
