// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved conversations to Markdown or JSON files.
//
// # Supported Formats
//
//   - Markdown: human-readable transcript with media links
//   - JSON: the stored conversation, suitable for re-import
//
// # Usage
//
//	exporter, err := export.ForFormat("markdown", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(conv, exporter, "./exports")
package export
