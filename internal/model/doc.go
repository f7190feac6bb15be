// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversation turns.
//
// This package defines the domain types shared by the session controller,
// the renderers and the persistence layer.
//
// # Key Types
//
//   - Turn: One message in the transcript, user or assistant, with the
//     streaming flags and optional media and attachment payloads
//   - Transcript: Ordered, id-indexed list of turns with whole-record updates
//   - Mode: Generation mode (chat, image, video)
//   - Attachments: Image bytes and file context attached to the next submit
//
// # Usage
//
// Build a transcript and update a placeholder in place:
//
//	tr := model.NewTranscript()
//	user := model.NewUserTurn("hello", nil, "")
//	reply := model.NewPlaceholder()
//	tr.Append(user)
//	tr.Append(reply)
//	tr.Update(reply.ID, func(t *model.Turn) {
//	    t.Text += "Hi"
//	    t.IsLoadingPending = false
//	})
package model
