// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives one conversation session against the provider.
//
// A Session accepts one submitted turn at a time and produces exactly one
// assistant turn for it. Submitting while a request is in flight cancels the
// running request first (last submit wins, nothing is queued). The assistant
// turn starts as a placeholder and is filled in by the mode handler:
//
//   - chat: streamed deltas, falling back to an async task plus typewriter
//     replay when the stream fails
//   - image: one synchronous generation call
//   - video: an async task polled until it finishes
//
// Every exit path leaves the placeholder terminal, clears the sending flag
// and persists the transcript.
//
// # Key Types
//
//   - Session: The request orchestrator for one conversation
//   - Provider: The provider operations a session needs (zhipu.Client)
//   - Renderer: Observer notified with a Snapshot after every mutation
//   - Store: Conversation persistence
//   - Typewriter: Replays final text one grapheme at a time
//
// # Usage
//
//	session := chat.NewSession(client, chat.DefaultConfig())
//	session.AddRenderer(chat.RenderFunc(func(s chat.Snapshot) { draw(s) }))
//	session.Submit("hello", model.Attachments{})
//	session.Wait()
package chat
