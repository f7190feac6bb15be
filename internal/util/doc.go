// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the storage, config and
// terminal layers.
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateRunes, TruncateWidth, OneLine: display helpers that never
//     split a multi-byte character
package util
