// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations.
//
// Two backends implement Store: SQLiteStore keeps every conversation in a
// single database file, and JSONStore writes one JSON file per
// conversation. Both copy whole records in and out, so a loaded
// conversation never aliases stored state.
//
// # Eviction
//
// After every save the store totals the approximate size of all
// conversations. While the total exceeds the configured limit, the least
// recently updated conversations are deleted. The conversation that was
// just saved is never evicted.
//
// # Usage
//
//	store, err := storage.Open(storage.Options{Backend: "sqlite", Dir: dir})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	err = store.Save(conv)
//	metas, err := store.List()
//	conv, err = store.Load(metas[0].ID)
package storage
