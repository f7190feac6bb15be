// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks polls asynchronous provider tasks until they finish.
//
// Chat fallbacks and video generation are submitted as asynchronous tasks.
// A Poller fetches the task result at a fixed interval until the provider
// reports a terminal status, the deadline passes, or the context is
// cancelled.
//
// # Key Types
//
//   - Poller: Fixed-interval poll loop with a wall-clock deadline
//   - Fetcher: Anything that can look up an async result (zhipu.Client)
//   - Expectation: Which result field counts as data (text choices or media)
//
// # Usage
//
//	poller := tasks.NewPoller(client)
//	res, err := poller.Poll(ctx, sub.ID, tasks.ExpectMedia)
//	if errors.Is(err, tasks.ErrTimeout) {
//	    // task still running after the deadline
//	}
//	url := res.FirstVideoURL()
package tasks
