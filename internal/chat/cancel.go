// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// =============================================================================
// OPERATION SLOT (THREAD-SAFE)
// =============================================================================

// operation is one in-flight request.
type operation struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// cancelManager holds the single in-flight operation.
// An operation stays in the slot after being cancelled until its goroutine
// clears it, so callers can still wait for it to finish.
type cancelManager struct {
	mu      sync.Mutex
	current *operation
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

// start records a new operation and returns its context.
// The caller must have cancelled and waited for any previous operation.
func (cm *cancelManager) start() (context.Context, *operation) {
	ctx, cancel := context.WithCancel(context.Background())
	op := &operation{cancel: cancel, done: make(chan struct{})}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.current != nil {
		cm.current.cancel()
	}
	cm.current = op
	return ctx, op
}

// cancel cancels the current operation and returns it, or nil if idle.
// Safe to call multiple times or with nothing running.
func (cm *cancelManager) cancel() *operation {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.current != nil {
		cm.current.cancel()
	}
	return cm.current
}

// active returns the current operation, or nil if idle.
func (cm *cancelManager) active() *operation {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.current
}

// clear releases op's context and empties the slot if op still holds it.
func (cm *cancelManager) clear(op *operation) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	op.cancel() // Always cancel to prevent context leaks
	if cm.current == op {
		cm.current = nil
	}
}
