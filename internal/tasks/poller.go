// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jeranaias/glmchat/internal/zhipu"
)

// Poll timing defaults.
const (
	DefaultInterval = 1 * time.Second
	DefaultTimeout  = 60 * time.Second
)

// ErrTimeout is returned when a task is still running at the deadline.
// It matches zhipu.ErrInvalidResponse under errors.Is.
var ErrTimeout = fmt.Errorf("%w: task did not finish before the deadline", zhipu.ErrInvalidResponse)

// Fetcher looks up the current state of an asynchronous task.
type Fetcher interface {
	FetchAsyncResult(ctx context.Context, taskID string) (*zhipu.AsyncResult, error)
}

// =============================================================================
// EXPECTATION
// =============================================================================

// Expectation names the result field a caller is waiting for.
type Expectation int

const (
	// ExpectText waits for chat choices.
	ExpectText Expectation = iota
	// ExpectMedia waits for video results.
	ExpectMedia
)

// String returns the expectation name.
func (e Expectation) String() string {
	if e == ExpectMedia {
		return "media"
	}
	return "text"
}

// Satisfied reports whether res carries the expected field.
func (e Expectation) Satisfied(res *zhipu.AsyncResult) bool {
	if res == nil {
		return false
	}
	if e == ExpectMedia {
		return res.HasMedia()
	}
	return res.HasChoices()
}

// runningStatuses are the task statuses that mean "poll again".
var runningStatuses = map[string]bool{
	"":                     true,
	zhipu.StatusProcessing: true,
	zhipu.StatusPending:    true,
	zhipu.StatusQueued:     true,
}

// IsRunning reports whether res describes a task that has not finished.
// Only the status decides; data present on a running task is ignored.
func IsRunning(res *zhipu.AsyncResult) bool {
	return runningStatuses[strings.ToUpper(strings.TrimSpace(res.TaskStatus))]
}

// =============================================================================
// POLLER
// =============================================================================

// Poller fetches a task result at a fixed interval until it is terminal.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPoller creates a poller with the default interval and timeout.
func NewPoller(fetcher Fetcher) *Poller {
	return &Poller{
		fetcher:  fetcher,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
}

// WithInterval sets the delay between fetches.
func (p *Poller) WithInterval(d time.Duration) *Poller {
	if d > 0 {
		p.interval = d
	}
	return p
}

// WithTimeout sets the overall deadline.
func (p *Poller) WithTimeout(d time.Duration) *Poller {
	if d > 0 {
		p.timeout = d
	}
	return p
}

// WithLogger sets the logger.
func (p *Poller) WithLogger(logger *slog.Logger) *Poller {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Interval returns the delay between fetches.
func (p *Poller) Interval() time.Duration { return p.interval }

// Timeout returns the overall deadline.
func (p *Poller) Timeout() time.Duration { return p.timeout }

// Poll fetches taskID until the provider reports a terminal status.
//
// A terminal result is returned as-is even when the expected field is
// missing; interpreting an empty result is up to the caller. Fetch errors
// end the loop immediately. Cancellation is checked before and after each
// fetch and during each wait.
func (p *Poller) Poll(ctx context.Context, taskID string, expect Expectation) (*zhipu.AsyncResult, error) {
	start := time.Now()
	timer := time.NewTimer(p.interval)
	timer.Stop()
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Since(start) >= p.timeout {
			return nil, p.timedOut(taskID, attempt-1, start)
		}

		res, err := p.fetcher.FetchAsyncResult(ctx, taskID)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, fmt.Errorf("%w: empty task result", zhipu.ErrInvalidResponse)
		}

		if !IsRunning(res) {
			if !expect.Satisfied(res) {
				p.logger.Warn("task finished without expected data",
					"task_id", taskID, "status", res.TaskStatus, "expect", expect.String())
			}
			p.logger.Debug("task finished", "task_id", taskID, "status", res.TaskStatus,
				"attempts", attempt, "elapsed", time.Since(start))
			return res, nil
		}

		if time.Since(start) >= p.timeout {
			return nil, p.timedOut(taskID, attempt, start)
		}

		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poller) timedOut(taskID string, attempts int, start time.Time) error {
	p.logger.Warn("task poll timed out", "task_id", taskID, "attempts", attempts,
		"elapsed", time.Since(start))
	return ErrTimeout
}
