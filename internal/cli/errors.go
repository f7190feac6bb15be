// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/glmchat/internal/config"
	"github.com/jeranaias/glmchat/internal/storage"
	"github.com/jeranaias/glmchat/internal/tasks"
	"github.com/jeranaias/glmchat/internal/zhipu"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected API key
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// UsageError represents invalid arguments or flags.
type UsageError struct {
	Field   string // Flag or argument that was invalid
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid usage (optional)
}

func (e *UsageError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewUsageError creates a usage error.
func NewUsageError(field, value, reason string) error {
	return &UsageError{Field: field, Value: value, Reason: reason}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Field: argName, Reason: "required argument missing", Example: usage}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode determines the process exit code for an error returned by a
// command.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr     *UsageError
		validateErrs config.ValidateErrors
		httpErr      *zhipu.HTTPError
		transportErr *zhipu.TransportError
	)

	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.As(err, &validateErrs):
		return ExitConfigError
	case errors.Is(err, config.ErrNoAPIKey), errors.Is(err, zhipu.ErrMissingAPIKey):
		return ExitAuthError
	case errors.As(err, &httpErr) && (httpErr.StatusCode == 401 || httpErr.StatusCode == 403):
		return ExitAuthError
	case errors.Is(err, storage.ErrConversationNotFound):
		return ExitNotFoundError
	case errors.Is(err, tasks.ErrTimeout):
		return ExitTimeoutError
	case errors.As(err, &transportErr):
		if transportErr.Kind == zhipu.TransportTimeout {
			return ExitTimeoutError
		}
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}
