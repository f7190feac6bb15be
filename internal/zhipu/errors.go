// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package zhipu

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// MaxErrorBodyRunes is how much of an error response body HTTPError keeps.
const MaxErrorBodyRunes = 300

// Error variables for common provider failures.
var (
	// ErrMissingAPIKey indicates no API key is configured.
	ErrMissingAPIKey = errors.New("zhipu API key not configured")

	// ErrInvalidResponse indicates the server answered with something unusable.
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrNoContent indicates a stream completed without a single content delta.
	ErrNoContent = errors.New("response contained no content")
)

// =============================================================================
// HTTP ERRORS
// =============================================================================

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	Body       string // trimmed and truncated to MaxErrorBodyRunes
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("zhipu error (HTTP %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("zhipu error (HTTP %d)", e.StatusCode)
}

// newHTTPError builds an HTTPError, truncating the body.
func newHTTPError(status int, body []byte) *HTTPError {
	text := strings.TrimSpace(string(body))
	runes := []rune(text)
	if len(runes) > MaxErrorBodyRunes {
		text = string(runes[:MaxErrorBodyRunes]) + "…"
	}
	return &HTTPError{StatusCode: status, Body: text}
}

// =============================================================================
// DECODE ERRORS
// =============================================================================

// DecodeError is a 2xx response whose body could not be decoded.
type DecodeError struct {
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports DecodeError as an invalid response.
func (e *DecodeError) Is(target error) bool {
	return target == ErrInvalidResponse
}

// =============================================================================
// TRANSPORT ERRORS
// =============================================================================

// TransportKind classifies a network failure.
type TransportKind int

const (
	TransportOther TransportKind = iota
	TransportDNS
	TransportOffline
	TransportTimeout
)

// String returns the kind name.
func (k TransportKind) String() string {
	switch k {
	case TransportDNS:
		return "dns"
	case TransportOffline:
		return "offline"
	case TransportTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// TransportError is a failure to exchange a request with the server.
type TransportError struct {
	Kind TransportKind
	Err  error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed (%s): %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyTransport converts an http.Client error into a TransportError.
// Cancellation of ctx is reported as the context error itself.
func classifyTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &TransportError{Kind: transportKind(err), Err: err}
}

func transportKind(err error) TransportKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return TransportTimeout
		}
		return TransportDNS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETDOWN):
		return TransportOffline
	}
	return TransportOther
}

// IsTransportKind reports whether err is a TransportError of the given kind.
func IsTransportKind(err error, kind TransportKind) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == kind
}
