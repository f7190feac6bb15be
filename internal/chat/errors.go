// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strconv"

	"github.com/jeranaias/glmchat/internal/i18n"
	"github.com/jeranaias/glmchat/internal/tasks"
	"github.com/jeranaias/glmchat/internal/zhipu"
)

// FriendlyError renders err as a short localized message behind the given
// mode prefix, e.g. "请求失败：网络请求超时，请稍后重试。".
func FriendlyError(loc *i18n.Localizer, err error, prefix i18n.Key) string {
	return loc.Join(loc.T(prefix), DescribeError(loc, err))
}

// DescribeError maps err to a localized description.
func DescribeError(loc *i18n.Localizer, err error) string {
	var (
		httpErr      *zhipu.HTTPError
		decodeErr    *zhipu.DecodeError
		transportErr *zhipu.TransportError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, zhipu.ErrMissingAPIKey):
		return loc.T(i18n.MissingAPIKey)
	case errors.As(err, &httpErr):
		status := strconv.Itoa(httpErr.StatusCode)
		if httpErr.Body != "" {
			return loc.T(i18n.HTTPErrorBody, status, httpErr.Body)
		}
		return loc.T(i18n.HTTPError, status)
	case errors.Is(err, tasks.ErrTimeout):
		return loc.T(i18n.PollTimeout)
	case errors.As(err, &decodeErr):
		return loc.T(i18n.DecodeFailed)
	case errors.Is(err, zhipu.ErrNoContent):
		return loc.T(i18n.NoContent)
	case errors.Is(err, zhipu.ErrInvalidResponse):
		return loc.T(i18n.InvalidResponse)
	case errors.As(err, &transportErr):
		switch transportErr.Kind {
		case zhipu.TransportDNS:
			return loc.T(i18n.NetDNS)
		case zhipu.TransportOffline:
			return loc.T(i18n.NetOffline)
		case zhipu.TransportTimeout:
			return loc.T(i18n.NetTimeout)
		default:
			return loc.T(i18n.NetOther, transportErr.Err.Error())
		}
	default:
		return err.Error()
	}
}

// isCancellation reports whether err ended a handler because ctx was
// cancelled.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
