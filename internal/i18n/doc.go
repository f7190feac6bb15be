// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package i18n holds the user-visible strings shown in the transcript.
//
// Messages live in a golang.org/x/text catalog with Simplified Chinese as
// the primary language and English as the alternative. A Localizer picks
// the closest supported language for a requested tag.
//
// # Usage
//
//	loc := i18n.New("en-US")
//	msg := loc.Join(loc.T(i18n.PrefixChat), loc.T(i18n.Cancelled))
//
// Numbers are passed to messages as pre-formatted strings so that locale
// digit grouping never alters sizes or dimensions.
package i18n
