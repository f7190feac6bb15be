// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for glmchat.
//
// Settings are read from a TOML file, layered over built-in defaults, and
// then overridden by environment variables.
//
// # Configuration Precedence
//
//   - Environment variables (ZHIPU_API_KEY, GLMCHAT_*)
//   - ~/.glmchat/config.toml (GLMCHAT_HOME replaces ~/.glmchat)
//   - Built-in defaults
//
// A .env file in the working directory or the config directory is loaded
// into the environment first by LoadDotEnv; variables already set win.
//
// # Usage
//
//	config.LoadDotEnv()
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	key := cfg.APIKey()
package config
