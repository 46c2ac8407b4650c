// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for coreinit.
//
// Configuration is loaded from a single file specified by either the
// COREINIT_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Property, Boot
//   - [Default] -- returns a Config with coreinit's default paths
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other coreinit packages.
package config
