// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for coreinit.
//
// Configuration is loaded from a single file specified by:
//   - COREINIT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for coreinit.
type Config struct {
	// Paths configures directory and socket locations.
	Paths PathsConfig `yaml:"paths"`

	// Property configures the property namespace.
	Property PropertyConfig `yaml:"property"`

	// Boot configures boot-time property ingestion.
	Boot BootConfig `yaml:"boot"`
}

// PathsConfig configures directory and socket locations.
type PathsConfig struct {
	// ServiceDefinitions is a directory of YAML service definitions,
	// loaded by supervisor.DefinitionLoader.
	ServiceDefinitions string `yaml:"service_definitions"`

	// PropertySocket is the Unix socket path external clients connect
	// to for SETPROP/SETPROP2 and ctl.* requests.
	PropertySocket string `yaml:"property_socket"`

	// InternalSocket is the SEQPACKET Unix socket carrying internal
	// control messages between coreinit and the property server.
	InternalSocket string `yaml:"internal_socket"`

	// PersistDir is where "persist.*" property values are durably
	// mirrored.
	PersistDir string `yaml:"persist_dir"`

	// PublishedTrie is the path the PropertyInfo trie is published to,
	// alongside its blake3 integrity hash at PublishedTrie+".blake3".
	PublishedTrie string `yaml:"published_trie"`

	// CgroupRoot is the cgroup v2 mount point under which coreinit
	// creates a per-service cgroup.
	CgroupRoot string `yaml:"cgroup_root"`
}

// PropertyConfig configures the property namespace.
type PropertyConfig struct {
	// ContextsFile is the YAML property-contexts file defining the
	// PropertyInfo trie's (pattern, context, type) entries.
	ContextsFile string `yaml:"contexts_file"`

	// AllowLocalOverride enables loading /data/local.prop on top of the
	// fixed default-property ingestion order. Mirrors a debug build
	// flag in the original; left on a config toggle instead since
	// coreinit has no separate debug build variant.
	AllowLocalOverride bool `yaml:"allow_local_override"`
}

// BootConfig configures boot-time property ingestion sources.
type BootConfig struct {
	// CmdlinePath is read for androidboot.* kernel command-line tokens.
	// Default: /proc/cmdline
	CmdlinePath string `yaml:"cmdline_path"`

	// DeviceTreeOverrides is a directory of device-tree override files,
	// each named after a ro.boot.* property.
	DeviceTreeOverrides string `yaml:"device_tree_overrides"`
}

// Default returns the default configuration. These defaults ensure all
// fields have sensible zero-values; the config file is still required.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			ServiceDefinitions: "/etc/coreinit/services",
			PropertySocket:     "/dev/socket/property_service",
			InternalSocket:     "/dev/socket/property_service_for_system_server",
			PersistDir:         "/data/property",
			PublishedTrie:      "/dev/__properties__/property_info",
			CgroupRoot:         "/sys/fs/cgroup/coreinit",
		},
		Property: PropertyConfig{
			ContextsFile:       "/etc/coreinit/property_contexts.yaml",
			AllowLocalOverride: false,
		},
		Boot: BootConfig{
			CmdlinePath:         "/proc/cmdline",
			DeviceTreeOverrides: "/proc/device-tree/firmware/android",
		},
	}
}

// Load loads configuration from the COREINIT_CONFIG environment variable.
//
// There are no fallbacks or defaults beyond Default's zero-values — if
// COREINIT_CONFIG is not set, this fails, keeping configuration
// deterministic and auditable.
func Load() (*Config, error) {
	configPath := os.Getenv("COREINIT_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("COREINIT_CONFIG environment variable not set; " +
			"set it to the path of your coreinit.yaml config file, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// onto Default() and expanding ${VAR} references in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}

	c.Paths.ServiceDefinitions = expandVars(c.Paths.ServiceDefinitions, vars)
	c.Paths.PropertySocket = expandVars(c.Paths.PropertySocket, vars)
	c.Paths.InternalSocket = expandVars(c.Paths.InternalSocket, vars)
	c.Paths.PersistDir = expandVars(c.Paths.PersistDir, vars)
	c.Paths.PublishedTrie = expandVars(c.Paths.PublishedTrie, vars)
	c.Paths.CgroupRoot = expandVars(c.Paths.CgroupRoot, vars)
	c.Property.ContextsFile = expandVars(c.Property.ContextsFile, vars)
	c.Boot.CmdlinePath = expandVars(c.Boot.CmdlinePath, vars)
	c.Boot.DeviceTreeOverrides = expandVars(c.Boot.DeviceTreeOverrides, vars)
}

// varPattern matches ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.PropertySocket == "" {
		errs = append(errs, fmt.Errorf("paths.property_socket is required"))
	}
	if c.Paths.InternalSocket == "" {
		errs = append(errs, fmt.Errorf("paths.internal_socket is required"))
	}
	if c.Paths.ServiceDefinitions == "" {
		errs = append(errs, fmt.Errorf("paths.service_definitions is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured runtime directories if they don't
// already exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.PersistDir, c.Paths.CgroupRoot} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
