// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultFile describes one entry in the boot-time ingestion order: a
// primary path plus fallback paths tried in order when the primary is
// absent, and whether the file's entries should be filtered to ro.* only.
type DefaultFile struct {
	Paths      []string
	ROOnly     bool
}

// DefaultIngestionOrder is the fixed override order: platform defaults,
// system, system_ext, vendor (default.prop then build.prop), odm (with
// legacy fallback), product, factory (ro.* filtered), and the local
// override file only when allowLocalOverride is true. There is no debug
// overlay entry.
func DefaultIngestionOrder(allowLocalOverride bool) []DefaultFile {
	order := []DefaultFile{
		{Paths: []string{"/system/etc/prop.default", "/prop.default", "/default.prop"}},
		{Paths: []string{"/system/build.prop"}},
		{Paths: []string{"/system_ext/build.prop"}},
		{Paths: []string{"/vendor/default.prop"}},
		{Paths: []string{"/vendor/build.prop"}},
		{Paths: []string{"/odm/etc/build.prop", "/odm/default.prop", "/odm/build.prop"}},
		{Paths: []string{"/product/build.prop"}},
		{Paths: []string{"/factory/factory.prop"}, ROOnly: true},
	}
	if allowLocalOverride {
		order = append(order, DefaultFile{Paths: []string{"/data/local.prop"}})
	}
	return order
}

// LoadDefaultsInto parses every file in order and commits the resulting
// map into store, later files overriding earlier ones regardless of
// ro.* prefix (the override happens in the local map, before the single
// commit to the store — see §4.4 step 7).
func LoadDefaultsInto(store *Store, order []DefaultFile, expand func(string) string) error {
	merged := make(map[string]string)
	for _, file := range order {
		for _, path := range file.Paths {
			entries, err := parsePropFile(path, expand)
			if err != nil {
				return err
			}
			if entries == nil {
				continue
			}
			for k, v := range entries {
				if file.ROOnly && !strings.HasPrefix(k, "ro.") {
					continue
				}
				merged[k] = v
			}
			break // First existing path among the fallbacks wins.
		}
	}
	for name, value := range merged {
		store.Set(name, value)
	}
	return nil
}

// parsePropFile parses one key=value file with '#' comments and
// "import <file> [filter]" directives. filter "prefix.*" is a prefix
// match, otherwise an exact match; import paths obey property expansion.
// Returns nil (not an error) when path does not exist.
func parsePropFile(path string, expand func(string) string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("property: open %s: %w", path, err)
	}
	defer f.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "import ") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			importPath := fields[1]
			if expand != nil {
				importPath = expand(importPath)
			}
			var filter string
			if len(fields) >= 3 {
				filter = fields[2]
			}
			imported, err := parsePropFile(importPath, expand)
			if err != nil {
				return nil, err
			}
			for k, v := range imported {
				if matchesImportFilter(filter, k) {
					result[k] = v
				}
			}
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		result[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("property: scan %s: %w", path, err)
	}
	return result, nil
}

func matchesImportFilter(filter, key string) bool {
	if filter == "" {
		return true
	}
	if strings.HasSuffix(filter, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(filter, "*"))
	}
	return filter == key
}

// IngestKernelCmdline reads /proc/cmdline and maps androidboot.<name>
// tokens to ro.boot.<name>; if the "qemu" token is present, also forwards
// every token as ro.kernel.<k>.
func IngestKernelCmdline(store *Store, cmdlinePath string) error {
	data, err := os.ReadFile(cmdlinePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("property: read %s: %w", cmdlinePath, err)
	}
	tokens := strings.Fields(string(data))

	isQemu := false
	for _, tok := range tokens {
		if tok == "qemu" {
			isQemu = true
			break
		}
	}

	for _, tok := range tokens {
		key, value, hasValue := strings.Cut(tok, "=")
		if !hasValue {
			value = "1"
		}
		if after, ok := cutPrefix(key, "androidboot."); ok {
			store.Set("ro.boot."+after, value)
		}
		if isQemu {
			store.Set("ro.kernel."+key, value)
		}
	}
	return nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

// IngestDeviceTreeOverrides reads each file in dir as a ro.boot.<name>
// override, replacing ',' with '.' in the file content, matching the
// original device-tree override convention.
func IngestDeviceTreeOverrides(store *Store, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("property: read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(dir + "/" + e.Name())
		if err != nil {
			continue
		}
		value := strings.ReplaceAll(strings.TrimRight(string(data), "\x00\n"), ",", ".")
		store.Set("ro.boot."+e.Name(), value)
	}
	return nil
}

// bootAlias is one ro.boot.* -> ro.* alias export with a declared default.
type bootAlias struct {
	Boot    string
	Alias   string
	Default string
}

var bootAliases = []bootAlias{
	{"ro.boot.serialno", "ro.serialno", "unknown"},
	{"ro.boot.bootmode", "ro.bootmode", "unknown"},
	{"ro.boot.baseband", "ro.baseband", "unknown"},
	{"ro.boot.bootloader", "ro.bootloader", "unknown"},
	{"ro.boot.hardware", "ro.hardware", "unknown"},
	{"ro.boot.revision", "ro.revision", "0"},
}

// ExportBootAliases copies ro.boot.* values to their ro.* alias names,
// falling back to the declared default when the boot value is unset.
func ExportBootAliases(store *Store) {
	for _, alias := range bootAliases {
		value, ok := store.Get(alias.Boot)
		if !ok || value == "" {
			value = alias.Default
		}
		store.Set(alias.Alias, value)
	}
}

// DeriveBuildFingerprint formats brand/product/device:release/id/incremental,
// appends "/"+tags when tags is non-empty, and stores the result as
// ro.build.fingerprint.
func DeriveBuildFingerprint(store *Store, brand, product, device, release, id, incremental, tags string) {
	fingerprint := fmt.Sprintf("%s/%s/%s:%s/%s/%s", brand, product, device, release, id, incremental)
	if tags != "" {
		fingerprint += "/" + tags
	}
	store.Set("ro.build.fingerprint", fingerprint)
}
