// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreinit/coreinit/lib/atomicfile"
)

// persistFileName maps a persist.* property name onto a filesystem-safe,
// round-trip-safe filename. Dots become "%2E" rather than "_": the legal
// property alphabet already permits '_' (store.go's nameLegal), so a
// plain dot<->underscore swap would corrupt any name that legally
// contains one (persist.my_key would reload as persist.my.key). '%' is
// outside the legal alphabet, so "%2E" can't collide with a real
// character and the mapping is unambiguous to reverse.
func persistFileName(name string) string {
	return strings.ReplaceAll(name, ".", "%2E")
}

// parsePersistFileName reverses persistFileName.
func parsePersistFileName(fileName string) string {
	return strings.ReplaceAll(fileName, "%2E", ".")
}

func writePersistentProperty(dir, name, value string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("property: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, persistFileName(name))
	return atomicfile.Write(path, []byte(value), 0644)
}

// LoadPersistentProperties reads every persist.* file in dir and returns
// the name/value pairs it finds. A missing directory yields an empty map,
// not an error — no persist.* writes have ever happened yet.
func LoadPersistentProperties(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("property: read dir %s: %w", dir, err)
	}
	values := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		name := parsePersistFileName(e.Name())
		values[name] = string(data)
	}
	return values, nil
}

// LoadAndApplyPersistentProperties loads persist.* files from dir and
// Sets each into the store, then marks the store persistent-loaded so
// future persist.* Sets are mirrored durably. Called once at server
// startup, in response to the internal socket's LoadPersistentProperties
// control message.
func (s *Store) LoadAndApplyPersistentProperties() error {
	if s.persistDir == "" {
		s.MarkPersistentLoaded()
		return nil
	}
	values, err := LoadPersistentProperties(s.persistDir)
	if err != nil {
		return err
	}
	for name, value := range values {
		s.Set(name, value)
	}
	s.MarkPersistentLoaded()
	return nil
}
