// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInfoTrieLookupExact(t *testing.T) {
	trie := NewInfoTrie()
	trie.Load([]Info{
		{Pattern: "ro.build.type", Context: "u:object_r:build_prop:s0", Type: "string"},
	})

	info, ok := trie.Lookup("ro.build.type")
	if !ok || info.Context != "u:object_r:build_prop:s0" {
		t.Errorf("Lookup = (%+v, %v)", info, ok)
	}

	if _, ok := trie.Lookup("ro.build.version"); ok {
		t.Error("Lookup should not match an unrelated name")
	}
}

func TestInfoTrieLookupMostSpecificPrefix(t *testing.T) {
	trie := NewInfoTrie()
	trie.Load([]Info{
		{Pattern: "sys.*", Context: "u:object_r:sys_prop:s0", Type: "string"},
		{Pattern: "sys.usb.*", Context: "u:object_r:usb_prop:s0", Type: "string"},
	})

	info, ok := trie.Lookup("sys.usb.config")
	if !ok {
		t.Fatal("Lookup should match the wildcard prefix")
	}
	if info.Context != "u:object_r:usb_prop:s0" {
		t.Errorf("Lookup chose %q, want the more specific sys.usb.* entry", info.Context)
	}

	info, ok = trie.Lookup("sys.other")
	if !ok || info.Context != "u:object_r:sys_prop:s0" {
		t.Errorf("Lookup(sys.other) = (%+v, %v), want the sys.* entry", info, ok)
	}
}

func TestInfoTrieTypeFor(t *testing.T) {
	trie := NewInfoTrie()
	trie.Load([]Info{{Pattern: "sys.retries", Type: "int"}})

	typ, ok := trie.TypeFor("sys.retries")
	if !ok || typ != "int" {
		t.Errorf("TypeFor = (%q, %v), want (int, true)", typ, ok)
	}

	if _, ok := trie.TypeFor("sys.unknown"); ok {
		t.Error("TypeFor should report false for an unmatched name")
	}
}

func TestLoadContextsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "property_contexts.yaml")
	doc := `properties:
  - name: "ro.build.*"
    context: "u:object_r:build_prop:s0"
    type: string
  - name: "sys.retries"
    context: "u:object_r:sys_prop:s0"
    type: int
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := LoadContextsFile(path)
	if err != nil {
		t.Fatalf("LoadContextsFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("LoadContextsFile returned %d entries, want 2", len(entries))
	}
}

func TestLoadContextsFileMissing(t *testing.T) {
	entries, err := LoadContextsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadContextsFile(missing) should not error, got %v", err)
	}
	if entries != nil {
		t.Errorf("LoadContextsFile(missing) = %v, want nil", entries)
	}
}

func TestPublishAndLoadPublished(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "property_info")

	trie := NewInfoTrie()
	trie.Load([]Info{
		{Pattern: "ro.build.type", Context: "u:object_r:build_prop:s0", Type: "string"},
		{Pattern: "sys.*", Context: "u:object_r:sys_prop:s0", Type: "string"},
	})

	if err := Publish(trie, path); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	loaded, err := LoadPublished(path)
	if err != nil {
		t.Fatalf("LoadPublished: %v", err)
	}

	info, ok := loaded.Lookup("ro.build.type")
	if !ok || info.Context != "u:object_r:build_prop:s0" {
		t.Errorf("LoadPublished round-trip lost ro.build.type: %+v, %v", info, ok)
	}
}

func TestLoadPublishedTornWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "property_info")

	trie := NewInfoTrie()
	trie.Load([]Info{{Pattern: "sys.foo", Type: "string"}})
	if err := Publish(trie, path); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Corrupt the payload without updating its recorded hash.
	if err := os.WriteFile(path, []byte("corrupted"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadPublished(path); err == nil {
		t.Fatal("LoadPublished should reject a payload that fails its integrity check")
	}
}

func TestValidateType(t *testing.T) {
	cases := []struct {
		typ, value string
		want       bool
	}{
		{"", "anything", true},
		{"string", "anything", true},
		{"int", "42", true},
		{"int", "-3", true},
		{"int", "not-a-number", false},
		{"uint", "42", true},
		{"uint", "-3", false},
		{"bool", "1", true},
		{"bool", "true", true},
		{"bool", "maybe", false},
		{"enum:a|b|c", "b", true},
		{"enum:a|b|c", "d", false},
	}
	for _, c := range cases {
		if got := validateType(c.typ, c.value); got != c.want {
			t.Errorf("validateType(%q, %q) = %v, want %v", c.typ, c.value, got, c.want)
		}
	}
}
