// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"path/filepath"
	"testing"
)

func TestIsLegalName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"ro.build.type", true},
		{"sys.boot_completed", true},
		{"persist.sys.locale", true},
		{"", false},
		{"a..b", false},
		{".leading", false},
		{"trailing.", false},
		{"has space", false},
		{"has/slash", false},
	}
	for _, c := range cases {
		if got := IsLegalName(c.name); got != c.want {
			t.Errorf("IsLegalName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsLegalNameMaxLength(t *testing.T) {
	ok := make([]byte, MaxNameLength)
	for i := range ok {
		ok[i] = 'a'
	}
	if !IsLegalName(string(ok)) {
		t.Error("a name at MaxNameLength should be legal")
	}

	tooLong := append(ok, 'a')
	if IsLegalName(string(tooLong)) {
		t.Error("a name past MaxNameLength should be illegal")
	}
}

func TestStoreSetGet(t *testing.T) {
	s := NewStore("", nil)

	if result := s.Set("sys.foo", "bar"); result != Success {
		t.Fatalf("Set = %v, want Success", result)
	}

	value, ok := s.Get("sys.foo")
	if !ok || value != "bar" {
		t.Errorf("Get = (%q, %v), want (bar, true)", value, ok)
	}
}

func TestStoreSetInvalidName(t *testing.T) {
	s := NewStore("", nil)
	if result := s.Set("", "bar"); result != InvalidName {
		t.Errorf("Set(empty name) = %v, want InvalidName", result)
	}
}

func TestStoreSetValueTooLong(t *testing.T) {
	s := NewStore("", nil)
	long := make([]byte, MaxValueLength+1)
	if result := s.Set("sys.foo", string(long)); result != InvalidValue {
		t.Errorf("Set(oversized value) = %v, want InvalidValue", result)
	}
}

func TestStoreReadOnlyWriteOnce(t *testing.T) {
	s := NewStore("", nil)

	if result := s.Set("ro.boot.serial", "abc123"); result != Success {
		t.Fatalf("first Set = %v, want Success", result)
	}
	if result := s.Set("ro.boot.serial", "changed"); result != ReadOnlyAlready {
		t.Fatalf("second Set = %v, want ReadOnlyAlready", result)
	}

	value, _ := s.Get("ro.boot.serial")
	if value != "abc123" {
		t.Errorf("ro. value changed after a rejected write: got %q", value)
	}
}

func TestStoreSnapshot(t *testing.T) {
	s := NewStore("", nil)
	s.Set("a.b", "1")
	s.Set("c.d", "2")

	snap := s.Snapshot()
	if len(snap) != 2 || snap["a.b"] != "1" || snap["c.d"] != "2" {
		t.Errorf("Snapshot = %v", snap)
	}

	// Mutating the snapshot must not affect the store.
	snap["a.b"] = "mutated"
	value, _ := s.Get("a.b")
	if value != "1" {
		t.Error("Snapshot should return an independent copy")
	}
}

func TestStorePersistentMirroring(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "persist")
	s := NewStore(dir, nil)

	// Before the persistent load completes, writes are not mirrored.
	s.Set("persist.sys.locale", "en-US")
	if _, err := LoadPersistentProperties(dir); err != nil {
		t.Fatalf("LoadPersistentProperties: %v", err)
	}

	s.MarkPersistentLoaded()
	if result := s.Set("persist.sys.locale", "fr-FR"); result != Success {
		t.Fatalf("Set after MarkPersistentLoaded = %v", result)
	}

	values, err := LoadPersistentProperties(dir)
	if err != nil {
		t.Fatalf("LoadPersistentProperties: %v", err)
	}
	if values["persist.sys.locale"] != "fr-FR" {
		t.Errorf("persisted values = %v, want persist.sys.locale=fr-FR", values)
	}
}

func TestStoreChangeNotification(t *testing.T) {
	s := NewStore("", nil)

	var gotName, gotValue string
	s.SetOnChange(func(name, value string) {
		gotName, gotValue = name, value
	})

	// Notifications are suppressed until StartAcceptingMessages runs.
	s.Set("sys.ready", "1")
	if gotName != "" {
		t.Fatal("change callback fired before StartAcceptingMessages")
	}

	s.StartAcceptingMessages()
	s.Set("sys.ready", "2")
	if gotName != "sys.ready" || gotValue != "2" {
		t.Errorf("change callback saw (%q, %q), want (sys.ready, 2)", gotName, gotValue)
	}

	s.StopAcceptingMessages()
	s.Set("sys.ready", "3")
	if gotValue != "2" {
		t.Error("change callback fired after StopAcceptingMessages")
	}
}

func TestStoreTypedValidation(t *testing.T) {
	trie := NewInfoTrie()
	trie.Load([]Info{{Pattern: "sys.retries", Type: "int"}})
	s := NewStore("", trie)

	if result := s.Set("sys.retries", "not-a-number"); result != InvalidValue {
		t.Errorf("Set(non-int value) = %v, want InvalidValue", result)
	}
	if result := s.Set("sys.retries", "3"); result != Success {
		t.Errorf("Set(valid int value) = %v, want Success", result)
	}
}
