// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writableExecutable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestValidateSpecPasses(t *testing.T) {
	exe := writableExecutable(t)
	spec := &Spec{Argv: []string{exe}}

	v := NewValidator()
	v.ValidateSpec(spec)

	if v.HasErrors() {
		t.Fatalf("unexpected errors: %+v", v.Results())
	}
}

func TestValidateSpecMissingArgv0(t *testing.T) {
	spec := &Spec{Argv: []string{"/nonexistent/path/to/binary"}}

	v := NewValidator()
	v.ValidateSpec(spec)

	if !v.HasErrors() {
		t.Fatal("expected an error for a nonexistent argv[0]")
	}
}

func TestValidateSpecEmptyArgv(t *testing.T) {
	spec := &Spec{}

	v := NewValidator()
	v.ValidateSpec(spec)

	if !v.HasErrors() {
		t.Fatal("expected an error for empty argv")
	}
}

func TestValidateSpecNotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	spec := &Spec{Argv: []string{path}}
	v := NewValidator()
	v.ValidateSpec(spec)

	if !v.HasErrors() {
		t.Fatal("expected an error for a non-executable argv[0]")
	}
}

func TestValidateSpecLabelTooLong(t *testing.T) {
	exe := writableExecutable(t)
	spec := &Spec{Argv: []string{exe}, SecurityLabel: string(make([]byte, 5000))}

	v := NewValidator()
	v.ValidateSpec(spec)

	if !v.HasErrors() {
		t.Fatal("expected an error for an oversized security label")
	}
}

func TestValidateSpecUnknownUID(t *testing.T) {
	exe := writableExecutable(t)
	spec := &Spec{Argv: []string{exe}, HasUID: true, UID: 999999}

	v := NewValidator()
	v.ValidateSpec(spec)

	if v.HasErrors() {
		t.Fatalf("an unresolved uid should warn, not fail: %+v", v.Results())
	}

	found := false
	for _, r := range v.Results() {
		if r.Name == "credentials" && r.Warning {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning result for the unresolved uid")
	}
}

func TestPrintResults(t *testing.T) {
	exe := writableExecutable(t)
	spec := &Spec{Argv: []string{exe}}

	v := NewValidator()
	v.ValidateSpec(spec)

	var buf bytes.Buffer
	v.PrintResults(&buf)

	if !bytes.Contains(buf.Bytes(), []byte("spec ready to start")) {
		t.Errorf("PrintResults output missing ready message: %s", buf.String())
	}
}
