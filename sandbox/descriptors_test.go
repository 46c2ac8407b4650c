// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateDescriptorsFifo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctl-socket")

	env, err := createDescriptors([]Descriptor{
		{Name: "ctl", Type: "fifo", Path: path, Mode: 0660},
	})
	if err != nil {
		t.Fatalf("createDescriptors: %v", err)
	}

	if env["INIT_SOCKET_CTL"] != path {
		t.Errorf("env = %v, want INIT_SOCKET_CTL=%s", env, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat %s: %v", path, err)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		t.Errorf("%s is not a fifo: mode=%v", path, info.Mode())
	}
}

func TestCreateDescriptorsUnixSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc.sock")

	env, err := createDescriptors([]Descriptor{
		{Name: "main", Type: "sock_stream", Path: path, Mode: 0660},
	})
	if err != nil {
		t.Fatalf("createDescriptors: %v", err)
	}
	if env["INIT_SOCKET_MAIN"] != path {
		t.Errorf("env = %v", env)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist after creation: %v", path, err)
	}
}

func TestCreateDescriptorsUnknownType(t *testing.T) {
	dir := t.TempDir()
	_, err := createDescriptors([]Descriptor{
		{Name: "bad", Type: "not-a-real-type", Path: filepath.Join(dir, "x")},
	})
	if err == nil {
		t.Fatal("expected an error for an unknown descriptor type")
	}
}

func TestWritePIDFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.pid")
	p2 := filepath.Join(dir, "b.pid")

	if err := writePIDFiles([]string{p1, p2}, 4242); err != nil {
		t.Fatalf("writePIDFiles: %v", err)
	}

	for _, p := range []string{p1, p2} {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("ReadFile %s: %v", p, err)
		}
		if string(data) != "4242" {
			t.Errorf("%s content = %q, want 4242", p, data)
		}
	}
}

func TestWritePIDFilesEmpty(t *testing.T) {
	if err := writePIDFiles(nil, 1); err != nil {
		t.Fatalf("writePIDFiles(nil) = %v, want nil error", err)
	}
}
