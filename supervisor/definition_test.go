// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/coreinit/coreinit/sandbox"
)

func writeDefinitionFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestNewServiceFromDefinitionBasic(t *testing.T) {
	def := Definition{
		Name:       "echo",
		Argv:       []string{"/bin/echo", "hi"},
		Namespaces: []string{"mount", "net"},
		Critical:   true,
		Disabled:   true,
	}

	s, err := NewServiceFromDefinition(def)
	if err != nil {
		t.Fatalf("NewServiceFromDefinition: %v", err)
	}
	if s.Name != "echo" {
		t.Errorf("Name = %q, want echo", s.Name)
	}
	if !s.Namespace.Has(sandbox.NamespaceMount) || !s.Namespace.Has(sandbox.NamespaceNet) {
		t.Errorf("Namespace = %v, want mount|net", s.Namespace)
	}
	if !s.Flags.Has(Critical) || !s.Flags.Has(Disabled) {
		t.Errorf("Flags = %v, want CRITICAL|DISABLED set", s.Flags)
	}
}

func TestNewServiceFromDefinitionRequiresArgv(t *testing.T) {
	_, err := NewServiceFromDefinition(Definition{Name: "broken"})
	if err == nil {
		t.Fatal("expected an error for a definition with no argv")
	}
}

func TestNewServiceFromDefinitionUnknownNamespace(t *testing.T) {
	def := Definition{Name: "svc", Argv: []string{"/bin/true"}, Namespaces: []string{"bogus"}}
	if _, err := NewServiceFromDefinition(def); err == nil {
		t.Fatal("expected an error for an unknown namespace name")
	}
}

func TestNewServiceFromDefinitionUnknownIOPrioClass(t *testing.T) {
	def := Definition{Name: "svc", Argv: []string{"/bin/true"}, IOPrioClass: "bogus"}
	if _, err := NewServiceFromDefinition(def); err == nil {
		t.Fatal("expected an error for an unknown ioprio class")
	}
}

func TestNewServiceFromDefinitionNumericUIDGID(t *testing.T) {
	def := Definition{Name: "svc", Argv: []string{"/bin/true"}, UID: "2000", GID: "2000"}
	s, err := NewServiceFromDefinition(def)
	if err != nil {
		t.Fatalf("NewServiceFromDefinition: %v", err)
	}
	if !s.HasUID || s.UID != 2000 {
		t.Errorf("UID = (%d, %v), want (2000, true)", s.UID, s.HasUID)
	}
	if s.GID != 2000 {
		t.Errorf("GID = %d, want 2000", s.GID)
	}
}

func TestNewServiceFromDefinitionMemoryLimits(t *testing.T) {
	def := Definition{
		Name:           "svc",
		Argv:           []string{"/bin/true"},
		SoftLimitBytes: "256M",
		LimitBytes:     "1G",
	}
	s, err := NewServiceFromDefinition(def)
	if err != nil {
		t.Fatalf("NewServiceFromDefinition: %v", err)
	}
	if s.SoftLimitBytes != 256*1024*1024 {
		t.Errorf("SoftLimitBytes = %d, want %d", s.SoftLimitBytes, 256*1024*1024)
	}
	if s.LimitBytes != 1024*1024*1024 {
		t.Errorf("LimitBytes = %d, want %d", s.LimitBytes, 1024*1024*1024)
	}
}

func TestDefinitionLoaderLoadDirectoryOverrides(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "10-base.yaml", "services:\n  - name: svc\n    argv: [\"/bin/true\"]\n")
	writeDefinitionFile(t, dir, "20-override.yaml", "services:\n  - name: svc\n    argv: [\"/bin/false\"]\n")

	loader := NewDefinitionLoader()
	if err := loader.LoadDirectory(dir); err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}

	services, err := loader.BuildServices()
	if err != nil {
		t.Fatalf("BuildServices: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("BuildServices returned %d services, want 1", len(services))
	}
	if services[0].Argv[0] != "/bin/false" {
		t.Errorf("later file should override earlier: Argv[0] = %q, want /bin/false", services[0].Argv[0])
	}
}

func TestDefinitionLoaderLoadDirectoryMissing(t *testing.T) {
	loader := NewDefinitionLoader()
	if err := loader.LoadDirectory(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Fatalf("LoadDirectory(missing) should not error, got %v", err)
	}
}

func TestDefinitionLoaderRequiresName(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "bad.yaml", "services:\n  - argv: [\"/bin/true\"]\n")

	loader := NewDefinitionLoader()
	if err := loader.LoadDirectory(dir); err == nil {
		t.Fatal("expected an error for a service definition missing a name")
	}
}
