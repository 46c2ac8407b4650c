// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"io"
	"os/exec"
	"syscall"
	"testing"
)

func TestCommandBuildsArgv(t *testing.T) {
	spec := &Spec{Argv: []string{"/bin/true"}}

	cmd, closeSpecPipe, err := Command(context.Background(), "/self/exe", spec)
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	defer closeSpecPipe()
	defer drainExtraFiles(cmd)

	if cmd.Path != "/self/exe" {
		t.Errorf("Path = %q, want /self/exe", cmd.Path)
	}
	if len(cmd.Args) != 2 || cmd.Args[1] != ChildInitArg {
		t.Errorf("Args = %v, want [self/exe childinit]", cmd.Args)
	}
	if len(cmd.ExtraFiles) != 1 {
		t.Fatalf("ExtraFiles = %v, want exactly one pipe fd", cmd.ExtraFiles)
	}
}

func TestCommandRejectsEmptyArgv(t *testing.T) {
	_, _, err := Command(context.Background(), "/self/exe", &Spec{})
	if err == nil {
		t.Fatal("expected an error for a Spec with empty argv")
	}
}

func TestCommandSetsCredentialWhenUIDRequested(t *testing.T) {
	spec := &Spec{Argv: []string{"/bin/true"}, HasUID: true, UID: 2000, GID: 2000, SuppGIDs: []int{3003}}

	cmd, closeSpecPipe, err := Command(context.Background(), "/self/exe", spec)
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	defer closeSpecPipe()
	defer drainExtraFiles(cmd)

	attr := cmd.SysProcAttr
	if attr == nil || attr.Credential == nil {
		t.Fatal("expected a Credential to be set")
	}
	if attr.Credential.Uid != 2000 || attr.Credential.Gid != 2000 {
		t.Errorf("Credential = %+v, want uid=2000 gid=2000", attr.Credential)
	}
	if len(attr.Credential.Groups) != 1 || attr.Credential.Groups[0] != 3003 {
		t.Errorf("Credential.Groups = %v, want [3003]", attr.Credential.Groups)
	}
}

func TestCommandNoCredentialWithoutUID(t *testing.T) {
	cmd, closeSpecPipe, err := Command(context.Background(), "/self/exe", &Spec{Argv: []string{"/bin/true"}})
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	defer closeSpecPipe()
	defer drainExtraFiles(cmd)

	attr := cmd.SysProcAttr
	if attr.Credential != nil {
		t.Errorf("Credential = %+v, want nil when HasUID is false", attr.Credential)
	}
}

func TestNamespaceCloneFlags(t *testing.T) {
	flags := NamespaceMount | NamespaceNet
	clone := namespaceCloneFlags(flags)

	if clone&syscall.CLONE_NEWNS == 0 {
		t.Error("expected CLONE_NEWNS")
	}
	if clone&syscall.CLONE_NEWNET == 0 {
		t.Error("expected CLONE_NEWNET")
	}
	if clone&syscall.CLONE_NEWPID != 0 {
		t.Error("did not expect CLONE_NEWPID")
	}
}

func TestNamespaceCloneFlagsNone(t *testing.T) {
	if got := namespaceCloneFlags(0); got != 0 {
		t.Errorf("namespaceCloneFlags(0) = %v, want 0", got)
	}
}

// drainExtraFiles reads the spec pipe's read end to EOF and closes it, so
// the goroutine Command starts to write the encoded spec never blocks on
// a full, unread pipe and the test can exit promptly.
func drainExtraFiles(cmd *exec.Cmd) {
	for _, f := range cmd.ExtraFiles {
		io.Copy(io.Discard, f)
		f.Close()
	}
}
