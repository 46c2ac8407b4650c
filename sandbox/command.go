// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/coreinit/coreinit/lib/codec"
)

// childSpecFD is the file descriptor number, relative to the child's own
// table, that carries the CBOR-encoded Spec. It is the first entry in
// ExtraFiles, which os/exec always places starting at fd 3.
const childSpecFD = 3

// ChildInitArg is the argv[1] value that selects the re-exec shim
// subcommand in the supervisor's own binary.
const ChildInitArg = "childinit"

// Command builds the *exec.Cmd for a service invocation. The parts
// SysProcAttr can express directly — uid/gid/groups, namespace clone
// flags, and ambient capabilities — are set on the returned command
// unconditionally; the rest of the Spec travels across an inherited pipe
// to the childinit re-exec shim, which applies it before the real exec.
//
// selfExe is the path to the supervisor's own binary (normally
// "/proc/self/exe"); it is a parameter rather than hard-coded so tests can
// point it at a stub binary.
//
// The returned closeParentEnd must be called once, after cmd.Start()
// returns (success or failure). os/exec dup2's ExtraFiles into the child
// during Start but never closes the parent's copy itself, so without this
// call the pipe's read end leaks one fd per service start.
func Command(ctx context.Context, selfExe string, spec *Spec) (cmd *exec.Cmd, closeParentEnd func(), err error) {
	if len(spec.Argv) == 0 {
		return nil, nil, fmt.Errorf("sandbox: spec has empty argv")
	}

	encoded, err := codec.Marshal(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("sandbox: encode spec: %w", err)
	}

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("sandbox: create spec pipe: %w", err)
	}

	cmd = exec.CommandContext(ctx, selfExe, ChildInitArg)
	cmd.ExtraFiles = []*os.File{readEnd}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr

	attr := &syscall.SysProcAttr{Setpgid: true}
	if spec.HasUID {
		groups := make([]uint32, len(spec.SuppGIDs))
		for i, gid := range spec.SuppGIDs {
			groups[i] = uint32(gid)
		}
		attr.Credential = &syscall.Credential{
			Uid:    uint32(spec.UID),
			Gid:    uint32(spec.GID),
			Groups: groups,
		}
	}
	if caps, err := ResolveCapabilities(spec.Capabilities); err == nil && len(caps) > 0 {
		attr.AmbientCaps = caps
	}
	attr.Cloneflags = namespaceCloneFlags(spec.Namespace)
	cmd.SysProcAttr = attr

	// Write the encoded spec to the pipe in a goroutine started just
	// before Start, the same pattern os/exec itself uses for Stdin pipes:
	// the write must not block command startup, and the write end must be
	// closed by the parent after Start so the child's read sees EOF.
	go func() {
		defer writeEnd.Close()
		_, _ = writeEnd.Write(encoded)
	}()

	return cmd, func() { readEnd.Close() }, nil
}

func namespaceCloneFlags(flags NamespaceFlags) uintptr {
	var clone uintptr
	if flags.Has(NamespaceMount) {
		clone |= syscall.CLONE_NEWNS
	}
	if flags.Has(NamespaceNet) {
		clone |= syscall.CLONE_NEWNET
	}
	if flags.Has(NamespacePID) {
		clone |= syscall.CLONE_NEWPID
	}
	if flags.Has(NamespaceUTS) {
		clone |= syscall.CLONE_NEWUTS
	}
	if flags.Has(NamespaceIPC) {
		clone |= syscall.CLONE_NEWIPC
	}
	return clone
}
