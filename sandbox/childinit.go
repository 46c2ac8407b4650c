// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/coreinit/coreinit/lib/codec"
)

// RunChildInit performs the credential-applier steps that os/exec's
// SysProcAttr cannot express, then execs the target binary. It is invoked
// as the entire body of the supervisor's hidden "childinit" subcommand
// and never returns on success — control passes to the exec'd process. On
// any failure it exits with status 127, matching step 11's documented
// fatal exit code, and never returns to its caller either way.
func RunChildInit() {
	spec, err := readSpec()
	if err != nil {
		fail("read spec", err)
	}

	uidChanged := spec.HasUID && spec.UID != 0

	// Step 1 (PR_SET_KEEPCAPS) is handled by the Go runtime itself when
	// AmbientCaps is non-empty and Credential.Uid != 0 (see command.go);
	// uid/gid/groups (step 2 remainder) were applied by SysProcAttr before
	// this process image existed, so step 2 is already satisfied on entry
	// except for scheduling/IO priority, handled next.
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, spec.Priority); err != nil {
		fail("setpriority", err)
	}
	if err := setIOPriority(spec.IOPrioClass, spec.IOPrioPrio); err != nil {
		fail("ioprio_set", err)
	}

	// Step 3 (namespaces) was applied via Cloneflags before this process
	// image existed.

	// Step 4: export declared environment.
	for k, v := range spec.Env {
		if err := os.Setenv(k, v); err != nil {
			fail("setenv "+k, err)
		}
	}

	// Step 5: create and publish descriptors.
	descriptorEnv, err := createDescriptors(spec.Descriptors)
	if err != nil {
		fail("descriptors", err)
	}
	for k, v := range descriptorEnv {
		os.Setenv(k, v)
	}

	// Step 6: writepid.
	if err := writePIDFiles(spec.WritepidFiles, os.Getpid()); err != nil {
		fail("writepid", err)
	}

	// Step 7: security label.
	if err := installSecurityLabel(spec.SecurityLabel); err != nil {
		fail("label", err)
	}

	// Step 8: capability set.
	if err := applyCapabilitySet(spec.Capabilities, uidChanged); err != nil {
		fail("capabilities", err)
	}

	// Step 9: property-reference expansion in argv[1:].
	argv := ExpandArgv(spec.Argv, spec.PropertyRefs)

	// Step 10: optional debug-suspend.
	if spec.DebugSuspend {
		if err := unix.Kill(os.Getpid(), syscall.SIGSTOP); err != nil {
			fail("debug-suspend", err)
		}
	}

	// Step 11: exec.
	if err := syscall.Exec(argv[0], argv, os.Environ()); err != nil {
		fail("exec "+argv[0], err)
	}
}

func readSpec() (*Spec, error) {
	file := os.NewFile(uintptr(childSpecFD), "spec-pipe")
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	var spec Spec
	if err := codec.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "childinit: %s: %v\n", step, err)
	os.Exit(127)
}
