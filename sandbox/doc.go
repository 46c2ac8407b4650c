// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox applies the uid/gid, scheduling, I/O priority, security
// label, capability set, namespace, and OOM score transitions that a newly
// forked service child must complete before it execs its target binary.
//
// The central type is [Spec], which describes the credential and isolation
// transition a single service invocation requires. [Command] builds an
// *exec.Cmd for that spec: the parts expressible through
// syscall.SysProcAttr (uid/gid/groups, namespace clone flags, ambient
// capabilities) are set directly; everything SysProcAttr cannot express —
// scheduling priority, I/O priority, the security label, the capability
// bounding set, descriptor publication, writepid files, property-reference
// expansion in argv, and the debug-suspend signal — is deferred to a
// re-exec of the calling binary under the hidden "childinit" subcommand,
// which performs those steps and then execs the real target. See
// [Command] and [RunChildInit].
//
// [Validator.ValidateSpec] records pre-flight checks on a Spec: argv[0]
// exists, is not a directory and is executable; a requested uid without a
// passwd entry is reported as a warning (gid is not checked); and an
// explicit security label is at most 4096 bytes long.
package sandbox
