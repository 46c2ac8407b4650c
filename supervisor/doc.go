// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor owns service lifecycle: forking and re-execing
// children via the sandbox package, reaping them on SIGCHLD, applying
// restart and crash policy, and tracking process cgroups. [Service] holds
// one service's declared configuration and runtime flag bitset;
// [Registry] is the process-wide name-indexed set of Services.
//
// Service definitions are loaded from a directory of YAML files via
// [DefinitionLoader], which resolves symbolic namespace/capability/ioprio
// names into the concrete values [sandbox.Spec] requires.
//
// The registry and its services are meant to be owned by a single
// goroutine — the supervisor main loop described in SPEC_FULL.md §5 — so
// the locking inside Service is a defense against the property server
// goroutine reading state (e.g. for initctl-style introspection), not a
// general-purpose concurrency guarantee for arbitrary concurrent callers.
package supervisor
