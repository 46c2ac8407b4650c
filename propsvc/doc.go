// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package propsvc implements the property server — component C5. It
// listens on a Unix stream socket for SETPROP/SETPROP2 requests from
// clients, authorizes them against the property-info trie, forwards
// ctl.* and selinux.restorecon_recursive side effects appropriately,
// and exchanges control messages with the supervisor over an internal
// SEQPACKET socket.
package propsvc
