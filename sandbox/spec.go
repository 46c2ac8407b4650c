// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

// NamespaceFlags is a bitset of Linux namespaces a service child should
// enter before exec. It mirrors the subset named by the credential
// applier: mount, network, pid, uts, and ipc.
type NamespaceFlags uint8

const (
	NamespaceMount NamespaceFlags = 1 << iota
	NamespaceNet
	NamespacePID
	NamespaceUTS
	NamespaceIPC
)

// Has reports whether every bit in want is set in f.
func (f NamespaceFlags) Has(want NamespaceFlags) bool {
	return f&want == want
}

// IOPrioClass names the Linux I/O scheduling classes accepted by
// ioprio_set(2).
type IOPrioClass int

const (
	IOPrioClassNone IOPrioClass = iota
	IOPrioClassRealtime
	IOPrioClassBestEffort
	IOPrioClassIdle
)

// Descriptor describes a socket or fifo the child should create and
// publish into its environment before exec, using the computed security
// context for the created node.
type Descriptor struct {
	Name string // base name; "foo" is published as INIT_SOCKET_FOO=<Path>.
	Type string // "sock_stream", "sock_dgram", "sock_seqpacket", or "fifo".
	Path string
	Mode uint32
	UID  int
	GID  int
}

// Spec describes the full credential and isolation transition a single
// service invocation must apply before it execs Argv. It is built by the
// supervisor from a Service definition and is the unit of work handed to
// both [Command] (parent-side exec.Cmd construction) and the childinit
// re-exec shim (everything SysProcAttr cannot express).
type Spec struct {
	Argv []string
	Env  map[string]string

	UID       int
	GID       int
	SuppGIDs  []int
	HasUID    bool // false means "do not change uid" (stay root).
	Namespace NamespaceFlags

	// Capabilities, if non-nil, is the exact ambient+bounding+inheritable
	// capability set to apply. A nil set with HasUID true means "drop
	// inheritable capabilities on uid change", matching step 8's fallback.
	Capabilities []string // symbolic names, e.g. "CAP_NET_ADMIN".

	Priority    int // scheduling priority (nice value).
	IOPrioClass IOPrioClass
	IOPrioPrio  int

	SecurityLabel string // exec-context label; empty means "derive from file".

	Descriptors    []Descriptor
	WritepidFiles  []string
	ConsolePath    string

	// PropertyRefs is a pre-resolved snapshot of the property values
	// referenced by ${name} / ${name:-default} expressions in Argv[1:],
	// captured by the parent at Start() time. See SPEC_FULL.md §4.1 for
	// why expansion happens here instead of in the child.
	PropertyRefs map[string]string

	DebugSuspend bool
}

// EffectiveUID returns the uid the child should run as, or 0 (root) when
// HasUID is false.
func (s *Spec) EffectiveUID() int {
	if !s.HasUID {
		return 0
	}
	return s.UID
}
