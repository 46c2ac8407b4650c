// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"strings"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"
)

// capabilityByName maps the symbolic names used in service definitions
// (and in the original property_contexts-adjacent capability lists) to the
// numeric capability values exposed by golang.org/x/sys/unix.
var capabilityByName = map[string]uintptr{
	"CAP_CHOWN":            unix.CAP_CHOWN,
	"CAP_DAC_OVERRIDE":     unix.CAP_DAC_OVERRIDE,
	"CAP_DAC_READ_SEARCH":  unix.CAP_DAC_READ_SEARCH,
	"CAP_FOWNER":           unix.CAP_FOWNER,
	"CAP_FSETID":           unix.CAP_FSETID,
	"CAP_KILL":             unix.CAP_KILL,
	"CAP_SETGID":           unix.CAP_SETGID,
	"CAP_SETUID":           unix.CAP_SETUID,
	"CAP_SETPCAP":          unix.CAP_SETPCAP,
	"CAP_NET_BIND_SERVICE": unix.CAP_NET_BIND_SERVICE,
	"CAP_NET_BROADCAST":    unix.CAP_NET_BROADCAST,
	"CAP_NET_ADMIN":        unix.CAP_NET_ADMIN,
	"CAP_NET_RAW":          unix.CAP_NET_RAW,
	"CAP_IPC_LOCK":         unix.CAP_IPC_LOCK,
	"CAP_IPC_OWNER":        unix.CAP_IPC_OWNER,
	"CAP_SYS_MODULE":       unix.CAP_SYS_MODULE,
	"CAP_SYS_RAWIO":        unix.CAP_SYS_RAWIO,
	"CAP_SYS_CHROOT":       unix.CAP_SYS_CHROOT,
	"CAP_SYS_PTRACE":       unix.CAP_SYS_PTRACE,
	"CAP_SYS_ADMIN":        unix.CAP_SYS_ADMIN,
	"CAP_SYS_BOOT":         unix.CAP_SYS_BOOT,
	"CAP_SYS_NICE":         unix.CAP_SYS_NICE,
	"CAP_SYS_RESOURCE":     unix.CAP_SYS_RESOURCE,
	"CAP_SYS_TIME":         unix.CAP_SYS_TIME,
	"CAP_SYS_TTY_CONFIG":   unix.CAP_SYS_TTY_CONFIG,
	"CAP_MKNOD":            unix.CAP_MKNOD,
	"CAP_AUDIT_WRITE":      unix.CAP_AUDIT_WRITE,
	"CAP_SETFCAP":          unix.CAP_SETFCAP,
	"CAP_WAKE_ALARM":       unix.CAP_WAKE_ALARM,
	"CAP_BLOCK_SUSPEND":    unix.CAP_BLOCK_SUSPEND,
}

// ResolveCapabilities converts the symbolic capability names used in a
// service definition into the numeric values SysProcAttr.AmbientCaps
// expects. An unknown name is an error, not a silent skip: a typo in a
// service's capability list must fail loudly at load time, not leave the
// service quietly under-privileged.
func ResolveCapabilities(names []string) ([]uintptr, error) {
	values := make([]uintptr, 0, len(names))
	for _, name := range names {
		name = strings.ToUpper(strings.TrimSpace(name))
		value, ok := capabilityByName[name]
		if !ok {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		values = append(values, value)
	}
	return values, nil
}

// applyCapabilitySet installs the exact ambient, bounding, and inheritable
// capability set (step 8). It runs inside the childinit shim, after the
// label has been installed and after uid/gid have already changed — the
// bounding-set drop and the ambient-set install are ordered so a capability
// can never be regained once dropped from the bounding set.
//
// When names is empty and uid changed, the inheritable set is cleared
// instead, matching the credential applier's documented fallback: a
// service that does not explicitly request capabilities loses them on a
// uid transition rather than inheriting the parent's set.
func applyCapabilitySet(names []string, uidChanged bool) error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("capability: load process capabilities: %w", err)
	}
	if err := caps.Load(); err != nil {
		return fmt.Errorf("capability: load: %w", err)
	}

	if len(names) == 0 {
		if uidChanged {
			caps.Clear(capability.INHERITABLE)
			caps.Clear(capability.AMBIENT)
			return apply(caps)
		}
		return nil
	}

	resolved, err := ResolveCapabilities(names)
	if err != nil {
		return err
	}

	caps.Clear(capability.CAPS)
	for _, value := range resolved {
		cap := capability.Cap(value)
		caps.Set(capability.BOUNDING|capability.INHERITABLE|capability.AMBIENT|capability.EFFECTIVE|capability.PERMITTED, cap)
	}
	return apply(caps)
}

func apply(caps capability.Capabilities) error {
	if err := caps.Apply(capability.CAPS | capability.BOUNDS | capability.AMBS); err != nil {
		return fmt.Errorf("capability: apply: %w", err)
	}
	return nil
}
