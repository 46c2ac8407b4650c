// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const selinuxXattr = "security.selinux"

// installSecurityLabel writes the process's exec-context security label
// (step 7). It is a best-effort operation on systems without a security
// module configured: ENOTSUP and ENODATA from a filesystem that does not
// support the xattr are treated as success, since a missing label
// authority on the underlying filesystem is a platform limitation, not a
// service misconfiguration.
func installSecurityLabel(label string) error {
	if label == "" {
		return nil
	}
	self, err := os.Readlink("/proc/self/exe")
	if err != nil {
		return fmt.Errorf("label: resolve /proc/self/exe: %w", err)
	}
	err = unix.Setxattr(self, selinuxXattr, []byte(label), 0)
	if err == nil || err == unix.ENOTSUP || err == unix.ENODATA {
		return nil
	}
	return fmt.Errorf("label: setxattr %s=%q: %w", selinuxXattr, label, err)
}

// deriveSecurityLabel computes the security context a child should run
// under when the service definition leaves seclabel empty: the exec-
// context is read from the target binary's own label. Returning the
// caller's own context is treated as a missing domain transition and is
// an error — a service that doesn't actually change domains on exec is a
// configuration mistake, not a silent pass-through.
func deriveSecurityLabel(execPath, callerContext string) (string, error) {
	buf := make([]byte, 256)
	n, err := unix.Getxattr(execPath, selinuxXattr, buf)
	if err != nil {
		if err == unix.ENOTSUP || err == unix.ENODATA {
			return "", nil
		}
		return "", fmt.Errorf("label: getxattr %s on %s: %w", selinuxXattr, execPath, err)
	}
	context := string(buf[:n])
	if context == callerContext {
		return "", fmt.Errorf("label: %s derives to caller's own context %q: missing domain transition", execPath, context)
	}
	return context, nil
}
