// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "golang.org/x/sys/unix"

const (
	ioprioWhoProcess = 1
	ioprioClassShift = 13
)

// setIOPriority applies an I/O scheduling class/priority pair via
// ioprio_set(2). golang.org/x/sys/unix has no portable wrapper for this
// syscall, so it is issued directly — the one place in this package that
// reaches past the unix package's typed helpers, grounded on the same
// raw-syscall idiom x/sys itself uses internally for syscalls it hasn't
// wrapped yet.
func setIOPriority(class IOPrioClass, priority int) error {
	if class == IOPrioClassNone {
		return nil
	}
	ioprio := (int(class) << ioprioClassShift) | priority
	_, _, errno := unix.Syscall(unix.SYS_IOPRIO_SET, ioprioWhoProcess, 0, uintptr(ioprio))
	if errno != 0 {
		return errno
	}
	return nil
}
