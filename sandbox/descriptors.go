// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// createDescriptors creates and chowns the sockets/fifos declared by a
// service's Descriptors list (step 5), returning the environment variable
// assignments (INIT_SOCKET_<upper-cased name> set to the node's path, in
// the style of the original's ANDROID_SOCKET_<name> convention) that
// should be exported into the child's environment so it can locate them.
func createDescriptors(descriptors []Descriptor) (map[string]string, error) {
	env := make(map[string]string, len(descriptors))
	for _, d := range descriptors {
		if err := createDescriptor(d); err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", d.Name, err)
		}
		env["INIT_SOCKET_"+strings.ToUpper(d.Name)] = d.Path
	}
	return env, nil
}

func createDescriptor(d Descriptor) error {
	switch d.Type {
	case "fifo":
		if err := unix.Mkfifo(d.Path, d.Mode); err != nil && err != unix.EEXIST {
			return fmt.Errorf("mkfifo %s: %w", d.Path, err)
		}
	case "sock_stream", "sock_dgram", "sock_seqpacket":
		network := map[string]string{
			"sock_stream":    "unix",
			"sock_dgram":     "unixgram",
			"sock_seqpacket": "unixpacket",
		}[d.Type]
		_ = os.Remove(d.Path)
		ln, err := net.Listen(network, d.Path)
		if err != nil {
			return fmt.Errorf("listen %s %s: %w", network, d.Path, err)
		}
		// The descriptor is published for the child to inherit by path,
		// not by fd number, so the listener is not kept open by the
		// parent beyond creation; the child re-opens or re-binds as its
		// protocol requires. Closing here avoids leaking the listener
		// into the supervisor's own fd table.
		ln.Close()
	default:
		return fmt.Errorf("unknown descriptor type %q", d.Type)
	}
	if err := os.Chmod(d.Path, os.FileMode(d.Mode)); err != nil {
		return fmt.Errorf("chmod %s: %w", d.Path, err)
	}
	if d.UID != 0 || d.GID != 0 {
		if err := os.Chown(d.Path, d.UID, d.GID); err != nil {
			return fmt.Errorf("chown %s: %w", d.Path, err)
		}
	}
	return nil
}

// writePIDFiles writes the calling process's pid into each configured
// writepid file (step 6).
func writePIDFiles(paths []string, pid int) error {
	for _, path := range paths {
		if err := os.WriteFile(path, []byte(fmt.Sprintf("%d", pid)), 0644); err != nil {
			return fmt.Errorf("writepid %s: %w", path, err)
		}
	}
	return nil
}
