// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package propsvc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Cmd identifies the client-socket request type.
type Cmd uint32

const (
	// CmdSetProp is the legacy fixed-frame SETPROP request.
	CmdSetProp Cmd = 1
	// CmdSetProp2 is the length-prefixed SETPROP2 request.
	CmdSetProp2 Cmd = 2
)

// ErrorCode is the uint32 result code returned to clients, matching
// SPEC_FULL.md §6's table exactly.
type ErrorCode uint32

const (
	Success              ErrorCode = 0
	ReadCmd              ErrorCode = 1
	ReadData             ErrorCode = 2
	InvalidCmd           ErrorCode = 3
	InvalidName          ErrorCode = 4
	InvalidValue         ErrorCode = 5
	PermissionDenied     ErrorCode = 6
	SetFailed            ErrorCode = 7
	ReadOnlyAlready      ErrorCode = 8
	ControlMessageError  ErrorCode = 9
)

// resultDeferredToSupervisor is an internal sentinel (never sent on
// the wire) meaning the client's descriptor was transferred and the
// supervisor, not this goroutine, owns writing the reply.
const resultDeferredToSupervisor ErrorCode = 1<<32 - 1

func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "success"
	case ReadCmd:
		return "read-cmd"
	case ReadData:
		return "read-data"
	case InvalidCmd:
		return "invalid-cmd"
	case InvalidName:
		return "invalid-name"
	case InvalidValue:
		return "invalid-value"
	case PermissionDenied:
		return "permission-denied"
	case SetFailed:
		return "set-failed"
	case ReadOnlyAlready:
		return "read-only-already"
	case ControlMessageError:
		return "control-message-error"
	default:
		return "unknown"
	}
}

// propNameMax and propValueMax are the legacy SETPROP frame's fixed
// field widths: a 32-byte null-terminated name and a 92-byte
// null-terminated value.
const (
	propNameMax  = 32
	propValueMax = 92
)

// maxStringLen bounds SETPROP2's length-prefixed name/value fields;
// longer strings are rejected before any allocation.
const maxStringLen = 65535

// readUint32 reads a big-endian uint32, respecting the deadline
// already set on r by the caller.
func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// readFixedCString reads exactly n bytes and returns the content up to
// the first NUL byte (or all n bytes, if unterminated), matching the
// legacy frame's null-terminated fixed-width fields.
func readFixedCString(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}

// readLengthPrefixed reads a uint32 length followed by that many
// bytes, rejecting lengths over maxStringLen.
func readLengthPrefixed(r io.Reader) (string, error) {
	length, err := readUint32(r)
	if err != nil {
		return "", err
	}
	if length > maxStringLen {
		return "", fmt.Errorf("propsvc: string length %d exceeds %d", length, maxStringLen)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
