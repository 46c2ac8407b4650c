// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/coreinit/coreinit/propsvc"
)

// setProp2 dials socketPath and issues one SETPROP2 request, returning
// the server's result code. It frames the request itself (rather than
// reusing propsvc's unexported framing helpers) since a client and the
// server it talks to are deliberately decoupled at the wire level.
func setProp2(socketPath, name, value string) (propsvc.ErrorCode, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return 0, fmt.Errorf("initctl: dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if err := writeFrame(conn, name, value); err != nil {
		return 0, err
	}

	var buf [4]byte
	if _, err := conn.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("initctl: reading result: %w", err)
	}
	return propsvc.ErrorCode(binary.BigEndian.Uint32(buf[:])), nil
}

func writeFrame(conn net.Conn, name, value string) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(propsvc.CmdSetProp2))
	if _, err := conn.Write(header[:]); err != nil {
		return fmt.Errorf("initctl: writing cmd: %w", err)
	}
	if err := writeString(conn, name); err != nil {
		return fmt.Errorf("initctl: writing name: %w", err)
	}
	if err := writeString(conn, value); err != nil {
		return fmt.Errorf("initctl: writing value: %w", err)
	}
	return nil
}

func writeString(conn net.Conn, s string) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(s)))
	if _, err := conn.Write(length[:]); err != nil {
		return err
	}
	_, err := conn.Write([]byte(s))
	return err
}
