// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package propsvc

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/coreinit/coreinit/lib/codec"
)

// MessageKind discriminates the InternalMessage tagged union. Go has
// no native sum type, so the union is realized as a kind tag plus a
// set of mutually-exclusive optional payload fields (see SPEC_FULL.md
// §3's entry for InternalMessage).
type MessageKind string

const (
	// Server -> supervisor.
	MessagePropertyChanged MessageKind = "property_changed"
	MessageControlRequest  MessageKind = "control_request"

	// Supervisor -> server.
	MessageLoadPersistentProperties MessageKind = "load_persistent_properties"
	MessageStopSendingMessages      MessageKind = "stop_sending_messages"
	MessageStartSendingMessages     MessageKind = "start_sending_messages"
)

// ControlAction is the supervisor operation a ControlRequest asks for.
type ControlAction string

const (
	ActionStart   ControlAction = "start"
	ActionStop    ControlAction = "stop"
	ActionRestart ControlAction = "restart"
)

// PropertyChangedPayload carries a single successful Set.
type PropertyChangedPayload struct {
	Name  string `cbor:"name"`
	Value string `cbor:"value"`
}

// ControlRequestPayload carries one ctl.* request. The fd of the
// originating client connection is passed in the same message as
// SCM_RIGHTS data (see Server.transferClientFD).
type ControlRequestPayload struct {
	Action ControlAction `cbor:"action"`
	Target string        `cbor:"target"`
	// ReplyFD is true when the client socket descriptor was passed
	// alongside this message via SCM_RIGHTS; the supervisor should
	// receive it from the same internal-socket read and reply directly
	// through it instead of relying on an implicit response.
	ReplyFD bool `cbor:"reply_fd"`
}

// InternalMessage is the CBOR envelope exchanged over the internal
// SEQPACKET socket between the property server and the supervisor.
type InternalMessage struct {
	Kind            MessageKind              `cbor:"kind"`
	PropertyChanged *PropertyChangedPayload  `cbor:"property_changed,omitempty"`
	ControlRequest  *ControlRequestPayload   `cbor:"control_request,omitempty"`
}

// maxInternalMessage bounds a single SEQPACKET read; CBOR messages on
// this socket are small (a name/value pair or a control action), so
// this is generous headroom, not a tuned limit.
const maxInternalMessage = 64 * 1024

// InternalConn wraps one end of the internal socketpair. SEQPACKET
// preserves message boundaries, so each Write is delivered as exactly
// one Read on the peer, with no length-prefix framing needed.
type InternalConn struct {
	conn *net.UnixConn
}

// NewInternalSocketPair creates a connected SEQPACKET socket pair: one
// end for the property server, one end for the supervisor. Using a
// real kernel socketpair (rather than an in-process channel) keeps the
// CBOR wire format genuinely exercised even though both ends currently
// live in the same process.
func NewInternalSocketPair() (server *InternalConn, supervisor *InternalConn, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("propsvc: socketpair: %w", err)
	}

	serverConn, err := fdToUnixConn(fds[0], "propsvc-internal-server")
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	supervisorConn, err := fdToUnixConn(fds[1], "propsvc-internal-supervisor")
	if err != nil {
		serverConn.Close()
		return nil, nil, err
	}

	return &InternalConn{conn: serverConn}, &InternalConn{conn: supervisorConn}, nil
}

func fdToUnixConn(fd int, name string) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), name)
	conn, err := net.FileConn(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("propsvc: wrapping socketpair fd: %w", err)
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("propsvc: socketpair fd did not wrap to *net.UnixConn")
	}
	return unixConn, nil
}

// WriteMessage encodes and sends one InternalMessage.
func (c *InternalConn) WriteMessage(msg InternalMessage) error {
	data, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("propsvc: encoding internal message: %w", err)
	}
	_, err = c.conn.Write(data)
	return err
}

// WriteMessageWithFD sends msg alongside fd as SCM_RIGHTS ancillary
// data, used to transfer a client connection's descriptor to the
// supervisor for a ctl.* request (see Server.transferClientFD).
func (c *InternalConn) WriteMessageWithFD(msg InternalMessage, fd int) error {
	data, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("propsvc: encoding internal message: %w", err)
	}
	rights := unix.UnixRights(fd)
	_, _, err = c.conn.WriteMsgUnix(data, rights, nil)
	return err
}

// ReadMessageWithFD reads one message plus any SCM_RIGHTS descriptors
// sent alongside it, used by the supervisor side to receive a
// transferred client connection for a ReplyFD ControlRequest.
func (c *InternalConn) ReadMessageWithFD() (InternalMessage, []int, error) {
	buf := make([]byte, maxInternalMessage)
	oob := make([]byte, unix.CmsgSpace(4))
	n, oobn, _, _, err := c.conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return InternalMessage{}, nil, err
	}
	var msg InternalMessage
	if err := codec.Unmarshal(buf[:n], &msg); err != nil {
		return InternalMessage{}, nil, fmt.Errorf("propsvc: decoding internal message: %w", err)
	}
	if oobn == 0 {
		return msg, nil, nil
	}
	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return msg, nil, fmt.Errorf("propsvc: parsing control message: %w", err)
	}
	var fds []int
	for _, cmsg := range cmsgs {
		parsed, err := unix.ParseUnixRights(&cmsg)
		if err != nil {
			continue
		}
		fds = append(fds, parsed...)
	}
	return msg, fds, nil
}

// ReadMessage blocks for the next InternalMessage.
func (c *InternalConn) ReadMessage() (InternalMessage, error) {
	buf := make([]byte, maxInternalMessage)
	n, err := c.conn.Read(buf)
	if err != nil {
		return InternalMessage{}, err
	}
	var msg InternalMessage
	if err := codec.Unmarshal(buf[:n], &msg); err != nil {
		return InternalMessage{}, fmt.Errorf("propsvc: decoding internal message: %w", err)
	}
	return msg, nil
}

// Close closes the underlying socket.
func (c *InternalConn) Close() error {
	return c.conn.Close()
}

// File returns the raw file backing this end of the socket, needed by
// Server when passing a client descriptor via SCM_RIGHTS alongside a
// ControlRequest message.
func (c *InternalConn) File() (*os.File, error) {
	return c.conn.File()
}
