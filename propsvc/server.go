// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package propsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/coreinit/coreinit/lib/clock"
	"github.com/coreinit/coreinit/property"
)

// clientDeadline is the total per-request budget on the client socket,
// matching the original's kDefaultSocketTimeout.
const clientDeadline = 2000 * time.Millisecond

// listenBacklog documents the original's fixed backlog of 8; Go's net
// package does not expose a way to set the listen(2) backlog, so this
// constant is not wired to a call and the kernel default applies.
const listenBacklog = 8

// Server is the property server (C5): it owns the client listen
// socket and the property store's write path. Exactly one Server
// exists per coreinit process.
type Server struct {
	socketPath string
	store      *property.Store
	internal   *InternalConn
	authorizer Authorizer
	restorecon *restoreconWorker
	logger     *slog.Logger
	clk        clock.Clock
}

// NewServer creates a property server listening at socketPath, backed
// by store, exchanging control messages over internalConn (the
// server's end of the pair created by NewInternalSocketPair).
func NewServer(socketPath string, store *property.Store, internalConn *InternalConn, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		store:      store,
		internal:   internalConn,
		authorizer: AllowAllAuthorizer{},
		restorecon: newRestoreconWorker(store, logger),
		logger:     logger,
		clk:        clock.Real(),
	}
}

// SetAuthorizer overrides the default AllowAllAuthorizer. Exposed for
// tests that want to exercise a denying authorizer.
func (s *Server) SetAuthorizer(a Authorizer) {
	s.authorizer = a
}

// SetClock overrides the production clock with a fake one for tests
// that need to control client-deadline expiry deterministically.
func (s *Server) SetClock(c clock.Clock) {
	s.clk = c
}

// Serve listens on the client socket and processes the internal-socket
// control channel concurrently, until ctx is cancelled. It returns
// once both loops have stopped and all in-flight client requests have
// completed.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("propsvc: removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("propsvc: listening on %s: %w", s.socketPath, err)
	}
	if unixListener, ok := listener.(*net.UnixListener); ok {
		unixListener.SetUnlinkOnClose(true)
	}
	if err := os.Chmod(s.socketPath, 0666); err != nil {
		listener.Close()
		return fmt.Errorf("propsvc: chmod %s: %w", s.socketPath, err)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var internalWG sync.WaitGroup
	internalWG.Add(1)
	go func() {
		defer internalWG.Done()
		s.runInternalLoop(ctx)
	}()

	s.logger.Info("property server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("propsvc: accept failed", "error", err)
			continue
		}

		// Each connection is handled inline on this goroutine; the 2000ms
		// request budget bounds how long one client can hold the loop.
		s.handleConnection(conn)
	}

	internalWG.Wait()
	return nil
}

// handleConnection processes exactly one request-response cycle, per
// §4.5's framing. Each client connection is handled inline on its own
// goroutine — not a dedicated worker pool — since each request is
// small and bounded by clientDeadline.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	correlationID := uuid.New()
	logger := s.logger.With("correlation_id", correlationID.String())

	peer := s.capturePeerCredentials(conn, logger)

	deadline := s.clk.Now().Add(clientDeadline)
	if err := conn.SetDeadline(deadline); err != nil {
		logger.Debug("propsvc: set deadline failed", "error", err)
		return
	}

	cmd, err := readUint32(conn)
	if err != nil {
		s.sendResult(conn, ReadCmd)
		logger.Debug("propsvc: read cmd failed", "error", err)
		return
	}

	// Recompute the remaining budget before the data read, per §5's
	// "recomputed as remaining budget before each read" contract.
	remaining := deadline.Sub(s.clk.Now())
	if remaining <= 0 {
		s.sendResult(conn, ReadData)
		return
	}
	conn.SetDeadline(s.clk.Now().Add(remaining))

	switch Cmd(cmd) {
	case CmdSetProp:
		s.handleSetProp(conn, peer, logger)
	case CmdSetProp2:
		s.handleSetProp2(conn, peer, logger)
	default:
		s.sendResult(conn, InvalidCmd)
		logger.Debug("propsvc: unknown cmd", "cmd", cmd)
	}
}

func (s *Server) handleSetProp(conn net.Conn, peer peerCredentials, logger *slog.Logger) {
	name, err := readFixedCString(conn, propNameMax)
	if err != nil {
		logger.Debug("propsvc: read name failed", "error", err)
		return
	}
	value, err := readFixedCString(conn, propValueMax)
	if err != nil {
		logger.Debug("propsvc: read value failed", "error", err)
		return
	}
	// Legacy SETPROP has no reply body; the result is discarded, not
	// sent back to the client, matching §4.5 exactly.
	s.dispatchSet(conn, peer, name, value, logger)
}

func (s *Server) handleSetProp2(conn net.Conn, peer peerCredentials, logger *slog.Logger) {
	name, err := readLengthPrefixed(conn)
	if err != nil {
		s.sendResult(conn, ReadData)
		logger.Debug("propsvc: read name2 failed", "error", err)
		return
	}
	value, err := readLengthPrefixed(conn)
	if err != nil {
		s.sendResult(conn, ReadData)
		logger.Debug("propsvc: read value2 failed", "error", err)
		return
	}
	result := s.dispatchSet(conn, peer, name, value, logger)
	// When the control branch transferred the connection's descriptor
	// to the supervisor, conn has been closed locally already and the
	// reply is the supervisor's responsibility — skip writing here.
	if result == resultDeferredToSupervisor {
		return
	}
	s.sendResult(conn, result)
}

func (s *Server) sendResult(conn net.Conn, code ErrorCode) {
	if err := writeUint32(conn, uint32(code)); err != nil {
		s.logger.Debug("propsvc: write result failed", "error", err)
	}
}

// dispatchSet implements §4.4/§4.5's full authorization and side-effect
// contract for one (name, value) request, shared by both SETPROP and
// SETPROP2 handlers. conn is used only for the ctl.* fd-transfer path;
// every other branch ignores it.
func (s *Server) dispatchSet(conn net.Conn, peer peerCredentials, name, value string, logger *slog.Logger) ErrorCode {
	if !property.IsLegalName(name) {
		return InvalidName
	}

	if isControlProperty(name) {
		action, ok := controlActionFor(name)
		if !ok {
			return ControlMessageError
		}
		if !s.checkControlAuthorization(peer, name, value) {
			return ControlMessageError
		}
		if err := s.transferClientFD(conn, action, value); err != nil {
			logger.Warn("propsvc: transfer client fd failed", "error", err)
			return ControlMessageError
		}
		return resultDeferredToSupervisor
	}

	if name == "sys.powerctl" {
		s.handleSysPowerctl(peer)
	}

	if name == "selinux.restorecon_recursive" {
		if s.handleRestoreconRecursive(peer, value) {
			return Success
		}
	}

	if info, ok := s.store.Info.Lookup(name); ok {
		if !s.authorizer.CheckSet(peer.Context, info.Context) {
			return PermissionDenied
		}
	}

	result := s.store.Set(name, value)
	switch result {
	case property.Success:
		if s.store.AcceptingMessages() {
			s.publishChange(name, value)
		}
		return Success
	case property.InvalidName:
		return InvalidName
	case property.InvalidValue:
		return InvalidValue
	case property.ReadOnlyAlready:
		return ReadOnlyAlready
	default:
		return SetFailed
	}
}

// publishChange forwards a successful Set as a PropertyChanged
// message on the internal socket, so the supervisor can react (e.g. to
// init.svc.* transitions) without polling the store.
func (s *Server) publishChange(name, value string) {
	msg := InternalMessage{
		Kind:            MessagePropertyChanged,
		PropertyChanged: &PropertyChangedPayload{Name: name, Value: value},
	}
	if err := s.internal.WriteMessage(msg); err != nil {
		s.logger.Warn("propsvc: publish property-changed failed", "error", err)
	}
}

// transferClientFD implements §4.5's fd-passing control path: the
// client socket descriptor is duplicated, the server's own connection
// is closed (releasing its handle before the send, per §4.5), and the
// duplicate is transferred to the supervisor as SCM_RIGHTS ancillary
// data alongside a ReplyFD ControlRequest. The supervisor receives the
// descriptor and writes the SETPROP2 reply directly through it once
// the requested operation completes. On send failure the duplicated
// descriptor is closed locally to avoid a leak.
func (s *Server) transferClientFD(conn net.Conn, action ControlAction, target string) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("propsvc: client connection is not a Unix socket")
	}

	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("propsvc: syscall conn unavailable: %w", err)
	}

	var dupFD int
	var dupErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		dupFD, dupErr = unix.Dup(int(fd))
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	if dupErr != nil {
		return fmt.Errorf("propsvc: dup client fd: %w", dupErr)
	}

	// Release our own handle to the client connection before the send,
	// so the server holds no reference once ownership passes to the
	// supervisor.
	conn.Close()

	msg := InternalMessage{
		Kind:           MessageControlRequest,
		ControlRequest: &ControlRequestPayload{Action: action, Target: target, ReplyFD: true},
	}
	if err := s.internal.WriteMessageWithFD(msg, dupFD); err != nil {
		unix.Close(dupFD)
		return err
	}
	return nil
}

// runInternalLoop processes supervisor->server control messages
// (LoadPersistentProperties, StopSendingMessages, StartSendingMessages)
// until ctx is cancelled or the internal socket closes.
func (s *Server) runInternalLoop(ctx context.Context) {
	for {
		msg, err := s.internal.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Debug("propsvc: internal read failed", "error", err)
			return
		}

		switch msg.Kind {
		case MessageLoadPersistentProperties:
			if err := s.store.LoadAndApplyPersistentProperties(); err != nil {
				s.logger.Error("propsvc: load persistent properties failed", "error", err)
				continue
			}
			s.store.Set("ro.persistent_properties.ready", "true")
		case MessageStopSendingMessages:
			s.store.StopAcceptingMessages()
		case MessageStartSendingMessages:
			s.store.StartAcceptingMessages()
		default:
			s.logger.Debug("propsvc: unexpected internal message kind from supervisor", "kind", msg.Kind)
		}
	}
}

// capturePeerCredentials reads SO_PEERCRED once per connection. The
// SELinux source context is not available (no libselinux binding);
// noSELinuxContext stands in for it, per DESIGN.md.
func (s *Server) capturePeerCredentials(conn net.Conn, logger *slog.Logger) peerCredentials {
	peer := peerCredentials{Context: noSELinuxContext}

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return peer
	}
	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		logger.Debug("propsvc: syscall conn unavailable", "error", err)
		return peer
	}

	var ucred *unix.Ucred
	controlErr := rawConn.Control(func(fd uintptr) {
		cred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			logger.Debug("propsvc: SO_PEERCRED failed", "error", err)
			return
		}
		ucred = cred
	})
	if controlErr != nil || ucred == nil {
		return peer
	}

	peer.PID = ucred.Pid
	peer.UID = ucred.Uid
	peer.GID = ucred.Gid
	return peer
}
