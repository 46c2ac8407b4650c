package main

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"os"

	"github.com/coreinit/coreinit/propsvc"
	"github.com/coreinit/coreinit/supervisor"
)

// runDispatchLoop consumes server->supervisor InternalMessages:
// ControlRequest for ctl.* requests (with the client's descriptor
// transferred alongside, per propsvc.Server.transferClientFD) and
// PropertyChanged notifications, which the server sends for successful
// Sets only while its store accepts messages (after StartSendingMessages).
func runDispatchLoop(ctx context.Context, conn *propsvc.InternalConn, registry *supervisor.Registry, svcCtx *supervisor.Context, resolve func(string) (string, bool), logger *slog.Logger) {
	for {
		msg, fds, err := conn.ReadMessageWithFD()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Debug("internal dispatch read failed", "error", err)
			return
		}

		switch msg.Kind {
		case propsvc.MessageControlRequest:
			dispatchControlRequest(msg.ControlRequest, fds, registry, svcCtx, resolve, logger)
		case propsvc.MessagePropertyChanged:
			logger.Debug("property changed", "name", msg.PropertyChanged.Name, "value", msg.PropertyChanged.Value)
		default:
			logger.Debug("unexpected internal message kind", "kind", msg.Kind)
		}
	}
}

func dispatchControlRequest(req *propsvc.ControlRequestPayload, fds []int, registry *supervisor.Registry, svcCtx *supervisor.Context, resolve func(string) (string, bool), logger *slog.Logger) {
	if req == nil {
		closeAll(fds)
		return
	}

	code := propsvc.Success
	svc := registry.Get(req.Target)
	if svc == nil {
		code = propsvc.InvalidName
	} else {
		switch req.Action {
		case propsvc.ActionStart:
			if err := svc.StartIfNotDisabled(svcCtx, registry, resolve); err != nil {
				logger.Warn("ctl.start failed", "service", req.Target, "error", err)
				code = propsvc.SetFailed
			}
		case propsvc.ActionStop:
			svc.Stop(svcCtx)
		case propsvc.ActionRestart:
			svc.RestartService(svcCtx)
		default:
			code = propsvc.ControlMessageError
		}
	}

	if req.ReplyFD {
		replyOnFDs(fds, code, logger)
	}
}

// replyOnFDs writes a SETPROP2-shaped uint32 result to every transferred
// descriptor (there is exactly one in practice) and closes it, completing
// the reply the property server deferred when it transferred ownership.
func replyOnFDs(fds []int, code propsvc.ErrorCode, logger *slog.Logger) {
	for _, fd := range fds {
		f := os.NewFile(uintptr(fd), "ctl-reply")
		conn, err := net.FileConn(f)
		if err != nil {
			logger.Warn("ctl reply: wrapping transferred fd failed", "error", err)
			f.Close()
			continue
		}
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(code))
		if _, err := conn.Write(buf[:]); err != nil {
			logger.Debug("ctl reply: write failed", "error", err)
		}
		conn.Close()
	}
}

func closeAll(fds []int) {
	for _, fd := range fds {
		os.NewFile(uintptr(fd), "ctl-reply").Close()
	}
}
