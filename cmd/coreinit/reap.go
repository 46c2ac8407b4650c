package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/coreinit/coreinit/supervisor"
)

// runReapLoop waits for SIGCHLD and reaps every exited child with a
// non-blocking wait4, dispatching each to the owning Service's Reap.
// A child with no matching registered service (one that escaped
// reparenting under the childinit re-exec shim) is reaped and discarded.
func runReapLoop(ctx context.Context, registry *supervisor.Registry, svcCtx *supervisor.Context, gate *bootGate, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGCHLD)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			reapExited(registry, svcCtx, gate, logger)
		}
	}
}

func reapExited(registry *supervisor.Registry, svcCtx *supervisor.Context, gate *bootGate, logger *slog.Logger) {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		svc := registry.ByPID(pid)
		if svc == nil {
			logger.Debug("reaped untracked pid", "pid", pid)
			continue
		}
		logger.Info("reaping service", "service", svc.Name, "pid", pid)
		svc.Reap(svcCtx, gate.complete())
	}
}
