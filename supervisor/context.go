// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"log/slog"
	"sync/atomic"

	"github.com/coreinit/coreinit/lib/clock"
)

// PropertyPublisher is the supervisor's view of the property store: it
// only ever needs to publish status names (init.svc.<name>, the crash
// policy's ro.init.updatable_crashing), never to read or authorize
// arbitrary properties. Keeping the dependency this narrow means
// supervisor imports neither property nor propsvc; cmd/coreinit wires the
// store in and dispatches control requests to the supervisor.
type PropertyPublisher interface {
	Set(name, value string) error
}

// Context carries the process-wide singletons the original names as
// next_start_order_, is_exec_service_running_, and similar globals. It is
// modeled as an explicit struct field set rather than package-level
// globals so tests can construct independent instances, per SPEC_FULL.md
// §9's note on testability.
type Context struct {
	Logger     *slog.Logger
	Clock      clock.Clock
	Properties PropertyPublisher

	nextStartOrder     atomic.Uint64
	execServiceRunning atomic.Bool
	maxSuppGIDs        int
}

// NewContext constructs a Context with the given collaborators. A nil
// logger defaults to slog.Default(); a nil clock defaults to clock.Real().
func NewContext(logger *slog.Logger, c clock.Clock, properties PropertyPublisher) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = clock.Real()
	}
	return &Context{Logger: logger, Clock: c, Properties: properties, maxSuppGIDs: 64}
}

func (ctx *Context) nextOrder() uint64 {
	return ctx.nextStartOrder.Add(1)
}

// MarkExecServiceRunning records that an ExecStart-created temporary
// service is currently running process-wide.
func (ctx *Context) MarkExecServiceRunning(running bool) {
	ctx.execServiceRunning.Store(running)
}

// ExecServiceRunning reports whether a temporary exec service is running.
func (ctx *Context) ExecServiceRunning() bool {
	return ctx.execServiceRunning.Load()
}

func (ctx *Context) publish(name, value string) {
	if ctx.Properties == nil {
		return
	}
	if err := ctx.Properties.Set(name, value); err != nil {
		ctx.Logger.Warn("failed to publish property", "name", name, "value", value, "error", err)
	}
}
