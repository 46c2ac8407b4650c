// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "golang.org/x/sys/unix"

// StopHow names the caller's intent to StopOrReset, matching the three
// cases of §4.2's transition table.
type StopHow int

const (
	StopDisabled StopHow = iota
	StopReset
	StopRestart
)

// StopOrReset applies the flag mutation table from §4.2, then signals the
// process cgroup and publishes the resulting state name. Stop, Reset and
// RestartService funnel through this; Terminate does not.
func (s *Service) StopOrReset(ctx *Context, how StopHow) {
	s.mu.Lock()

	switch how {
	case StopDisabled:
		s.Flags = s.Flags.Clear(Restarting | DisabledStart | Restart).Set(Disabled)
	case StopReset:
		s.Flags = s.Flags.Clear(Restarting | DisabledStart | Restart)
		if s.Flags.Has(RCDisabled) {
			s.Flags = s.Flags.Set(Disabled)
		} else {
			s.Flags = s.Flags.Set(Reset)
		}
	case StopRestart:
		s.Flags = s.Flags.Clear(Restarting | DisabledStart | Disabled | Reset)
	default:
		s.Flags = s.Flags.Clear(Restarting | DisabledStart | Restart).Set(Disabled)
	}

	pid := s.PID
	name := s.Name
	s.mu.Unlock()

	if pid != 0 {
		_ = killProcessCgroup(name)
		ctx.publish("init.svc."+name, "stopping")
	} else {
		ctx.publish("init.svc."+name, "stopped")
	}
}

// Stop disables the service and kills its process group.
func (s *Service) Stop(ctx *Context) { s.StopOrReset(ctx, StopDisabled) }

// Reset retains RESET unless RC_DISABLED is set (§11 Open Question a).
func (s *Service) Reset(ctx *Context) { s.StopOrReset(ctx, StopReset) }

// RestartService clears the flags that would otherwise block a
// subsequent Start, in preparation for Reap driving the real restart.
func (s *Service) RestartService(ctx *Context) { s.StopOrReset(ctx, StopRestart) }

// Terminate clears RESTARTING|DISABLED_START and sends SIGTERM to the
// process group rather than SIGKILL. It does not go through StopOrReset:
// it sets no DISABLED, RESET or RESTART bit and publishes no state name.
func (s *Service) Terminate(ctx *Context) {
	s.mu.Lock()
	s.Flags = s.Flags.Clear(Restarting | DisabledStart)
	pid := s.PID
	s.mu.Unlock()
	if pid != 0 {
		_ = unix.Kill(-pid, unix.SIGTERM)
	}
}

// Timeout sends SIGKILL; the eventual SIGCHLD drives the real transition
// via Reap, per the "cancellation is advisory" note in SPEC_FULL.md §5.
func (s *Service) Timeout() {
	s.mu.Lock()
	pid := s.PID
	s.mu.Unlock()
	if pid != 0 {
		_ = unix.Kill(-pid, unix.SIGKILL)
	}
}
