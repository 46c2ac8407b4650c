// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

// Reap is called by the supervisor's SIGCHLD handler when this service's
// pid has exited. It implements §4.2's Reap flag transitions, cgroup
// kill and removal, crash policy and state publication. It does not close
// published descriptors, run reap callbacks, or run an on-restart command
// block.
func (s *Service) Reap(ctx *Context, bootComplete bool) {
	s.mu.Lock()

	if !s.Flags.Has(Oneshot) || s.Flags.Has(Restart) {
		_ = killProcessCgroup(s.Name)
	}
	removeProcessCgroup(s.Name)

	s.PID = 0
	name := s.Name
	wasTemporary := s.Flags.Has(Temporary)

	s.Flags = s.Flags.Clear(Exec)
	if wasTemporary {
		s.mu.Unlock()
		ctx.MarkExecServiceRunning(false)
		return
	}

	s.Flags = s.Flags.Clear(Running)

	if s.Flags.Has(Oneshot) && !s.Flags.Has(Restart) && !s.Flags.Has(Reset) {
		s.Flags = s.Flags.Set(Disabled)
	}

	if s.Flags.Has(Disabled) || s.Flags.Has(Reset) {
		s.mu.Unlock()
		ctx.publish("init.svc."+name, "stopped")
		return
	}

	s.applyCrashPolicy(ctx, bootComplete)
	s.Flags = s.Flags.Clear(Restart).Set(Restarting)
	s.mu.Unlock()

	ctx.publish("init.svc."+name, "restarting")
}
