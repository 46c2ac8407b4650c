// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "testing"

type recordingPublisher struct {
	published map[string]string
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: make(map[string]string)}
}

func (p *recordingPublisher) Set(name, value string) error {
	p.published[name] = value
	return nil
}

func TestStopSetsDisabled(t *testing.T) {
	pub := newRecordingPublisher()
	ctx := NewContext(nil, nil, pub)

	s := NewService("svc", []string{"/bin/true"})
	s.Flags = Running | Restarting

	s.Stop(ctx)

	if !s.Flags.Has(Disabled) {
		t.Error("Stop should set Disabled")
	}
	if s.Flags.Has(Restarting) {
		t.Error("Stop should clear Restarting")
	}
	if pub.published["init.svc.svc"] != "stopped" {
		t.Errorf("published status = %q, want stopped", pub.published["init.svc.svc"])
	}
}

func TestResetSetsResetUnlessRCDisabled(t *testing.T) {
	pub := newRecordingPublisher()
	ctx := NewContext(nil, nil, pub)

	s := NewService("svc", []string{"/bin/true"})
	s.Reset(ctx)
	if !s.Flags.Has(Reset) {
		t.Error("Reset should set Reset when RC_DISABLED is not set")
	}
	if s.Flags.Has(Disabled) {
		t.Error("Reset should not set Disabled when RC_DISABLED is not set")
	}

	s2 := NewService("svc2", []string{"/bin/true"})
	s2.Flags = RCDisabled
	s2.Reset(ctx)
	if !s2.Flags.Has(Disabled) {
		t.Error("Reset should set Disabled when RC_DISABLED is set")
	}
	if s2.Flags.Has(Reset) {
		t.Error("Reset should not set Reset when RC_DISABLED is set")
	}
}

func TestRestartServiceClearsBlockingFlags(t *testing.T) {
	pub := newRecordingPublisher()
	ctx := NewContext(nil, nil, pub)

	s := NewService("svc", []string{"/bin/true"})
	s.Flags = Disabled | Reset | Restarting | DisabledStart

	s.RestartService(ctx)

	if s.Flags.Has(Disabled) || s.Flags.Has(Reset) || s.Flags.Has(Restarting) || s.Flags.Has(DisabledStart) {
		t.Errorf("RestartService left blocking flags set: %v", s.Flags)
	}
}

func TestTerminateClearsFlagsWithoutKillingWhenNoPID(t *testing.T) {
	ctx := NewContext(nil, nil, nil)
	s := NewService("svc", []string{"/bin/true"})
	s.Flags = Restarting | DisabledStart

	s.Terminate(ctx)

	if s.Flags.Has(Restarting) || s.Flags.Has(DisabledStart) {
		t.Error("Terminate should clear Restarting and DisabledStart")
	}
}

func TestTimeoutNoopWithoutPID(t *testing.T) {
	s := NewService("svc", []string{"/bin/true"})
	// Should not panic when PID is zero.
	s.Timeout()
}

func TestStopOrResetPublishesStoppingWhenPIDSet(t *testing.T) {
	pub := newRecordingPublisher()
	ctx := NewContext(nil, nil, pub)

	s := NewService("svc", []string{"/bin/true"})
	s.PID = 999999 // a pid that (very likely) does not exist; killProcessCgroup tolerates failure.
	s.Flags = Running

	s.Stop(ctx)

	if pub.published["init.svc.svc"] != "stopping" {
		t.Errorf("published status = %q, want stopping", pub.published["init.svc.svc"])
	}
}
