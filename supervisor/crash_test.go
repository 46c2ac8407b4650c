// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"testing"
	"time"

	"github.com/coreinit/coreinit/lib/clock"
)

func TestApplyCrashPolicyIgnoresNonCriticalNonUpdatable(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	ctx := NewContext(nil, fake, nil)

	s := NewService("svc", []string{"/bin/true"})
	s.mu.Lock()
	s.applyCrashPolicy(ctx, true)
	count := s.CrashCount
	s.mu.Unlock()

	if count != 0 {
		t.Errorf("CrashCount = %d, want 0 for a non-critical, non-updatable service", count)
	}
}

func TestApplyCrashPolicyResetsWindowAfterGap(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	ctx := NewContext(nil, fake, nil)

	s := NewService("svc", []string{"/bin/true"})
	s.Flags = Critical

	s.mu.Lock()
	s.applyCrashPolicy(ctx, true)
	s.mu.Unlock()
	if s.CrashCount != 1 {
		t.Fatalf("CrashCount after first crash = %d, want 1", s.CrashCount)
	}

	fake.Advance(crashWindow + time.Second)

	s.mu.Lock()
	s.applyCrashPolicy(ctx, true)
	s.mu.Unlock()
	if s.CrashCount != 1 {
		t.Errorf("CrashCount after the window elapsed = %d, want 1 (counter reset)", s.CrashCount)
	}
}

func TestApplyCrashPolicyIncrementsWithinWindow(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	pub := newRecordingPublisher()
	ctx := NewContext(nil, fake, pub)

	s := NewService("svc", []string{"/bin/true"})
	s.Updatable = true

	for i := 0; i < crashLimit; i++ {
		s.mu.Lock()
		s.applyCrashPolicy(ctx, true)
		s.mu.Unlock()
		fake.Advance(time.Second)
	}

	if s.CrashCount != crashLimit {
		t.Fatalf("CrashCount = %d, want %d", s.CrashCount, crashLimit)
	}
	if _, ok := pub.published["ro.init.updatable_crashing"]; ok {
		t.Error("ro.init.updatable_crashing should not be published before the limit is exceeded")
	}

	s.mu.Lock()
	s.applyCrashPolicy(ctx, true)
	s.mu.Unlock()

	if pub.published["ro.init.updatable_crashing"] != "1" {
		t.Error("ro.init.updatable_crashing should be published once the crash limit is exceeded")
	}
}

func TestApplyCrashPolicyCriticalAllowsUpToLimitWithinWindow(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	pub := newRecordingPublisher()
	ctx := NewContext(nil, fake, pub)

	s := NewService("C", []string{"/bin/true"})
	s.Flags = Critical

	for i := 0; i < crashLimit; i++ {
		s.mu.Lock()
		s.applyCrashPolicy(ctx, false) // boot not complete, per the crash-loop scenario's setup
		s.mu.Unlock()
		fake.Advance(time.Second)
	}

	if s.CrashCount != crashLimit {
		t.Fatalf("CrashCount = %d, want %d (crashLimit crashes within the window must be tolerated)", s.CrashCount, crashLimit)
	}
	// The 5th crash's fatal-abort response is not exercised here: it calls
	// process.Fatal, which exits the process.
}

func TestApplyCrashPolicyBeforeBootCompleteDoesNotResetWindow(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	ctx := NewContext(nil, fake, nil)

	s := NewService("svc", []string{"/bin/true"})
	s.Flags = Critical

	fake.Advance(crashWindow * 10)

	s.mu.Lock()
	s.applyCrashPolicy(ctx, false)
	count := s.CrashCount
	s.mu.Unlock()

	if count != 1 {
		t.Errorf("CrashCount before boot completes = %d, want 1 (treated as within the window)", count)
	}
}
