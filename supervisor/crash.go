// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"time"

	"github.com/coreinit/coreinit/lib/process"
)

const crashWindow = 4 * time.Minute
const crashLimit = 4

// applyCrashPolicy implements §4.2's crash policy. It must be called with
// s.mu already held by the caller (Reap).
func (s *Service) applyCrashPolicy(ctx *Context, bootComplete bool) {
	if !s.Flags.Has(Critical) && !s.Updatable {
		return
	}

	now := ctx.Clock.Now()
	if now.Before(s.TimeCrashed.Add(crashWindow)) || !bootComplete {
		s.CrashCount++
		if s.CrashCount > crashLimit {
			if s.Flags.Has(Critical) {
				process.Fatal(criticalCrashError(s.Name, s.CrashCount))
			}
			ctx.publish("ro.init.updatable_crashing", "1")
		}
		return
	}

	s.TimeCrashed = now
	s.CrashCount = 1
}

func criticalCrashError(name string, count int) error {
	return &crashLoopError{name: name, count: count}
}

type crashLoopError struct {
	name  string
	count int
}

func (e *crashLoopError) Error() string {
	return "critical service " + e.name + " crashed repeatedly within the crash window"
}
