// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/coreinit/coreinit/lib/errs"
	"github.com/coreinit/coreinit/sandbox"
)

// OOMScoreUnset is the sentinel meaning "do not touch oom_score_adj".
const OOMScoreUnset = -1001

// selfExe resolves the supervisor's own binary path, re-exec'd by Start
// as the childinit shim target. Overridden in tests to point at a stub
// binary instead of the test binary itself.
var selfExe = os.Executable

// Service is a supervised child process: declared configuration plus
// runtime flags, pid, and crash accounting. One Service exists per
// declared service for the lifetime of the registry; it is never
// destroyed except at registry shutdown.
type Service struct {
	mu sync.Mutex

	Name       string
	Classnames map[string]bool

	Argv          []string
	Env           map[string]string
	ConsolePath   string
	SecLabel      string
	Namespace     sandbox.NamespaceFlags
	WritepidFiles []string

	UID          int
	HasUID       bool
	GID          int
	SuppGIDs     []int
	Capabilities []string
	Priority     int
	IOPrioClass  sandbox.IOPrioClass
	IOPrioPrio   int
	OOMScoreAdj  int

	Swappiness         int
	SoftLimitBytes     uint64
	LimitBytes         uint64
	LimitPercent       int
	LimitPropertyName  string

	Flags Flags

	PID                     int
	StartOrder              uint64
	TimeStarted             time.Time
	TimeCrashed             time.Time
	CrashCount              int
	ProcessCgroupEmpty      bool
	PreApexd                bool
	PostData                bool
	RunningAtPostDataReset  bool
	Descriptors             []sandbox.Descriptor

	Updatable bool // part of classnames == "updatable" in the original; kept explicit for clarity.

	cmd *exec.Cmd
}

// NewService constructs a Service with default flags (no flag bits set
// unless explicitly requested by the definition).
func NewService(name string, argv []string) *Service {
	return &Service{
		Name:        name,
		Argv:        argv,
		Classnames:  map[string]bool{"default": true},
		OOMScoreAdj: OOMScoreUnset,
	}
}

// Start attempts to fork/exec the service. It returns an error and sets
// DISABLED on most failure paths, matching §4.2's documented behavior; it
// does not return an error for the "already running" no-op case.
func (s *Service) Start(ctx *Context, registry *Registry, resolveProperty func(name string) (string, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Updatable && !registry.ServicesUpdated() {
		registry.enqueueDelayed(s.Name)
		return fmt.Errorf("%w: service %s delayed until services-updated", errs.ErrNotFound, s.Name)
	}

	if s.Flags.Has(Running) {
		if s.Flags.Has(Oneshot) && s.Flags.Has(Disabled) {
			s.Flags = s.Flags.Set(Restart)
		}
		return nil
	}

	if s.ConsolePath == "" && s.Flags.Has(Console) {
		s.ConsolePath = "/dev/console"
	}
	if s.ConsolePath != "" {
		f, err := os.OpenFile(s.ConsolePath, os.O_RDWR, 0)
		if err != nil {
			s.Flags = s.Flags.Set(Disabled)
			return fmt.Errorf("%w: open console %s: %v", errs.ErrIO, s.ConsolePath, err)
		}
		f.Close()
	}

	info, err := os.Stat(s.Argv[0])
	if err != nil || info.IsDir() {
		s.Flags = s.Flags.Set(Disabled)
		return fmt.Errorf("%w: stat argv[0] %s: %v", errs.ErrNotFound, s.Argv[0], err)
	}

	label := s.SecLabel

	spec := s.buildSpec(label, resolveProperty)

	exePath, err := selfExe()
	if err != nil {
		s.Flags = s.Flags.Set(Disabled)
		return fmt.Errorf("%w: resolve self exe: %v", errs.ErrIO, err)
	}

	cmd, closeSpecPipe, err := sandbox.Command(context.Background(), exePath, spec)
	if err != nil {
		s.Flags = s.Flags.Set(Disabled)
		return fmt.Errorf("%w: build command: %v", errs.ErrInvalidArgument, err)
	}
	startErr := cmd.Start()
	closeSpecPipe()
	if startErr != nil {
		s.Flags = s.Flags.Set(Disabled)
		return fmt.Errorf("%w: fork/exec: %v", errs.ErrIO, startErr)
	}

	s.cmd = cmd
	s.PID = cmd.Process.Pid
	s.StartOrder = ctx.nextOrder()
	s.TimeStarted = ctx.Clock.Now()
	s.ProcessCgroupEmpty = false
	s.PostData = registry.IsPostData()
	s.Flags = s.Flags.Set(Running)

	if err := createProcessCgroup(s.Name, s.UID, s.PID); err != nil {
		ctx.Logger.Warn("failed to create process cgroup", "service", s.Name, "error", err)
	} else if s.hasMemoryLimits() {
		if err := applyMemoryControls(s.Name, s.resolvedLimits(ctx, resolveProperty)); err != nil {
			ctx.Logger.Warn("failed to apply memory controls", "service", s.Name, "error", err)
		}
	}

	if s.OOMScoreAdj != OOMScoreUnset {
		if err := writeOOMScoreAdj(s.PID, s.OOMScoreAdj); err != nil {
			ctx.Logger.Warn("failed to write oom_score_adj", "service", s.Name, "error", err)
		}
	}

	if !s.Flags.Has(Temporary) {
		ctx.publish("init.svc."+s.Name, "running")
	}

	ctx.Logger.Info("service started", "service", s.Name, "pid", s.PID, "start_order", s.StartOrder)
	return nil
}

func (s *Service) buildSpec(label string, resolveProperty func(string) (string, bool)) *sandbox.Spec {
	refs := collectPropertyRefs(s.Argv, resolveProperty)
	return &sandbox.Spec{
		Argv:          s.Argv,
		Env:           s.Env,
		UID:           s.UID,
		GID:           s.GID,
		SuppGIDs:      s.SuppGIDs,
		HasUID:        s.HasUID,
		Namespace:     s.Namespace,
		Capabilities:  s.Capabilities,
		Priority:      s.Priority,
		IOPrioClass:   s.IOPrioClass,
		IOPrioPrio:    s.IOPrioPrio,
		SecurityLabel: label,
		Descriptors:   s.Descriptors,
		WritepidFiles: s.WritepidFiles,
		ConsolePath:   s.ConsolePath,
		PropertyRefs:  refs,
	}
}

func (s *Service) hasMemoryLimits() bool {
	return s.Swappiness > 0 || s.SoftLimitBytes > 0 || s.LimitBytes > 0 || s.LimitPercent > 0 || s.LimitPropertyName != ""
}

// resolvedLimits computes the effective memory controls. limit_property_name,
// if set, overrides limit_bytes/limit_percent: the named property's value is
// read through resolveProperty and parsed with ParseMemoryLimit.
func (s *Service) resolvedLimits(ctx *Context, resolveProperty func(string) (string, bool)) memoryControls {
	limit := s.LimitBytes
	if s.LimitPercent > 0 {
		if computed, err := percentOfTotalRAM(s.LimitPercent); err == nil {
			limit = computed
		}
	}
	if s.LimitPropertyName != "" && resolveProperty != nil {
		if value, ok := resolveProperty(s.LimitPropertyName); ok {
			parsed, err := ParseMemoryLimit(value)
			if err != nil {
				ctx.Logger.Warn("invalid limit_property_name value", "service", s.Name, "property", s.LimitPropertyName, "value", value, "error", err)
			} else {
				limit = parsed
			}
		}
	}
	return memoryControls{
		Swappiness:     s.Swappiness,
		SoftLimitBytes: s.SoftLimitBytes,
		LimitBytes:     limit,
	}
}

// ExecStart is the convenience path for one-shot anonymous services
// created via MakeTemporaryOneshotService: it sets ONESHOT, starts, then
// marks the process-wide exec-service-running singleton and sets EXEC.
func (s *Service) ExecStart(ctx *Context, registry *Registry, resolveProperty func(string) (string, bool)) error {
	s.mu.Lock()
	s.Flags = s.Flags.Set(Oneshot)
	s.mu.Unlock()

	if err := s.Start(ctx, registry, resolveProperty); err != nil {
		return err
	}

	s.mu.Lock()
	s.Flags = s.Flags.Set(Exec)
	s.mu.Unlock()
	ctx.MarkExecServiceRunning(true)
	return nil
}

// StartIfNotDisabled calls Start unless DISABLED is set, in which case it
// latches DISABLED_START so a future Enable triggers the start.
func (s *Service) StartIfNotDisabled(ctx *Context, registry *Registry, resolveProperty func(string) (string, bool)) error {
	s.mu.Lock()
	disabled := s.Flags.Has(Disabled)
	if disabled {
		s.Flags = s.Flags.Set(DisabledStart)
	}
	s.mu.Unlock()
	if disabled {
		return nil
	}
	return s.Start(ctx, registry, resolveProperty)
}

// Enable clears DISABLED and RC_DISABLED; if DISABLED_START had latched a
// pending start request, it calls Start.
func (s *Service) Enable(ctx *Context, registry *Registry, resolveProperty func(string) (string, bool)) error {
	s.mu.Lock()
	hadDisabledStart := s.Flags.Has(DisabledStart)
	s.Flags = s.Flags.Clear(Disabled | RCDisabled)
	s.mu.Unlock()
	if hadDisabledStart {
		return s.Start(ctx, registry, resolveProperty)
	}
	return nil
}

func collectPropertyRefs(argv []string, resolve func(string) (string, bool)) map[string]string {
	refs := make(map[string]string)
	if resolve == nil {
		return refs
	}
	for i := 1; i < len(argv); i++ {
		for _, name := range sandbox.ExtractPropertyNames(argv[i]) {
			if value, ok := resolve(name); ok {
				refs[name] = value
			}
		}
	}
	return refs
}
