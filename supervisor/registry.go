// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the process-wide set of Service objects, indexed by name.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*Service
	delayed  []string

	servicesUpdated bool
	postData        bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*Service)}
}

// Add registers a service. The name must be unique within the registry.
func (r *Registry) Add(s *Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[s.Name]; exists {
		return fmt.Errorf("supervisor: duplicate service name %q", s.Name)
	}
	s.PostData = r.postData
	r.services[s.Name] = s
	return nil
}

// Get returns the named service, or nil if it doesn't exist.
func (r *Registry) Get(name string) *Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[name]
}

// Names returns every registered service name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByPID returns the service currently running as pid, or nil if no
// registered service has that pid. Used by the SIGCHLD reaping loop,
// which only learns an exited pid from wait4, never a service name.
func (r *Registry) ByPID(pid int) *Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.services {
		s.mu.Lock()
		match := s.PID == pid
		s.mu.Unlock()
		if match {
			return s
		}
	}
	return nil
}

func (r *Registry) enqueueDelayed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delayed = append(r.delayed, name)
}

// ServicesUpdated reports whether MarkServicesUpdated has run.
func (r *Registry) ServicesUpdated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.servicesUpdated
}

// MarkServicesUpdated drains the delayed-services list, starting each one,
// and flips the servicesUpdated bit so future updatable Start calls
// launch immediately instead of enqueuing.
func (r *Registry) MarkServicesUpdated(ctx *Context, resolveProperty func(string) (string, bool)) {
	r.mu.Lock()
	r.servicesUpdated = true
	delayed := r.delayed
	r.delayed = nil
	r.mu.Unlock()

	for _, name := range delayed {
		if s := r.Get(name); s != nil {
			if err := s.Start(ctx, r, resolveProperty); err != nil {
				ctx.Logger.Warn("delayed service failed to start", "service", name, "error", err)
			}
		}
	}
}

// IsPostData reports whether userdata has been mounted. Start copies this
// bit into each new Service.
func (r *Registry) IsPostData() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.postData
}

// SetPostData marks userdata as mounted; monotonic — once true, stays true.
func (r *Registry) SetPostData() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postData = true
}

// ResetIfPostData records, for every service whose PostData bit is set,
// whether it was RUNNING, then StopOrResets it with RESET.
func (r *Registry) ResetIfPostData(ctx *Context) {
	for _, name := range r.Names() {
		s := r.Get(name)
		s.mu.Lock()
		if !s.PostData {
			s.mu.Unlock()
			continue
		}
		s.RunningAtPostDataReset = s.Flags.Has(Running)
		s.mu.Unlock()
		s.Reset(ctx)
	}
}

// StartIfPostData starts every service flagged RunningAtPostDataReset by
// a prior ResetIfPostData pass.
func (r *Registry) StartIfPostData(ctx *Context, resolveProperty func(string) (string, bool)) {
	for _, name := range r.Names() {
		s := r.Get(name)
		s.mu.Lock()
		shouldStart := s.PostData && s.RunningAtPostDataReset
		s.mu.Unlock()
		if shouldStart {
			if err := s.Start(ctx, r, resolveProperty); err != nil {
				ctx.Logger.Warn("post-data restart failed", "service", name, "error", err)
			}
		}
	}
}
