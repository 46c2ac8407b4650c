// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package propsvc

import (
	"fmt"
	"os"
	"strings"
)

// noSELinuxContext is the fixed source/target context used in place of
// a real getpeercon(3)/property_contexts lookup. This implementation
// does not link libselinux; authorization always succeeds against this
// placeholder. See DESIGN.md.
const noSELinuxContext = "u:object_r:unconfined:s0"

// Authorizer decides whether sourceContext may set a property whose
// PropertyInfo trie lookup yields targetContext. The production
// implementation (AllowAllAuthorizer) always grants, matching the
// no-SELinux placeholder above; the interface exists so a future
// MAC binding has somewhere to plug in without reshaping Server.
type Authorizer interface {
	CheckSet(sourceContext, targetContext string) bool
}

// AllowAllAuthorizer is the only Authorizer this implementation ships.
type AllowAllAuthorizer struct{}

// CheckSet always grants.
func (AllowAllAuthorizer) CheckSet(string, string) bool { return true }

// peerCredentials captures what SO_PEERCRED and the SELinux-placeholder
// context yield for one client connection, snapshotted once at accept
// time per §4.5.
type peerCredentials struct {
	PID     int32
	UID     uint32
	GID     uint32
	Context string
}

// ctlPrefix is the distinguished prefix for control properties.
const ctlPrefix = "ctl."

// isControlProperty reports whether name is a ctl.* control request.
func isControlProperty(name string) bool {
	return strings.HasPrefix(name, ctlPrefix)
}

// controlActionFor maps the ctl.<verb> name to a ControlAction, or
// false if name is not a recognized verb.
func controlActionFor(name string) (ControlAction, bool) {
	switch strings.TrimPrefix(name, ctlPrefix) {
	case "start":
		return ActionStart, true
	case "stop":
		return ActionStop, true
	case "restart":
		return ActionRestart, true
	default:
		return "", false
	}
}

// checkControlAuthorization implements §4.5's two-step ctl.* check: a
// legacy check against "ctl.<value>" and a full check against
// "<name>$<value>". Both consult the PropertyInfo trie for the
// synthesized name's target context, then ask the Authorizer. Either
// grant is sufficient.
func (s *Server) checkControlAuthorization(peer peerCredentials, name, value string) bool {
	legacyName := ctlPrefix + value
	if info, ok := s.store.Info.Lookup(legacyName); ok {
		if s.authorizer.CheckSet(peer.Context, info.Context) {
			return true
		}
	} else if s.authorizer.CheckSet(peer.Context, noSELinuxContext) {
		// No trie entry: the placeholder context grants unconditionally
		// under AllowAllAuthorizer, matching today's always-permissive
		// authorization path.
		return true
	}

	fullName := name + "$" + value
	if info, ok := s.store.Info.Lookup(fullName); ok {
		if s.authorizer.CheckSet(peer.Context, info.Context) {
			return true
		}
	}

	return false
}

// handleSysPowerctl implements the sys.powerctl side effect: the value
// is stored as usual by the caller, but the server additionally logs
// the originating pid and its /proc/<pid>/cmdline.
func (s *Server) handleSysPowerctl(peer peerCredentials) {
	cmdline, _ := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", peer.PID))
	s.logger.Info("sys.powerctl request",
		"pid", peer.PID,
		"uid", peer.UID,
		"cmdline", strings.ReplaceAll(string(cmdline), "\x00", " "))
}

// handleRestoreconRecursive implements the selinux.restorecon_recursive
// side effect: when the writer is not pid 1 and value is non-empty,
// the path is queued on the async worker rather than stored
// synchronously; the worker records completion by Setting the property
// itself once the (simulated) restorecon pass finishes.
func (s *Server) handleRestoreconRecursive(peer peerCredentials, value string) bool {
	if peer.PID == 1 || value == "" {
		return false
	}
	s.restorecon.enqueue(value)
	return true
}
