// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"os/user"
	"strconv"
)

// resolveUID accepts either a numeric uid or a username.
func resolveUID(s string) (int, error) {
	if uid, err := strconv.Atoi(s); err == nil {
		return uid, nil
	}
	u, err := user.Lookup(s)
	if err != nil {
		return 0, fmt.Errorf("resolve uid %q: %w", s, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, fmt.Errorf("resolve uid %q: %w", s, err)
	}
	return uid, nil
}

// resolveGID accepts either a numeric gid or a group name.
func resolveGID(s string) (int, error) {
	if gid, err := strconv.Atoi(s); err == nil {
		return gid, nil
	}
	g, err := user.LookupGroup(s)
	if err != nil {
		return 0, fmt.Errorf("resolve gid %q: %w", s, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, fmt.Errorf("resolve gid %q: %w", s, err)
	}
	return gid, nil
}
