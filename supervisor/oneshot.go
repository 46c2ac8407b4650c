// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

var temporaryServiceCounter atomic.Uint64

const maxSuppGIDs = 64

// MakeTemporaryOneshotService accepts argv of the shape
// [seclabel [uid [gid supp_gid*]] -- cmd args...] and returns a Service
// flagged ONESHOT|TEMPORARY with a synthesized name "exec <N> (cmd args)".
func MakeTemporaryOneshotService(argv []string) (*Service, error) {
	seclabel, uid, hasUID, gid, suppGIDs, command, err := parseExecArgv(argv)
	if err != nil {
		return nil, err
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("supervisor: no command given")
	}
	if len(suppGIDs) > maxSuppGIDs {
		return nil, fmt.Errorf("supervisor: too many supplementary gids (max %d)", maxSuppGIDs)
	}

	n := temporaryServiceCounter.Add(1)
	name := fmt.Sprintf("exec %d (%s)", n, joinArgs(command))

	s := NewService(name, command)
	s.SecLabel = seclabel
	s.HasUID = hasUID
	s.UID = uid
	s.GID = gid
	s.SuppGIDs = suppGIDs
	s.Flags = Oneshot | Temporary
	return s, nil
}

func parseExecArgv(argv []string) (seclabel string, uid int, hasUID bool, gid int, suppGIDs []int, command []string, err error) {
	i := 0
	dashDash := -1
	for idx, a := range argv {
		if a == "--" {
			dashDash = idx
			break
		}
	}
	if dashDash < 0 {
		return "", 0, false, 0, nil, nil, fmt.Errorf("supervisor: exec argv missing '--' separator")
	}
	prefix := argv[:dashDash]
	command = argv[dashDash+1:]

	if i < len(prefix) {
		seclabel = prefix[i]
		i++
	}
	if i < len(prefix) {
		uid, err = strconv.Atoi(prefix[i])
		if err != nil {
			return "", 0, false, 0, nil, nil, fmt.Errorf("supervisor: invalid uid %q: %w", prefix[i], err)
		}
		hasUID = true
		i++
	}
	if i < len(prefix) {
		gid, err = strconv.Atoi(prefix[i])
		if err != nil {
			return "", 0, false, 0, nil, nil, fmt.Errorf("supervisor: invalid gid %q: %w", prefix[i], err)
		}
		i++
	}
	for ; i < len(prefix); i++ {
		g, convErr := strconv.Atoi(prefix[i])
		if convErr != nil {
			return "", 0, false, 0, nil, nil, fmt.Errorf("supervisor: invalid supplementary gid %q: %w", prefix[i], convErr)
		}
		suppGIDs = append(suppGIDs, g)
	}
	return seclabel, uid, hasUID, gid, suppGIDs, command, nil
}

func joinArgs(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
