// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// cgroupRoot is the process-cgroup hierarchy root. Each started service
// gets "<cgroupRoot>/<name>" for bulk signaling and memory limits.
var cgroupRoot = "/sys/fs/cgroup/coreinit"

type memoryControls struct {
	Swappiness     int
	SoftLimitBytes uint64
	LimitBytes     uint64
}

func cgroupPath(name string) string {
	return filepath.Join(cgroupRoot, name)
}

// createProcessCgroup creates the per-service cgroup and moves pid into
// it. Failures here are logged but non-fatal, per §4.2/§7.
func createProcessCgroup(name string, uid, pid int) error {
	path := cgroupPath(name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	procs := filepath.Join(path, "cgroup.procs")
	if err := os.WriteFile(procs, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", procs, err)
	}
	return nil
}

// applyMemoryControls writes the cgroup v2 knobs closest to the
// distilled spec's swappiness/soft-limit/limit controls. cgroup v2 has no
// per-cgroup swappiness control; memory.swap.max is the closest durable
// analogue for bounding a service's swap usage, and is used here instead
// of silently dropping the Swappiness field — see DESIGN.md.
func applyMemoryControls(name string, controls memoryControls) error {
	path := cgroupPath(name)
	var firstErr error
	write := func(file, value string) {
		if value == "" {
			return
		}
		if err := os.WriteFile(filepath.Join(path, file), []byte(value), 0644); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("write %s/%s: %w", path, file, err)
		}
	}
	if controls.SoftLimitBytes > 0 {
		write("memory.high", strconv.FormatUint(controls.SoftLimitBytes, 10))
	}
	if controls.LimitBytes > 0 {
		write("memory.max", strconv.FormatUint(controls.LimitBytes, 10))
	}
	if controls.Swappiness >= 0 {
		swapBytes := controls.LimitBytes
		if swapBytes == 0 {
			swapBytes = math.MaxInt64
		}
		write("memory.swap.max", strconv.FormatUint(swapBytes*uint64(controls.Swappiness)/100, 10))
	}
	return firstErr
}

// killProcessCgroup sends SIGKILL to every pid listed in the service's
// cgroup.procs. It leaves the cgroup in place; removeProcessCgroup
// deletes it. Used by Reap and StopOrReset.
func killProcessCgroup(name string) error {
	path := cgroupPath(name)
	data, err := os.ReadFile(filepath.Join(path, "cgroup.procs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Fields(string(data)) {
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		_ = unix.Kill(pid, unix.SIGKILL)
	}
	return nil
}

func removeProcessCgroup(name string) {
	_ = os.Remove(filepath.Join(cgroupPath(name), "cgroup.procs"))
	_ = os.Remove(cgroupPath(name))
}

// writeOOMScoreAdj writes the given adjustment into /proc/<pid>/oom_score_adj.
func writeOOMScoreAdj(pid, score int) error {
	path := fmt.Sprintf("/proc/%d/oom_score_adj", pid)
	return os.WriteFile(path, []byte(strconv.Itoa(score)), 0644)
}

// percentOfTotalRAM computes percent% of total system RAM (read from
// /proc/meminfo's MemTotal, which is reported in kB), saturating at
// math.MaxInt64 rather than overflowing on a pathological percent value.
func percentOfTotalRAM(percent int) (uint64, error) {
	totalKB, err := readMemTotalKB()
	if err != nil {
		return 0, err
	}
	totalBytes := totalKB * 1024
	product := totalBytes * uint64(percent)
	if percent != 0 && product/uint64(percent) != totalBytes {
		return math.MaxInt64, nil
	}
	return product / 100, nil
}

func readMemTotalKB() (uint64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			return strconv.ParseUint(fields[1], 10, 64)
		}
	}
	return 0, fmt.Errorf("cgroup: MemTotal not found in /proc/meminfo")
}

// ParseMemoryLimit parses a memory limit string such as "2G" or "512M"
// into bytes. Adapted from the teacher's systemd-scope memory parser,
// kept because the same K/M/G/T suffix grammar applies whether the limit
// is handed to systemd-run or written directly to a cgroup v2 file.
func ParseMemoryLimit(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "infinity" {
		return 0, nil
	}

	var multiplier uint64 = 1
	numStr := s
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier, numStr = 1024, s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		multiplier, numStr = 1024*1024, s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		multiplier, numStr = 1024*1024*1024, s[:len(s)-1]
	case strings.HasSuffix(s, "T"):
		multiplier, numStr = 1024*1024*1024*1024, s[:len(s)-1]
	}

	value, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", s, err)
	}
	return value * multiplier, nil
}
