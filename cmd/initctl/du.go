// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// duCmd reports how much disk space the persistent property mirror is
// using, a quick sanity check since persist.* values accumulate one
// file per name for the life of the device.
func duCmd(persistDir string) error {
	var total int64
	var count int
	err := filepath.WalkDir(persistDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("initctl: walking %s: %w", persistDir, err)
	}
	fmt.Printf("%s: %s across %d persistent properties\n", persistDir, humanize.Bytes(uint64(total)), count)
	return nil
}
