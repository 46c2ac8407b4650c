package main

import "github.com/coreinit/coreinit/property"

// bootGate reports whether sys.boot_completed has been set, the signal
// Reap's crash-window policy uses to distinguish early-boot crash loops
// (always counted) from steady-state crashes (counted only within the
// 4-minute window).
type bootGate struct {
	store *property.Store
}

func newBootGate(store *property.Store) *bootGate {
	return &bootGate{store: store}
}

func (b *bootGate) complete() bool {
	value, ok := b.store.Get("sys.boot_completed")
	return ok && value == "1"
}
