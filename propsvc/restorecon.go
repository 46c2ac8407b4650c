// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package propsvc

import (
	"log/slog"
	"sync"

	"github.com/coreinit/coreinit/property"
)

// restoreconWorker runs selinux.restorecon_recursive requests on a
// single background goroutine. At most one worker goroutine is ever
// running; it exits when the queue drains and is restarted by
// enqueue on the next request, matching §4.4's "multiple paths are
// queued; at most one worker thread exists" contract.
type restoreconWorker struct {
	mu      sync.Mutex
	queue   []string
	running bool
	store   *property.Store
	logger  *slog.Logger
}

func newRestoreconWorker(store *property.Store, logger *slog.Logger) *restoreconWorker {
	return &restoreconWorker{store: store, logger: logger}
}

// enqueue adds path to the pending queue and starts the worker
// goroutine if it is not already running.
func (w *restoreconWorker) enqueue(path string) {
	w.mu.Lock()
	w.queue = append(w.queue, path)
	start := !w.running
	if start {
		w.running = true
	}
	w.mu.Unlock()

	if start {
		go w.run()
	}
}

// run drains the queue, processing one path per iteration, and exits
// once empty. A concurrent enqueue that arrives after the queue is
// observed empty but before running is cleared will start a fresh
// goroutine rather than racing this one, since running is only
// cleared immediately before this goroutine returns.
func (w *restoreconWorker) run() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.running = false
			w.mu.Unlock()
			return
		}
		path := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.restorecon(path)
	}
}

// restorecon performs the (simulated) recursive security-context
// restore and records completion by publishing the finished path.
// This implementation does not link libselinux — restoring an actual
// SELinux context has no effect — so completion is recorded
// unconditionally; see DESIGN.md.
func (w *restoreconWorker) restorecon(path string) {
	result := w.store.Set("selinux.restorecon_recursive", path)
	if result != property.Success {
		w.logger.Warn("restorecon_recursive completion property rejected",
			"path", path, "result", result.String())
		return
	}
	w.logger.Debug("restorecon_recursive finished", "path", path)
}
