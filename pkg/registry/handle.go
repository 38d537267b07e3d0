/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/sidecast/pkg/models"
	"github.com/google/uuid"
)

// ExitHandler is invoked exactly once when a process terminates. The handle
// has already been removed from the registry.
type ExitHandler func(h *Handle, status models.ExitStatus)

// Handle is the registry's record of one spawned process. It stays valid after
// the entry is removed so callers can still wait on it.
type Handle struct {
	id        string
	key       Key
	proc      Process
	startedAt time.Time
	metadata  map[string]string

	stopRequested atomic.Bool
	signalledAt   time.Time

	mu       sync.Mutex
	exited   bool
	status   models.ExitStatus
	handlers []ExitHandler
	done     chan struct{}
}

func newHandle(key Key, proc Process, startedAt time.Time) *Handle {
	return &Handle{
		id:        uuid.NewString(),
		key:       key,
		proc:      proc,
		startedAt: startedAt,
		metadata:  make(map[string]string),
		done:      make(chan struct{}),
	}
}

func (h *Handle) ID() string           { return h.id }
func (h *Handle) Key() Key             { return h.key }
func (h *Handle) PID() int             { return h.proc.Pid() }
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Metadata returns a kind-specific attribute such as an output path.
func (h *Handle) Metadata(name string) string {
	return h.metadata[name]
}

// StopRequested reports whether Stop was called for this process.
func (h *Handle) StopRequested() bool {
	return h.stopRequested.Load()
}

// Done is closed once the process has exited and handlers have run.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Status returns the exit status once the process has terminated.
func (h *Handle) Status() (models.ExitStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.status, h.exited
}

// OnExit registers a one-shot handler. If the process already exited the
// handler runs immediately on the caller's goroutine.
func (h *Handle) OnExit(fn ExitHandler) {
	if fn == nil {
		return
	}

	h.mu.Lock()
	if h.exited {
		status := h.status
		h.mu.Unlock()
		fn(h, status)

		return
	}

	h.handlers = append(h.handlers, fn)
	h.mu.Unlock()
}

func (h *Handle) finish(status models.ExitStatus) {
	h.mu.Lock()
	h.exited = true
	h.status = status
	handlers := h.handlers
	h.handlers = nil
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(h, status)
	}

	close(h.done)
}
