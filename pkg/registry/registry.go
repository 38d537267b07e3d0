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

// Package registry tracks the external processes that back device sessions.
//
// There is at most one live process per (device, kind) key. Start reserves the
// key before spawning so concurrent starts for the same key cannot both
// succeed, and Stop releases the key synchronously so a new process can be
// started immediately while the old one is still shutting down.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/models"
)

// Key identifies a session slot.
type Key struct {
	Device models.DeviceID
	Kind   models.SessionKind
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Device, k.Kind)
}

// SpawnFunc launches the process for a key. It is only invoked when the key is
// free.
type SpawnFunc func() (Process, error)

// StartOption customizes a Start call.
type StartOption func(*Handle)

// WithExitHandler registers fn before the exit watcher starts, so an
// immediate exit cannot be missed.
func WithExitHandler(fn ExitHandler) StartOption {
	return func(h *Handle) {
		if fn != nil {
			h.handlers = append(h.handlers, fn)
		}
	}
}

// WithMetadata attaches a kind-specific attribute to the handle.
func WithMetadata(name, value string) StartOption {
	return func(h *Handle) {
		h.metadata[name] = value
	}
}

// Registry owns the process handles keyed by (device, kind).
type Registry struct {
	mu        sync.Mutex
	entries   map[Key]*Handle
	reserved  map[Key]struct{}
	signalled map[*Handle]struct{}
	logger    logger.Logger
	now       func() time.Time
}

// New creates an empty registry.
func New(log logger.Logger) *Registry {
	return &Registry{
		entries:   make(map[Key]*Handle),
		reserved:  make(map[Key]struct{}),
		signalled: make(map[*Handle]struct{}),
		logger:    logger.OrNop(log),
		now:       time.Now,
	}
}

// Start spawns and registers a process for key. It fails with
// ErrAlreadyRunning, without calling spawn, when key is occupied. A spawn
// failure is returned as *SpawnError and leaves no entry behind.
func (r *Registry) Start(key Key, spawn SpawnFunc, opts ...StartOption) (*Handle, error) {
	r.mu.Lock()
	if r.occupiedLocked(key) {
		r.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, key)
	}

	r.reserved[key] = struct{}{}
	r.mu.Unlock()

	proc, err := spawn()
	if err == nil && proc == nil {
		err = ErrNilProcess
	}

	r.mu.Lock()
	delete(r.reserved, key)

	if err != nil {
		r.mu.Unlock()

		r.logger.Warn().Err(err).Str("key", key.String()).Msg("Spawn failed")

		return nil, &SpawnError{Key: key, Err: err}
	}

	h := newHandle(key, proc, r.now())
	for _, opt := range opts {
		opt(h)
	}

	r.entries[key] = h
	r.mu.Unlock()

	r.logger.Debug().
		Str("key", key.String()).
		Str("session_id", h.id).
		Int("pid", proc.Pid()).
		Msg("Process registered")

	go r.watch(h)

	return h, nil
}

// Stop signals the process for key and removes the entry without waiting for
// the process to exit. It reports whether a process was registered.
func (r *Registry) Stop(key Key) bool {
	_, ok := r.StopHandle(key)

	return ok
}

// StopHandle is Stop that also returns the handle it removed, so callers can
// wait on that exact process even if key is reused right away.
func (r *Registry) StopHandle(key Key) (*Handle, bool) {
	r.mu.Lock()
	h, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()

		return nil, false
	}

	delete(r.entries, key)
	h.stopRequested.Store(true)
	h.signalledAt = r.now()
	r.signalled[h] = struct{}{}
	r.mu.Unlock()

	if err := h.proc.Terminate(); err != nil {
		r.logger.Debug().Err(err).Str("key", key.String()).Int("pid", h.PID()).Msg("Terminate signal failed")
	}

	r.logger.Debug().Str("key", key.String()).Int("pid", h.PID()).Msg("Process stop requested")

	return h, true
}

// OnExit registers a one-shot handler for the process currently registered
// under key. It returns false when nothing is registered.
func (r *Registry) OnExit(key Key, fn ExitHandler) bool {
	h, ok := r.Get(key)
	if !ok {
		return false
	}

	h.OnExit(fn)

	return true
}

// IsActive reports whether key is occupied, including a start in progress.
func (r *Registry) IsActive(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.occupiedLocked(key)
}

// Get returns the live handle for key.
func (r *Registry) Get(key Key) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.entries[key]

	return h, ok
}

// List returns the registered keys in a stable order.
func (r *Registry) List() []Key {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.entries))

	for key := range r.entries {
		keys = append(keys, key)
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Device != keys[j].Device {
			return keys[i].Device < keys[j].Device
		}

		return keys[i].Kind < keys[j].Kind
	})

	return keys
}

// Handles returns the live handles in key order.
func (r *Registry) Handles() []*Handle {
	keys := r.List()
	handles := make([]*Handle, 0, len(keys))

	for _, key := range keys {
		if h, ok := r.Get(key); ok {
			handles = append(handles, h)
		}
	}

	return handles
}

// Count returns the number of live processes of the given kind.
func (r *Registry) Count(kind models.SessionKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for key := range r.entries {
		if key.Kind == kind {
			n++
		}
	}

	return n
}

// StopKind stops every process of the given kind and returns their keys.
func (r *Registry) StopKind(kind models.SessionKind) []Key {
	var stopped []Key

	for _, key := range r.List() {
		if key.Kind == kind && r.Stop(key) {
			stopped = append(stopped, key)
		}
	}

	return stopped
}

func (r *Registry) occupiedLocked(key Key) bool {
	if _, ok := r.entries[key]; ok {
		return true
	}

	_, ok := r.reserved[key]

	return ok
}

func (r *Registry) watch(h *Handle) {
	status := h.proc.Wait()
	status.Manual = h.stopRequested.Load()

	r.mu.Lock()
	if current, ok := r.entries[h.key]; ok && current == h {
		delete(r.entries, h.key)
	}

	delete(r.signalled, h)
	r.mu.Unlock()

	event := r.logger.Debug()
	if !status.Manual {
		event = r.logger.Info()
	}

	event.
		Str("key", h.key.String()).
		Str("session_id", h.id).
		Int("pid", h.PID()).
		Int("exit_code", status.Code).
		Str("signal", status.Signal).
		Bool("manual", status.Manual).
		Msg("Process exited")

	h.finish(status)
}
