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

// Package session is the lifecycle contract for per-device mirror, recording
// and log stream sessions.
//
// Every session is one external process held in a registry.Registry under
// its (device, kind) key. Settings are read at each start, so changes apply
// to the next session. A process that exits after a stop from this manager
// is a manual end; any other exit is abnormal and is reported through the end
// notification rather than as an error.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/carverauto/sidecast/pkg/batcher"
	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/models"
	"github.com/carverauto/sidecast/pkg/registry"
)

// DefaultGracePeriod is how long StopRecording waits for the recorder to
// finalize its output.
const DefaultGracePeriod = time.Second

const metaOutput = "output"

// EndObserver receives one notification per session end.
type EndObserver func(models.SessionEnd)

// RecordingHandle locates the artifact of a recording.
type RecordingHandle struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// SessionInfo describes one active session.
type SessionInfo struct {
	ID         string             `json:"id"`
	Device     models.DeviceID    `json:"device"`
	Kind       models.SessionKind `json:"kind"`
	PID        int                `json:"pid"`
	StartedAt  time.Time          `json:"started_at"`
	OutputPath string             `json:"output_path,omitempty"`
}

// Manager starts, stops and observes device sessions.
type Manager struct {
	registry  *registry.Registry
	settings  SettingsSource
	bridge    Bridge
	launcher  Launcher
	validator DeviceValidator
	observer  EndObserver
	logger    logger.Logger

	gracePeriod  time.Duration
	batcherOpts  []batcher.Option
	now          func() time.Time
	mirrorStarts sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLauncher replaces the OS process launcher.
func WithLauncher(l Launcher) Option {
	return func(m *Manager) { m.launcher = l }
}

// WithDeviceValidator makes starts fail with ErrUnknownDevice for devices
// the validator does not know.
func WithDeviceValidator(v DeviceValidator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithEndObserver registers a callback for every session end.
func WithEndObserver(fn EndObserver) Option {
	return func(m *Manager) { m.observer = fn }
}

// WithGracePeriod sets the StopRecording and Shutdown wait.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) { m.gracePeriod = d }
}

// WithBatcherOptions tunes the log stream batchers.
func WithBatcherOptions(opts ...batcher.Option) Option {
	return func(m *Manager) { m.batcherOpts = append(m.batcherOpts, opts...) }
}

// WithNow replaces the clock used for file names.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager over reg.
func NewManager(reg *registry.Registry, src SettingsSource, br Bridge, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		registry:    reg,
		settings:    src,
		bridge:      br,
		launcher:    ExecLauncher{},
		logger:      logger.OrNop(log),
		gracePeriod: DefaultGracePeriod,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.batcherOpts = append([]batcher.Option{batcher.WithLogger(m.logger)}, m.batcherOpts...)

	return m
}

// StartMirror launches a mirror for device. It fails with ErrAlreadyActive
// when one is running and with ErrTooManySessions when the maxConnections
// setting is reached.
func (m *Manager) StartMirror(device models.DeviceID, opts MirrorOptions) error {
	if err := m.validate(device); err != nil {
		return err
	}

	snap := m.settings.Snapshot()
	key := registry.Key{Device: device, Kind: models.SessionMirror}

	m.mirrorStarts.Lock()
	defer m.mirrorStarts.Unlock()

	if limit := snap.MaxConnections; limit > 0 && !m.registry.IsActive(key) &&
		m.registry.Count(models.SessionMirror) >= limit {
		return fmt.Errorf("%w: limit is %d", ErrTooManySessions, limit)
	}

	path := snap.MirrorPath()
	args := MirrorArgs(device, snap, opts.ExtraArgs)
	env := mirrorEnv(snap)

	h, err := m.registry.Start(key, func() (registry.Process, error) {
		return m.launcher.Detached(path, args, env)
	}, registry.WithExitHandler(m.endHandler(nil)))
	if err != nil {
		return startError(err)
	}

	m.logger.Info().
		Str("device", device.String()).
		Str("session_id", h.ID()).
		Int("pid", h.PID()).
		Strs("args", args).
		Msg("Mirror started")

	return nil
}

// StopMirror signals the mirror for device and reports whether one was
// running.
func (m *Manager) StopMirror(device models.DeviceID) bool {
	return m.registry.Stop(registry.Key{Device: device, Kind: models.SessionMirror})
}

// IsMirroring reports whether a mirror is active for device.
func (m *Manager) IsMirroring(device models.DeviceID) bool {
	return m.registry.IsActive(registry.Key{Device: device, Kind: models.SessionMirror})
}

// StartRecording launches a recorder writing to a new file in the
// configured recording directory.
func (m *Manager) StartRecording(device models.DeviceID) (RecordingHandle, error) {
	if err := m.validate(device); err != nil {
		return RecordingHandle{}, err
	}

	key := registry.Key{Device: device, Kind: models.SessionRecording}
	if m.registry.IsActive(key) {
		return RecordingHandle{}, fmt.Errorf("%w: %s", ErrAlreadyActive, key)
	}

	snap := m.settings.Snapshot()

	if err := os.MkdirAll(snap.RecordingPath, 0o755); err != nil {
		return RecordingHandle{}, fmt.Errorf("create recording directory: %w", err)
	}

	rec := RecordingHandle{Filename: RecordingFilename(device, m.now())}
	rec.Path = filepath.Join(snap.RecordingPath, rec.Filename)

	path := snap.MirrorPath()
	args := RecordingArgs(device, snap, rec.Path)
	env := mirrorEnv(snap)

	h, err := m.registry.Start(key, func() (registry.Process, error) {
		return m.launcher.Detached(path, args, env)
	}, registry.WithMetadata(metaOutput, rec.Path), registry.WithExitHandler(m.endHandler(nil)))
	if err != nil {
		return RecordingHandle{}, startError(err)
	}

	m.logger.Info().
		Str("device", device.String()).
		Str("session_id", h.ID()).
		Int("pid", h.PID()).
		Str("output", rec.Path).
		Msg("Recording started")

	return rec, nil
}

// StopRecording signals the recorder for device and then waits up to the
// grace period, returning early once the recorder has exited. The wait gives
// the recorder time to finalize the file; it does not verify the file. If
// ctx ends first the recorder has still been signalled and ctx's error is
// returned.
func (m *Manager) StopRecording(ctx context.Context, device models.DeviceID) error {
	key := registry.Key{Device: device, Kind: models.SessionRecording}

	h, ok := m.registry.StopHandle(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotActive, key)
	}

	timer := time.NewTimer(m.gracePeriod)
	defer timer.Stop()

	select {
	case <-h.Done():
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Info().
		Str("device", device.String()).
		Str("output", h.Metadata(metaOutput)).
		Msg("Recording stopped")

	return nil
}

// IsRecording reports whether a recording is active for device.
func (m *Manager) IsRecording(device models.DeviceID) bool {
	return m.registry.IsActive(registry.Key{Device: device, Kind: models.SessionRecording})
}

// Sessions lists the active sessions.
func (m *Manager) Sessions() []SessionInfo {
	handles := m.registry.Handles()
	out := make([]SessionInfo, 0, len(handles))

	for _, h := range handles {
		out = append(out, SessionInfo{
			ID:         h.ID(),
			Device:     h.Key().Device,
			Kind:       h.Key().Kind,
			PID:        h.PID(),
			StartedAt:  h.StartedAt(),
			OutputPath: h.Metadata(metaOutput),
		})
	}

	return out
}

// Lingering lists stopped processes that are still alive.
func (m *Manager) Lingering(ctx context.Context) []registry.LingeringProcess {
	return m.registry.Lingering(ctx)
}

func (m *Manager) validate(device models.DeviceID) error {
	if device == "" {
		return errEmptyDeviceID
	}

	if m.validator != nil && !m.validator.Known(device) {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}

	return nil
}

// endHandler logs and publishes a session end, then runs then.
func (m *Manager) endHandler(then func(models.ExitStatus)) registry.ExitHandler {
	return func(h *registry.Handle, status models.ExitStatus) {
		key := h.Key()

		event := m.logger.Info()
		if !status.Manual {
			event = m.logger.Warn()
		}

		event.
			Str("device", key.Device.String()).
			Str("kind", key.Kind.String()).
			Str("session_id", h.ID()).
			Int("exit_code", status.Code).
			Str("signal", status.Signal).
			Bool("manual", status.Manual).
			Msg("Session ended")

		if m.observer != nil {
			m.observer(models.SessionEnd{
				SessionID: h.ID(),
				Device:    key.Device,
				Kind:      key.Kind,
				Status:    status,
				StartedAt: h.StartedAt(),
				EndedAt:   time.Now(),
			})
		}

		if then != nil {
			then(status)
		}
	}
}
