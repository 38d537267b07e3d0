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

package session

import (
	"context"
	"errors"
	"io"

	"github.com/carverauto/sidecast/pkg/batcher"
	"github.com/carverauto/sidecast/pkg/bridge"
	"github.com/carverauto/sidecast/pkg/models"
	"github.com/carverauto/sidecast/pkg/registry"
)

// BatchFunc receives a device's log lines in bounded batches.
type BatchFunc func(device models.DeviceID, lines []string)

// EndFunc is called once when a device's log stream ends. manual is true
// when the end followed StopLogStream or StopAllLogStreams.
type EndFunc func(device models.DeviceID, manual bool)

// StartLogStream streams the device log to onBatch. It is a no-op when a
// stream is already running for device. onEnd runs after the last batch.
func (m *Manager) StartLogStream(device models.DeviceID, onBatch BatchFunc, onEnd EndFunc) error {
	if err := m.validate(device); err != nil {
		return err
	}

	key := registry.Key{Device: device, Kind: models.SessionLogStream}
	if m.registry.IsActive(key) {
		return nil
	}

	path := m.settings.Snapshot().BridgePath()
	args := []string{"-s", device.String(), "logcat"}

	var stream io.Reader

	b := batcher.New(func(lines []string) {
		if onBatch != nil {
			onBatch(device, lines)
		}
	}, m.batcherOpts...)

	drained := make(chan struct{})

	h, err := m.registry.Start(key, func() (registry.Process, error) {
		proc, r, err := m.launcher.Stream(path, args, bridge.Environ())
		stream = r

		return proc, err
	}, registry.WithExitHandler(m.endHandler(func(status models.ExitStatus) {
		<-drained

		if onEnd != nil {
			onEnd(device, status.Manual)
		}
	})))

	switch {
	case errors.Is(err, registry.ErrAlreadyRunning):
		// Lost a race with another subscriber.
		return nil
	case err != nil:
		return err
	}

	go func() {
		defer close(drained)

		if err := b.Run(context.Background(), stream); err != nil {
			m.logger.Warn().Err(err).Str("device", device.String()).Msg("Log stream read failed")
		}

		// Keep the pipe flowing until the process exits so its writer never blocks.
		_, _ = io.Copy(io.Discard, stream)
	}()

	m.logger.Info().
		Str("device", device.String()).
		Str("session_id", h.ID()).
		Int("pid", h.PID()).
		Msg("Log stream started")

	return nil
}

// StopLogStream signals the log stream for device and reports whether one
// was running.
func (m *Manager) StopLogStream(device models.DeviceID) bool {
	return m.registry.Stop(registry.Key{Device: device, Kind: models.SessionLogStream})
}

// IsStreamingLogs reports whether a log stream is active for device.
func (m *Manager) IsStreamingLogs(device models.DeviceID) bool {
	return m.registry.IsActive(registry.Key{Device: device, Kind: models.SessionLogStream})
}

// StopAllLogStreams signals every log stream and returns the devices that
// had one.
func (m *Manager) StopAllLogStreams() []models.DeviceID {
	keys := m.registry.StopKind(models.SessionLogStream)
	devices := make([]models.DeviceID, 0, len(keys))

	for _, key := range keys {
		devices = append(devices, key.Device)
	}

	return devices
}
