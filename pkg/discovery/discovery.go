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

// Package discovery enumerates devices through the bridge command and wraps
// the bridge server lifecycle.
//
// Enumeration never fails the caller: a failed or timed-out poll is logged
// and reported as "no devices seen" for that cycle.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/models"
	"github.com/carverauto/sidecast/pkg/settings"
)

// DefaultRestartDelay is the pause between stopping and starting the server.
const DefaultRestartDelay = time.Second

const daemonNotRunning = "daemon not running"

// Discovery queries devices through a Commander.
type Discovery struct {
	cmd          Commander
	logger       logger.Logger
	restartDelay time.Duration
	now          func() time.Time
}

// Option configures a Discovery.
type Option func(*Discovery)

// WithRestartDelay overrides the pause used by RestartServer.
func WithRestartDelay(d time.Duration) Option {
	return func(disc *Discovery) { disc.restartDelay = d }
}

// New creates a Discovery.
func New(cmd Commander, log logger.Logger, opts ...Option) *Discovery {
	d := &Discovery{
		cmd:          cmd,
		logger:       logger.OrNop(log),
		restartDelay: DefaultRestartDelay,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Poll lists the connected devices. Errors, including timeouts, yield an
// empty list.
func (d *Discovery) Poll(ctx context.Context) []models.DeviceSnapshot {
	out, err := d.cmd.Exec(ctx, "devices", "-l")
	if err != nil {
		d.logger.Warn().Err(err).Msg("Device enumeration failed")

		return []models.DeviceSnapshot{}
	}

	devices := ParseDevices(out, d.now())
	if devices == nil {
		devices = []models.DeviceSnapshot{}
	}

	d.logger.Debug().Int("devices", len(devices)).Msg("Device enumeration complete")

	return devices
}

// ConnectionState re-enumerates and returns the state of serial. A serial
// absent from the list is NotFound; a failed query is Unknown.
func (d *Discovery) ConnectionState(ctx context.Context, serial models.DeviceID) models.ConnectionState {
	out, err := d.cmd.Exec(ctx, "devices")
	if err != nil {
		d.logger.Debug().Err(err).Str("device", serial.String()).Msg("Connection state query failed")

		return models.ConnectionUnknown
	}

	for _, line := range strings.Split(out, "\n") {
		dev, ok := ParseDeviceLine(line)
		if ok && dev.Serial == serial {
			return models.ConnectionStateFromStatus(dev.Status)
		}
	}

	return models.ConnectionNotFound
}

// IsServerRunning reports whether the bridge server answered without having
// to be started.
func (d *Discovery) IsServerRunning(ctx context.Context) bool {
	out, err := d.cmd.Exec(ctx, "devices")
	if err != nil {
		d.logger.Debug().Err(err).Msg("Server state query failed")

		return false
	}

	return !strings.Contains(out, daemonNotRunning)
}

// StartServer starts the bridge server.
func (d *Discovery) StartServer(ctx context.Context) (string, error) {
	return d.serverCommand(ctx, "start-server")
}

// StopServer stops the bridge server.
func (d *Discovery) StopServer(ctx context.Context) (string, error) {
	return d.serverCommand(ctx, "kill-server")
}

// RestartServer stops the server, waits the restart delay and starts it
// again. A failed stop is logged and does not prevent the start. The delay is
// not verified to be long enough.
func (d *Discovery) RestartServer(ctx context.Context) (string, error) {
	if _, err := d.StopServer(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Stopping bridge server before restart failed")
	}

	timer := time.NewTimer(d.restartDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	return d.StartServer(ctx)
}

func (d *Discovery) serverCommand(ctx context.Context, verb string) (string, error) {
	out, err := d.cmd.Exec(ctx, verb)
	if err != nil {
		d.logger.Error().Err(err).Str("verb", verb).Msg("Bridge server command failed")

		return "", fmt.Errorf("%s: %w", verb, err)
	}

	d.logger.Info().Str("verb", verb).Msg("Bridge server command succeeded")

	return strings.TrimSpace(out), nil
}

// Connect attaches a network device. An empty port uses the default network
// port. The tool's message is returned on success and carried in the error
// otherwise.
func (d *Discovery) Connect(ctx context.Context, host, port string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", ErrEmptyHost
	}

	if port = strings.TrimSpace(port); port == "" {
		port = settings.DefaultTCPIPPort
	}

	target := net.JoinHostPort(host, port)

	out, err := d.cmd.Exec(ctx, "connect", target)
	msg := strings.TrimSpace(out)

	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrConnectFailed, target, err)
	}

	if !strings.Contains(msg, "connected to") {
		return "", fmt.Errorf("%w: %s: %s", ErrConnectFailed, target, msg)
	}

	d.logger.Info().Str("target", target).Msg(msg)

	return msg, nil
}
