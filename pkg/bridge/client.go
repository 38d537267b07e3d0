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

// Package bridge runs the device bridge executable (adb) as one-shot
// commands.
//
// The executable path and the per-call timeout are read from the settings
// source on every call, so a change takes effect on the next command.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/settings"
)

// SettingsSource supplies the current settings.
type SettingsSource interface {
	Snapshot() settings.Settings
}

// Client runs bridge commands.
type Client struct {
	settings SettingsSource
	runner   Runner
	logger   logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the process runner, for tests.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.runner = r }
}

// NewClient creates a client reading its configuration from src.
func NewClient(src SettingsSource, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		settings: src,
		runner:   execRunner{},
		logger:   logger.OrNop(log),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Path returns the bridge executable currently configured.
func (c *Client) Path() string {
	return c.settings.Snapshot().BridgePath()
}

// Exec runs the bridge with args and returns its stdout. The call fails with
// ErrTimeout after the configured deadline, *SpawnError when the executable
// cannot be started, and *CommandError on a non-zero exit.
func (c *Client) Exec(ctx context.Context, args ...string) (string, error) {
	snap := c.settings.Snapshot()
	path := snap.BridgePath()
	timeout := snap.CommandTimeout()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := c.runner.Run(runCtx, path, args, Environ())

	c.logger.Trace().
		Str("path", path).
		Strs("args", args).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("Bridge command finished")

	if err != nil {
		return "", classify(ctx, runCtx, path, args, timeout, res, err)
	}

	return string(res.Stdout), nil
}

func classify(parent, runCtx context.Context, path string, args []string, timeout time.Duration, res Result, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%s %s: %w", path, strings.Join(args, " "), parent.Err())
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s after %s", ErrTimeout, path, strings.Join(args, " "), timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			Args:     append([]string{path}, args...),
			ExitCode: exitErr.ExitCode(),
			Stdout:   string(res.Stdout),
			Stderr:   string(res.Stderr),
		}
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) || errors.Is(err, exec.ErrDot) {
		return &SpawnError{Path: path, Err: err}
	}

	return fmt.Errorf("%s %s: %w", path, strings.Join(args, " "), err)
}
