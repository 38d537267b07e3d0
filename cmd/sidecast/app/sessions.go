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

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carverauto/sidecast/pkg/discovery"
	"github.com/carverauto/sidecast/pkg/lifecycle"
	"github.com/carverauto/sidecast/pkg/models"
	"github.com/carverauto/sidecast/pkg/session"
	"github.com/carverauto/sidecast/pkg/sink"
	"github.com/spf13/cobra"
)

// doneSignal closes its channel on the first fire.
type doneSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newDoneSignal() *doneSignal {
	return &doneSignal{ch: make(chan struct{})}
}

func (d *doneSignal) fire() {
	d.once.Do(func() { close(d.ch) })
}

// runUntilDone blocks until done fires or a termination signal arrives, then
// runs shutdown. The watcher keeps polling devices in the meantime.
func (c *cli) runUntilDone(ctx context.Context, name string, watcher *discovery.Watcher, done *doneSignal, shutdown func(context.Context) error) error {
	return lifecycle.Run(ctx, &lifecycle.RunOptions{
		ServiceName: name,
		Logger:      c.rt.Logger,
		Service: lifecycle.ServiceFunc{
			RunFunc: func(ctx context.Context) error {
				watchCtx, stopWatch := context.WithCancel(ctx)
				defer stopWatch()

				go func() {
					if err := watcher.Run(watchCtx); err != nil {
						c.rt.Logger.Warn().Err(err).Msg("Device watcher stopped")
					}
				}()

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-done.ch:
					return nil
				}
			},
			ShutdownFunc: shutdown,
		},
	})
}

func (c *cli) mirrorCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "mirror <serial> [-- scrcpy args...]",
		GroupID: GroupSessions,
		Short:   "Mirror a device screen until the window closes or Ctrl+C",
		Long: `Mirror a device screen with scrcpy. Bitrate, resolution and frame-rate caps,
touches, audio and custom arguments come from the settings store. Arguments
after -- are appended to the scrcpy command line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			out, closeSinks, err := c.rt.Sinks(ctx)
			if err != nil {
				return err
			}
			defer closeSinks()

			done := newDoneSignal()
			mgr, watcher := c.rt.NewManager(ctx, out, func(models.SessionEnd) { done.fire() })

			device := models.DeviceID(args[0])
			if err := mgr.StartMirror(device, session.MirrorOptions{ExtraArgs: args[1:]}); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Mirroring %s\n", device)

			return c.runUntilDone(ctx, "mirror", watcher, done, mgr.Shutdown)
		},
	}
}

func (c *cli) recordCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "record <serial>",
		GroupID: GroupSessions,
		Short:   "Record a device screen until Ctrl+C",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			out, closeSinks, err := c.rt.Sinks(ctx)
			if err != nil {
				return err
			}
			defer closeSinks()

			done := newDoneSignal()
			mgr, watcher := c.rt.NewManager(ctx, out, func(models.SessionEnd) { done.fire() })

			device := models.DeviceID(args[0])

			rec, err := mgr.StartRecording(device)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recording %s to %s\n", device, rec.Path)

			return c.runUntilDone(ctx, "record", watcher, done, func(ctx context.Context) error {
				if err := mgr.StopRecording(ctx, device); err != nil && !errors.Is(err, session.ErrNotActive) {
					return err
				}

				return mgr.Shutdown(ctx)
			})
		},
	}
}

func (c *cli) screenshotCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "screenshot <serial>",
		GroupID: GroupSessions,
		Short:   "Capture a screenshot into the screenshot directory",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, _ := c.rt.NewManager(ctx, sink.NewLogSink(c.rt.Logger), nil)

			shot, err := mgr.TakeScreenshot(ctx, models.DeviceID(args[0]))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), shot.Path)

			return err
		},
	}
}

func (c *cli) logcatCommand() *cobra.Command {
	var prefix bool

	cmd := &cobra.Command{
		Use:     "logcat <serial>...",
		GroupID: GroupSessions,
		Short:   "Stream device logs until every stream ends or Ctrl+C",
		Long: `Stream logcat from one or more devices. Lines are delivered in batches to
stdout and, when configured, to NATS JetStream.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			out, closeSinks, err := c.rt.Sinks(ctx, sink.NewWriterSink(cmd.OutOrStdout(), prefix || len(args) > 1))
			if err != nil {
				return err
			}
			defer closeSinks()

			mgr, watcher := c.rt.NewManager(ctx, out, nil)
			devices := uniqueDevices(args)

			var (
				mu      sync.Mutex
				running = len(devices)
				done    = newDoneSignal()
			)

			onEnd := func(device models.DeviceID, manual bool) {
				out.LogEnded(device, manual)

				mu.Lock()
				running--
				last := running == 0
				mu.Unlock()

				if last {
					done.fire()
				}
			}

			for _, device := range devices {
				if err := mgr.StartLogStream(device, out.LogBatch, onEnd); err != nil {
					mgr.StopAllLogStreams()
					return err
				}
			}

			return c.runUntilDone(ctx, "logcat", watcher, done, mgr.Shutdown)
		},
	}

	cmd.Flags().BoolVar(&prefix, "prefix", false, "Prefix every line with the device serial")

	return cmd
}

func uniqueDevices(args []string) []models.DeviceID {
	seen := make(map[models.DeviceID]bool, len(args))
	out := make([]models.DeviceID, 0, len(args))

	for _, arg := range args {
		id := models.DeviceID(arg)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	return out
}
