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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/carverauto/sidecast/pkg/version"
	"github.com/spf13/cobra"
)

// Command group IDs used to organize help output.
const (
	GroupDevices  = "devices"
	GroupSessions = "sessions"
	GroupConfig   = "config"
)

type cli struct {
	opts Options
	rt   *Runtime
}

// Execute runs the sidecast command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		return 1
	}

	return 0
}

// NewRootCommand builds the sidecast command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:     "sidecast",
		Short:   "Android device sessions over adb and scrcpy",
		Version: version.GetFullVersion(),
		Long: `sidecast enumerates Android devices through adb and runs sessions on them:
screen mirroring and recording through scrcpy, screenshots, and logcat
streaming with batched delivery to stdout or NATS JetStream.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := NewRuntime(cmd.Context(), c.opts)
			if err != nil {
				return err
			}

			c.rt = rt

			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.opts.ConfigPath, "config", "", "Path to daemon config file (JSON or TOML)")
	root.PersistentFlags().StringVar(&c.opts.SettingsPath, "settings", "", "Path to settings file")
	root.PersistentFlags().BoolVar(&c.opts.Debug, "debug", false, "Enable debug logging")

	root.AddGroup(
		&cobra.Group{ID: GroupDevices, Title: "Devices:"},
		&cobra.Group{ID: GroupSessions, Title: "Sessions:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration:"},
	)

	root.AddCommand(
		c.devicesCommand(),
		c.detailsCommand(),
		c.stateCommand(),
		c.connectCommand(),
		c.serverCommand(),
		c.mirrorCommand(),
		c.recordCommand(),
		c.screenshotCommand(),
		c.logcatCommand(),
		c.settingsCommand(),
	)

	return root
}

func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for p := cmd; p != nil; p = p.Parent() {
		parts = append([]string{p.Name()}, parts...)
	}

	return strings.Join(parts, " ")
}

// requireSubcommand makes parent commands fail on a missing or unknown
// subcommand instead of printing help and exiting 0.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd))
	}

	return fmt.Errorf("unknown command %q for %q\n\nRun '%s --help' for available commands",
		args[0], buildCommandPath(cmd), buildCommandPath(cmd))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
