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
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/carverauto/sidecast/pkg/models"
	"github.com/spf13/cobra"
)

func (c *cli) devicesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "devices",
		GroupID: GroupDevices,
		Short:   "List attached devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices := c.rt.Discovery.Poll(cmd.Context())

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), devices)
			}

			if len(devices) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No devices attached")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "SERIAL\tSTATUS\tMODE\tMODEL")

			for _, d := range devices {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Serial, d.Status, d.Transport, d.Model)
			}

			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func (c *cli) detailsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "details <serial>",
		GroupID: GroupDevices,
		Short:   "Show device properties, battery and screen information",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := c.rt.Discovery.Details(cmd.Context(), models.DeviceID(args[0]))

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), d)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			rows := [][2]string{
				{"Serial", d.Serial.String()},
				{"Brand", d.Brand},
				{"Model", d.Model},
				{"Android", d.AndroidVersion},
				{"API level", d.APILevel},
				{"CPU ABI", d.CPUABI},
				{"Screen", d.ScreenSize},
				{"Battery", fmt.Sprintf("%s (%s)", d.BatteryLevel, d.BatteryStatus)},
				{"Uptime", d.Uptime},
				{"Connection", string(d.Connection)},
			}

			for _, r := range rows {
				_, _ = fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
			}

			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func (c *cli) stateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "state <serial>",
		GroupID: GroupDevices,
		Short:   "Print the connection state of one device",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := c.rt.Discovery.ConnectionState(cmd.Context(), models.DeviceID(args[0]))
			_, err := fmt.Fprintln(cmd.OutOrStdout(), state)

			return err
		},
	}
}

func (c *cli) connectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "connect <host> [port]",
		GroupID: GroupDevices,
		Short:   "Connect to a device over the network",
		Long: `Connect to a device over TCP/IP. The port defaults to the tcpIpPort
setting (5555 unless changed).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := c.rt.Settings.Snapshot().TCPIPPortOrDefault()
			if len(args) == 2 {
				port = args[1]
			}

			out, err := c.rt.Discovery.Connect(cmd.Context(), args[0], port)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)

			return err
		},
	}
}

func (c *cli) serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "server",
		GroupID: GroupDevices,
		Short:   "Inspect and control the adb server",
		RunE:    requireSubcommand,
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Report whether the adb server is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state := "stopped"
			if c.rt.Discovery.IsServerRunning(cmd.Context()) {
				state = "running"
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), state)

			return err
		},
	}

	control := map[string]struct {
		short string
		run   func(*cobra.Command) (string, error)
	}{
		"start": {"Start the adb server", func(cmd *cobra.Command) (string, error) {
			return c.rt.Discovery.StartServer(cmd.Context())
		}},
		"stop": {"Kill the adb server", func(cmd *cobra.Command) (string, error) {
			return c.rt.Discovery.StopServer(cmd.Context())
		}},
		"restart": {"Kill the adb server and start it again", func(cmd *cobra.Command) (string, error) {
			return c.rt.Discovery.RestartServer(cmd.Context())
		}},
	}

	names := make([]string, 0, len(control))
	for name := range control {
		names = append(names, name)
	}

	sort.Strings(names)

	cmd.AddCommand(status)

	for _, name := range names {
		verb := control[name]

		cmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: verb.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				out, err := verb.run(cmd)
				if err != nil {
					return err
				}

				if out = strings.TrimSpace(out); out != "" {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				}

				return err
			},
		})
	}

	return cmd
}
