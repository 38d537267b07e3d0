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

package discovery

import (
	"context"
	"strings"

	"github.com/carverauto/sidecast/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Details gathers telemetry for serial. The queries run concurrently and a
// query that fails reports Unknown for its field instead of failing the call.
// Once ctx is done the queries not yet sent are skipped and report Unknown.
func (d *Discovery) Details(ctx context.Context, serial models.DeviceID) models.DeviceDetails {
	details := models.DeviceDetails{Serial: serial, Connection: models.ConnectionUnknown}

	batteryRaw, screenRaw := models.Unknown, models.Unknown

	g, gctx := errgroup.WithContext(ctx)

	shell := func(dst *string, command string) func() error {
		*dst = models.Unknown

		return func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			out, err := d.cmd.Exec(gctx, "-s", serial.String(), "shell", command)
			if err != nil {
				d.logger.Debug().Err(err).Str("device", serial.String()).Str("command", command).Msg("Detail query failed")

				return gctx.Err()
			}

			*dst = strings.TrimSpace(out)

			return nil
		}
	}

	g.Go(shell(&details.Brand, "getprop ro.product.brand"))
	g.Go(shell(&details.Model, "getprop ro.product.model"))
	g.Go(shell(&details.AndroidVersion, "getprop ro.build.version.release"))
	g.Go(shell(&details.APILevel, "getprop ro.build.version.sdk"))
	g.Go(shell(&details.CPUABI, "getprop ro.product.cpu.abi"))
	g.Go(shell(&screenRaw, "wm size"))
	g.Go(shell(&batteryRaw, "dumpsys battery"))
	g.Go(shell(&details.Uptime, "uptime"))
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}

		details.Connection = d.ConnectionState(gctx, serial)

		return nil
	})

	if err := g.Wait(); err != nil {
		d.logger.Debug().Err(err).Str("device", serial.String()).Msg("Detail queries cancelled")
	}

	details.ScreenSize = parseScreenSize(screenRaw)
	details.BatteryLevel, details.BatteryStatus = ParseBattery(batteryRaw)

	return details
}
