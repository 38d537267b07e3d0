//go:build !windows

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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carverauto/sidecast/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeADB = `#!/bin/sh
case "$1" in
devices)
	echo "List of devices attached"
	echo "emulator-5554          device product:sdk_gphone64 model:Pixel_7 device:emu64a transport_id:1"
	echo "10.0.0.9:5555          offline"
	;;
connect)
	echo "connected to $2"
	;;
start-server)
	echo "* daemon started successfully"
	;;
kill-server)
	;;
-s)
	shift 2
	if [ "$1" = "pull" ]; then
		echo "png" > "$3"
	fi
	;;
esac
`

// fakeSetup installs the fake adb and points a fresh settings file at it.
func fakeSetup(t *testing.T) (settingsPath, screenshots string) {
	t.Helper()

	dir := t.TempDir()
	adb := filepath.Join(dir, "adb")
	require.NoError(t, os.WriteFile(adb, []byte(fakeADB), 0o755))

	settingsPath = settingsFile(t)
	screenshots = filepath.Join(dir, "shots")

	_, err := run(t, settingsPath, "settings", "set", "adbPath", adb)
	require.NoError(t, err)

	_, err = run(t, settingsPath, "settings", "set", "screenShotPath", screenshots)
	require.NoError(t, err)

	return settingsPath, screenshots
}

func TestDevicesCommand(t *testing.T) {
	path, _ := fakeSetup(t)

	out, err := run(t, path, "devices")
	require.NoError(t, err)
	assert.Contains(t, out, "emulator-5554")
	assert.Contains(t, out, "Pixel_7")
	assert.Contains(t, out, "tcpip")

	out, err = run(t, path, "devices", "--json")
	require.NoError(t, err)

	var devices []models.DeviceSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &devices))
	require.Len(t, devices, 2)
	assert.Equal(t, models.DeviceID("emulator-5554"), devices[0].Serial)
	assert.Equal(t, models.TransportUSB, devices[0].Transport)
}

func TestStateCommand(t *testing.T) {
	path, _ := fakeSetup(t)

	out, err := run(t, path, "state", "emulator-5554")
	require.NoError(t, err)
	assert.Equal(t, string(models.ConnectionOnline)+"\n", out)

	out, err = run(t, path, "state", "10.0.0.9:5555")
	require.NoError(t, err)
	assert.Equal(t, string(models.ConnectionOffline)+"\n", out)

	out, err = run(t, path, "state", "missing")
	require.NoError(t, err)
	assert.Equal(t, string(models.ConnectionNotFound)+"\n", out)
}

func TestServerAndConnectCommands(t *testing.T) {
	path, _ := fakeSetup(t)

	out, err := run(t, path, "server", "status")
	require.NoError(t, err)
	assert.Equal(t, "running\n", out)

	out, err = run(t, path, "server", "start")
	require.NoError(t, err)
	assert.Contains(t, out, "daemon started")

	out, err = run(t, path, "connect", "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, "connected to 10.0.0.9:5555\n", out)
}

func TestScreenshotCommand(t *testing.T) {
	path, screenshots := fakeSetup(t)

	out, err := run(t, path, "screenshot", "emulator-5554")
	require.NoError(t, err)

	saved := strings.TrimSpace(out)
	assert.Equal(t, screenshots, filepath.Dir(saved))
	assert.FileExists(t, saved)
}

func TestSessionCommandsRejectUnknownDevice(t *testing.T) {
	path, _ := fakeSetup(t)

	_, err := run(t, path, "screenshot", "not-attached")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-attached")

	_, err = run(t, path, "mirror", "not-attached")
	require.Error(t, err)
}
