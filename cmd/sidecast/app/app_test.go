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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/carverauto/sidecast/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command tree against a private settings file.
func run(t *testing.T, settingsPath string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := NewRootCommand()
	root.SetArgs(append([]string{"--settings", settingsPath}, args...))
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func settingsFile(t *testing.T) string {
	t.Helper()

	t.Setenv("CONFIG_SOURCE", "")

	return filepath.Join(t.TempDir(), settings.FileName)
}

func TestSettingsSetThenGet(t *testing.T) {
	path := settingsFile(t)

	_, err := run(t, path, "settings", "set", "maxFPS", "30")
	require.NoError(t, err)

	_, err = run(t, path, "settings", "set", "showTouches", "true")
	require.NoError(t, err)

	out, err := run(t, path, "settings", "get", "maxFPS")
	require.NoError(t, err)
	assert.Equal(t, "30\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var persisted settings.Settings
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, 30, persisted.MaxFPS)
	assert.True(t, persisted.ShowTouches)
}

func TestSettingsList(t *testing.T) {
	path := settingsFile(t)

	out, err := run(t, path, "settings", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "bitrate")
	assert.Contains(t, out, "8M")

	out, err = run(t, path, "settings", "list", "--json")
	require.NoError(t, err)

	var got settings.Settings
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, settings.DefaultBitrate, got.Bitrate)
}

func TestSettingsReset(t *testing.T) {
	path := settingsFile(t)

	_, err := run(t, path, "settings", "set", "bitrate", "2M")
	require.NoError(t, err)

	_, err = run(t, path, "settings", "reset")
	require.NoError(t, err)

	out, err := run(t, path, "settings", "get", "bitrate")
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultBitrate+"\n", out)
}

func TestSettingsRejectsUnknownKeyAndBadValue(t *testing.T) {
	path := settingsFile(t)

	_, err := run(t, path, "settings", "get", "volume")
	require.ErrorIs(t, err, settings.ErrUnknownKey)

	_, err = run(t, path, "settings", "set", "maxRes", "large")
	require.ErrorIs(t, err, settings.ErrInvalidValue)
}

func TestSettingsPath(t *testing.T) {
	path := settingsFile(t)

	out, err := run(t, path, "settings", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestParentCommandRequiresSubcommand(t *testing.T) {
	path := settingsFile(t)

	_, err := run(t, path, "server")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a subcommand")

	_, err = run(t, path, "settings", "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestNewRuntimeUsesConfigFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "custom.json")
	cfgPath := filepath.Join(dir, "sidecast.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("settings_path = \""+settingsPath+"\"\npoll_interval = \"3s\"\n"), 0o600))

	rt, err := NewRuntime(context.Background(), Options{ConfigPath: cfgPath})
	require.NoError(t, err)

	assert.Equal(t, settingsPath, rt.Settings.Path())
	assert.False(t, rt.Config.NATSEnabled())
	assert.NotNil(t, rt.Config.Logging)
}

func TestUniqueDevices(t *testing.T) {
	got := uniqueDevices([]string{"a", "b", "a"})
	assert.Len(t, got, 2)
	assert.EqualValues(t, "a", got[0])
	assert.EqualValues(t, "b", got[1])
}

func TestVersionFlag(t *testing.T) {
	out, err := run(t, settingsFile(t), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev (build: dev)")
}
