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

package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", FileName)

	s, err := Open(path, logger.NewTestLogger())
	require.NoError(t, err)

	return s, path
}

func TestOpenMissingFileYieldsDefaults(t *testing.T) {
	s, path := openTemp(t)

	assert.Equal(t, Defaults(), s.Snapshot())
	assert.NoFileExists(t, path)
}

func TestDefaults(t *testing.T) {
	d := Defaults()

	assert.Equal(t, "adb", d.BridgePath())
	assert.Equal(t, "scrcpy", d.MirrorPath())
	assert.Equal(t, 5*time.Second, d.CommandTimeout())
	assert.Equal(t, "8M", d.Bitrate)
	assert.Equal(t, 1080, d.MaxRes)
	assert.Equal(t, 60, d.MaxFPS)
	assert.Equal(t, 1, d.MaxConnections)
	assert.Equal(t, "5555", d.TCPIPPortOrDefault())
	assert.Equal(t, "Recordings", filepath.Base(d.RecordingPath))
	assert.Equal(t, "Screenshots", filepath.Base(d.ScreenshotPath))
	assert.Empty(t, d.CustomArgs())
}

func TestSetPersistsAndIsVisibleToOtherStores(t *testing.T) {
	a, path := openTemp(t)

	b, err := Open(path, nil)
	require.NoError(t, err)

	require.NoError(t, a.Set("bitrate", "4M"))
	assert.FileExists(t, path)

	assert.Equal(t, "4M", b.Snapshot().Bitrate)

	require.NoError(t, b.Set("maxFPS", 120))

	snap := a.Snapshot()
	assert.Equal(t, 120, snap.MaxFPS)
	assert.Equal(t, "4M", snap.Bitrate, "concurrent writer's change must survive")
}

func TestSetCoercesStrings(t *testing.T) {
	s := NewMemory(Defaults())

	require.NoError(t, s.Set("maxRes", "720"))
	require.NoError(t, s.Set("showTouches", "true"))
	require.NoError(t, s.Set("adbTimeout", float64(2500)))

	snap := s.Snapshot()
	assert.Equal(t, 720, snap.MaxRes)
	assert.True(t, snap.ShowTouches)
	assert.Equal(t, 2500*time.Millisecond, snap.CommandTimeout())
}

func TestSetRejectsBadInput(t *testing.T) {
	s := NewMemory(Defaults())

	assert.ErrorIs(t, s.Set("noSuchKey", "x"), ErrUnknownKey)
	assert.ErrorIs(t, s.Set("maxRes", "big"), ErrInvalidValue)
	assert.ErrorIs(t, s.Set("maxRes", 1.5), ErrInvalidValue)
	assert.ErrorIs(t, s.Set("bitrate", 8), ErrInvalidValue)
	assert.ErrorIs(t, s.Set("fullscreen", "sometimes"), ErrInvalidValue)

	assert.Equal(t, Defaults(), s.Snapshot())
}

func TestGetAndAll(t *testing.T) {
	s := NewMemory(Defaults())
	require.NoError(t, s.Set("customArguments", "--turn-screen-off  --stay-awake"))

	v, err := s.Get("customArguments")
	require.NoError(t, err)
	assert.Equal(t, "--turn-screen-off  --stay-awake", v)
	assert.Equal(t, []string{"--turn-screen-off", "--stay-awake"}, s.Snapshot().CustomArgs())

	_, err = s.Get("bogus")
	require.ErrorIs(t, err, ErrUnknownKey)

	all := s.All()
	assert.Len(t, all, len(Keys()))
	assert.Equal(t, 1080, all["maxRes"])
	assert.Contains(t, Keys(), "screenShotPath")
}

func TestReset(t *testing.T) {
	s, _ := openTemp(t)

	require.NoError(t, s.Set("maxConnections", 4))
	require.NoError(t, s.Reset())

	assert.Equal(t, Defaults(), s.Snapshot())
}

func TestPartialFileKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"adbPath":"/opt/platform-tools/adb"}`), 0o600))

	s, err := Open(path, nil)
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, "/opt/platform-tools/adb", snap.BridgePath())
	assert.Equal(t, DefaultMaxFPS, snap.MaxFPS)
}

func TestCorruptFileOpensWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	s, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s.Snapshot())
}

func TestResetRepairsCorruptFile(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.Set("maxConnections", 4))

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	require.NoError(t, s.Reset())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, mustJSON(t, Defaults()), string(data))

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), reopened.Snapshot())
}

func TestSetOverwritesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("bitrate", "4M"))

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "4M", reopened.Snapshot().Bitrate)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return string(data)
}

func TestSnapshotKeepsLastGoodSettingsOnCorruption(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.Set("bitrate", "2M"))

	require.NoError(t, os.WriteFile(path, []byte(`{"bitrate": 12, "extra": true}`), 0o600))

	assert.Equal(t, "2M", s.Snapshot().Bitrate)
}
