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
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/sidecast/pkg/bridge"
	"github.com/carverauto/sidecast/pkg/models"
	"github.com/carverauto/sidecast/pkg/settings"
)

// MirrorOptions are per-call additions to the configured mirror invocation.
type MirrorOptions struct {
	// ExtraArgs are appended after the configured custom arguments.
	ExtraArgs []string
}

// MirrorArgs builds the mirror command line for device from s.
func MirrorArgs(device models.DeviceID, s settings.Settings, extra []string) []string {
	args := []string{"-s", device.String()}

	return append(args, configuredArgs(s, extra)...)
}

// RecordingArgs builds the recording command line: the mirror invocation
// plus the output path.
func RecordingArgs(device models.DeviceID, s settings.Settings, output string) []string {
	args := []string{"-s", device.String(), "--record", output}

	return append(args, configuredArgs(s, nil)...)
}

func configuredArgs(s settings.Settings, extra []string) []string {
	var args []string

	if b := strings.TrimSpace(s.Bitrate); b != "" {
		args = append(args, "-b", b)
	}

	if s.MaxRes > 0 {
		args = append(args, "-m", strconv.Itoa(s.MaxRes))
	}

	if s.MaxFPS > 0 {
		args = append(args, "--max-fps", strconv.Itoa(s.MaxFPS))
	}

	if s.Fullscreen {
		args = append(args, "-f")
	}

	if s.ShowTouches {
		args = append(args, "-t")
	}

	if s.AudioForwarding {
		args = append(args, "--audio", "--audio-codec", "aac")
	} else {
		args = append(args, "--no-audio")
	}

	args = append(args, s.CustomArgs()...)

	return append(args, extra...)
}

// mirrorEnv points the mirror tool at the configured bridge executable.
func mirrorEnv(s settings.Settings) []string {
	env := bridge.Environ()

	if p := strings.TrimSpace(s.ADBPath); p != "" {
		env = append(env, "ADB="+p)
	}

	return env
}

const fileTimestamp = "2006-01-02T15:04:05.000Z"

// RecordingFilename is "screen-record-<device>-<UTC timestamp>.mkv".
func RecordingFilename(device models.DeviceID, at time.Time) string {
	return "screen-record-" + fileStem(device, at) + ".mkv"
}

// ScreenshotFilename is "screenshot-<device>-<UTC timestamp>.png".
func ScreenshotFilename(device models.DeviceID, at time.Time) string {
	return "screenshot-" + fileStem(device, at) + ".png"
}

func fileStem(device models.DeviceID, at time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(at.UTC().Format(fileTimestamp))

	return safeName(device.String()) + "-" + ts
}

// safeName replaces characters that are not portable in file names, such as
// the colon in network serials.
func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', '*', '?', '"', '<', '>', '|':
			return '_'
		}

		if r < 0x20 {
			return '_'
		}

		return r
	}, s)
}
