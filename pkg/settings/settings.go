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

// Package settings is the flat key-value store behind the user-facing options:
// tool paths, command timeout, mirror flags and save directories.
package settings

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultADBTimeoutMillis = 5000
	DefaultTCPIPPort        = "5555"
	DefaultBitrate          = "8M"
	DefaultMaxRes           = 1080
	DefaultMaxFPS           = 60
	DefaultMaxConnections   = 1

	ConnectionModeUSB   = "usb"
	ConnectionModeTCPIP = "tcpip"

	defaultBridgeBinary = "adb"
	defaultMirrorBinary = "scrcpy"
	mediaDirName        = "Sidecast"
)

// Settings is one snapshot of every known key. The json tags are the key
// names used by Get and Set.
type Settings struct {
	ADBPath        string `json:"adbPath"`
	ScrcpyPath     string `json:"scrcpyPath"`
	ADBTimeout     int    `json:"adbTimeout"`
	ConnectionMode string `json:"connectionMode"`
	TCPIPHost      string `json:"tcpIpHost"`
	TCPIPPort      string `json:"tcpIpPort"`

	Bitrate         string `json:"bitrate"`
	MaxRes          int    `json:"maxRes"`
	MaxFPS          int    `json:"maxFPS"`
	Fullscreen      bool   `json:"fullscreen"`
	ShowTouches     bool   `json:"showTouches"`
	AudioForwarding bool   `json:"audioForwarding"`
	CustomArguments string `json:"customArguments"`

	RecordingPath  string `json:"recordingPath"`
	ScreenshotPath string `json:"screenShotPath"`

	MaxConnections        int    `json:"maxConnections"`
	DebugLogging          bool   `json:"debugLogging"`
	ScriptsPath           string `json:"scriptsPath"`
	DefaultConnectionMode string `json:"defaultConnectionMode"`
}

// Defaults returns the factory settings. Save directories live under the
// user's home directory, falling back to the working directory.
func Defaults() Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return Settings{
		ADBTimeout:            DefaultADBTimeoutMillis,
		ConnectionMode:        ConnectionModeUSB,
		TCPIPPort:             DefaultTCPIPPort,
		Bitrate:               DefaultBitrate,
		MaxRes:                DefaultMaxRes,
		MaxFPS:                DefaultMaxFPS,
		RecordingPath:         filepath.Join(home, mediaDirName, "Recordings"),
		ScreenshotPath:        filepath.Join(home, mediaDirName, "Screenshots"),
		MaxConnections:        DefaultMaxConnections,
		DefaultConnectionMode: ConnectionModeUSB,
	}
}

// BridgePath is the bridge executable, resolved from PATH when unset.
func (s Settings) BridgePath() string {
	if p := strings.TrimSpace(s.ADBPath); p != "" {
		return p
	}

	return defaultBridgeBinary
}

// MirrorPath is the mirror executable, resolved from PATH when unset.
func (s Settings) MirrorPath() string {
	if p := strings.TrimSpace(s.ScrcpyPath); p != "" {
		return p
	}

	return defaultMirrorBinary
}

// CommandTimeout is the per-call bridge deadline.
func (s Settings) CommandTimeout() time.Duration {
	if s.ADBTimeout <= 0 {
		return DefaultADBTimeoutMillis * time.Millisecond
	}

	return time.Duration(s.ADBTimeout) * time.Millisecond
}

// CustomArgs splits the free-form argument string on whitespace.
func (s Settings) CustomArgs() []string {
	return strings.Fields(s.CustomArguments)
}

// TCPIPPortOrDefault returns the configured network port.
func (s Settings) TCPIPPortOrDefault() string {
	if p := strings.TrimSpace(s.TCPIPPort); p != "" {
		return p
	}

	return DefaultTCPIPPort
}
