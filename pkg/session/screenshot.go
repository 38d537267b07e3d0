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
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carverauto/sidecast/pkg/models"
)

const deviceScratchDir = "/sdcard/"

// Screenshot locates a captured screenshot on the host.
type Screenshot struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// TakeScreenshot captures the screen to device storage, pulls the image into
// the configured screenshot directory and removes it from the device. The
// first failing step aborts the operation; nothing is cleaned up beyond what
// the commands themselves do.
func (m *Manager) TakeScreenshot(ctx context.Context, device models.DeviceID) (Screenshot, error) {
	if err := m.validate(device); err != nil {
		return Screenshot{}, err
	}

	snap := m.settings.Snapshot()
	shot := Screenshot{Filename: ScreenshotFilename(device, m.now())}
	remote := deviceScratchDir + shot.Filename
	serial := device.String()

	if _, err := m.bridge.Exec(ctx, "-s", serial, "shell", "screencap", remote); err != nil {
		return Screenshot{}, fmt.Errorf("%w: capture: %w", errScreenshotFailed, err)
	}

	if err := os.MkdirAll(snap.ScreenshotPath, 0o755); err != nil {
		return Screenshot{}, fmt.Errorf("%w: create directory: %w", errScreenshotFailed, err)
	}

	shot.Path = filepath.Join(snap.ScreenshotPath, shot.Filename)

	if _, err := m.bridge.Exec(ctx, "-s", serial, "pull", remote, shot.Path); err != nil {
		return Screenshot{}, fmt.Errorf("%w: transfer: %w", errScreenshotFailed, err)
	}

	if _, err := m.bridge.Exec(ctx, "-s", serial, "shell", "rm", remote); err != nil {
		return Screenshot{}, fmt.Errorf("%w: remove from device: %w", errScreenshotFailed, err)
	}

	m.logger.Info().Str("device", serial).Str("path", shot.Path).Msg("Screenshot saved")

	return shot, nil
}
