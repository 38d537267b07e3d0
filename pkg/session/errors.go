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
	"errors"
	"fmt"

	"github.com/carverauto/sidecast/pkg/registry"
)

var (
	// ErrAlreadyActive wraps registry.ErrAlreadyRunning.
	ErrAlreadyActive    = errors.New("session already active")
	ErrNotActive        = errors.New("session not active")
	ErrUnknownDevice    = errors.New("unknown device")
	ErrTooManySessions  = errors.New("too many concurrent mirror sessions")
	errEmptyDeviceID    = errors.New("device id is required")
	errScreenshotFailed = errors.New("screenshot failed")
)

func startError(err error) error {
	if errors.Is(err, registry.ErrAlreadyRunning) {
		return fmt.Errorf("%w: %w", ErrAlreadyActive, err)
	}

	return err
}
