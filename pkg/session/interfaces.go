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
	"io"

	"github.com/carverauto/sidecast/pkg/models"
	"github.com/carverauto/sidecast/pkg/registry"
	"github.com/carverauto/sidecast/pkg/settings"
)

// SettingsSource supplies the settings read at every session start.
type SettingsSource interface {
	Snapshot() settings.Settings
}

// Bridge runs one-shot bridge commands. *bridge.Client satisfies it.
type Bridge interface {
	Exec(ctx context.Context, args ...string) (string, error)
}

// DeviceValidator rejects targets that discovery has not seen.
// *discovery.Watcher satisfies it.
type DeviceValidator interface {
	Known(id models.DeviceID) bool
}

// Launcher starts the external processes behind sessions.
type Launcher interface {
	// Detached starts a process that outlives the orchestrator, with its
	// standard streams discarded.
	Detached(name string, args, env []string) (registry.Process, error)
	// Stream starts a process and returns its stdout. The reader reaches
	// EOF once the process has been reaped.
	Stream(name string, args, env []string) (registry.Process, io.Reader, error)
}
