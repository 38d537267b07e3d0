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
	"io"
	"os/exec"

	"github.com/carverauto/sidecast/pkg/registry"
)

// ExecLauncher launches real OS processes.
type ExecLauncher struct{}

func (ExecLauncher) Detached(name string, args, env []string) (registry.Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = env
	registry.Detach(cmd)

	proc, err := registry.StartCommand(cmd)
	if err != nil {
		return nil, err
	}

	return proc, nil
}

func (ExecLauncher) Stream(name string, args, env []string) (registry.Process, io.Reader, error) {
	pr, pw := io.Pipe()

	cmd := exec.Command(name, args...)
	cmd.Env = env
	cmd.Stdout = pw

	proc, err := registry.StartCommand(cmd, pw)
	if err != nil {
		_ = pr.Close()

		return nil, nil, err
	}

	return proc, pr, nil
}
