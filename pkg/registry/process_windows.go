//go:build windows

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

package registry

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/carverauto/sidecast/pkg/models"
	"golang.org/x/sys/windows"
)

// Windows has no SIGTERM; Kill is the only portable termination request.
func terminate(p *os.Process) error {
	return p.Kill()
}

func detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}

	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS
}

func exitStatus(state *os.ProcessState) models.ExitStatus {
	if state == nil {
		return models.ExitStatus{Code: -1}
	}

	return models.ExitStatus{Code: state.ExitCode()}
}
