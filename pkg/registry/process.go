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
	"errors"
	"io"
	"os/exec"
	"time"

	"github.com/carverauto/sidecast/pkg/models"
)

// Process is an OS process exclusively owned by a Handle.
type Process interface {
	Pid() int
	// Terminate sends the termination signal. It does not wait.
	Terminate() error
	// Wait blocks until the process exits. It is called exactly once.
	Wait() models.ExitStatus
}

// waitDelay bounds how long Wait keeps copying output after the process has
// exited, in case a grandchild inherited the pipe.
const waitDelay = 2 * time.Second

// Command adapts an exec.Cmd to Process.
type Command struct {
	cmd            *exec.Cmd
	closeAfterWait []io.Closer
}

// StartCommand starts cmd and returns it as a Process. The closers are closed
// after the process has been reaped, which is how a pipe writer attached to
// cmd.Stdout signals end of stream to its reader.
func StartCommand(cmd *exec.Cmd, closeAfterWait ...io.Closer) (*Command, error) {
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = waitDelay
	}

	if err := cmd.Start(); err != nil {
		for _, c := range closeAfterWait {
			_ = c.Close()
		}

		return nil, err
	}

	return &Command{cmd: cmd, closeAfterWait: closeAfterWait}, nil
}

func (c *Command) Pid() int {
	return c.cmd.Process.Pid
}

func (c *Command) Terminate() error {
	return terminate(c.cmd.Process)
}

func (c *Command) Wait() models.ExitStatus {
	err := c.cmd.Wait()

	for _, closer := range c.closeAfterWait {
		_ = closer.Close()
	}

	status := exitStatus(c.cmd.ProcessState)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		status.Err = err.Error()
	}

	return status
}

// Detach configures cmd so the process outlives the orchestrator and does not
// receive terminal signals aimed at it.
func Detach(cmd *exec.Cmd) {
	detach(cmd)
}
