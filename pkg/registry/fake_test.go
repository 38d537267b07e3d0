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
	"sync"
	"sync/atomic"

	"github.com/carverauto/sidecast/pkg/models"
)

var nextFakePID atomic.Int32

// fakeProcess exits when Exit is called, or with SIGTERM when Terminate is.
type fakeProcess struct {
	pid        int
	exit       chan models.ExitStatus
	once       sync.Once
	terminated atomic.Int32
	// ignoreTerm keeps the process alive after Terminate.
	ignoreTerm bool
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		pid:  int(nextFakePID.Add(1)) + 1000,
		exit: make(chan models.ExitStatus, 1),
	}
}

func (f *fakeProcess) Pid() int { return f.pid }

func (f *fakeProcess) Terminate() error {
	f.terminated.Add(1)

	if !f.ignoreTerm {
		f.Exit(models.ExitStatus{Code: -1, Signal: "SIGTERM"})
	}

	return nil
}

func (f *fakeProcess) Exit(status models.ExitStatus) {
	f.once.Do(func() { f.exit <- status })
}

func (f *fakeProcess) Wait() models.ExitStatus {
	return <-f.exit
}
