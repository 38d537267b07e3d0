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
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/carverauto/sidecast/pkg/models"
	"github.com/carverauto/sidecast/pkg/registry"
	"github.com/stretchr/testify/require"
)

var nextPID atomic.Int32

type fakeProc struct {
	pid        int
	exit       chan models.ExitStatus
	once       sync.Once
	out        *io.PipeWriter
	ignoreTerm bool
	terminated atomic.Int32
}

func newFakeProc(out *io.PipeWriter, ignoreTerm bool) *fakeProc {
	return &fakeProc{
		pid:        int(nextPID.Add(1)) + 40000,
		exit:       make(chan models.ExitStatus, 1),
		out:        out,
		ignoreTerm: ignoreTerm,
	}
}

func (p *fakeProc) Pid() int { return p.pid }

func (p *fakeProc) Terminate() error {
	p.terminated.Add(1)

	if !p.ignoreTerm {
		p.Exit(models.ExitStatus{Code: -1, Signal: "SIGTERM"})
	}

	return nil
}

// Exit ends the process as if the OS reaped it; the output pipe closes first.
func (p *fakeProc) Exit(status models.ExitStatus) {
	p.once.Do(func() {
		if p.out != nil {
			_ = p.out.Close()
		}

		p.exit <- status
	})
}

func (p *fakeProc) Wait() models.ExitStatus { return <-p.exit }

type launch struct {
	name string
	args []string
	env  []string
	proc *fakeProc
}

type fakeLauncher struct {
	mu         sync.Mutex
	launches   []launch
	err        error
	ignoreTerm bool
}

func (l *fakeLauncher) record(name string, args, env []string, proc *fakeProc) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches = append(l.launches, launch{name: name, args: args, env: env, proc: proc})
}

func (l *fakeLauncher) Detached(name string, args, env []string) (registry.Process, error) {
	if l.err != nil {
		return nil, l.err
	}

	proc := newFakeProc(nil, l.ignoreTerm)
	l.record(name, args, env, proc)

	return proc, nil
}

func (l *fakeLauncher) Stream(name string, args, env []string) (registry.Process, io.Reader, error) {
	if l.err != nil {
		return nil, nil, l.err
	}

	pr, pw := io.Pipe()
	proc := newFakeProc(pw, l.ignoreTerm)
	l.record(name, args, env, proc)

	return proc, pr, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.launches)
}

func (l *fakeLauncher) last(t *testing.T) launch {
	t.Helper()

	l.mu.Lock()
	defer l.mu.Unlock()

	require.NotEmpty(t, l.launches)

	return l.launches[len(l.launches)-1]
}

type fakeBridge struct {
	mu     sync.Mutex
	calls  [][]string
	failOn string
}

func (b *fakeBridge) Exec(_ context.Context, args ...string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, args)

	if b.failOn != "" && slices.Contains(args, b.failOn) {
		return "", errors.New("device offline")
	}

	return "", nil
}

func (b *fakeBridge) recorded() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([][]string(nil), b.calls...)
}

type knownDevices map[models.DeviceID]bool

func (k knownDevices) Known(id models.DeviceID) bool { return k[id] }
