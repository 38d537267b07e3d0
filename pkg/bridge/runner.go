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

package bridge

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// Result is the captured output of one command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

//go:generate mockgen -destination=mock_bridge.go -package=bridge github.com/carverauto/sidecast/pkg/bridge Runner

// Runner executes a command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args, env []string) (Result, error)
}

// outputGrace bounds how long output copying may outlast a killed process.
const outputGrace = 500 * time.Millisecond

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args, env []string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = outputGrace

	err := cmd.Run()

	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}
