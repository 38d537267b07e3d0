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

package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestRunCallsShutdownAfterRunReturns(t *testing.T) {
	shutdownCalled := false

	err := Run(context.Background(), &RunOptions{
		ServiceName: "test",
		Logger:      logger.NewTestLogger(),
		Service: ServiceFunc{
			RunFunc: func(context.Context) error { return nil },
			ShutdownFunc: func(ctx context.Context) error {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)

				shutdownCalled = true

				return nil
			},
		},
	})

	require.NoError(t, err)
	assert.True(t, shutdownCalled)
}

func TestRunShutdownStillRunsWhenParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	shutdownCalled := false

	err := Run(ctx, &RunOptions{
		ServiceName:     "test",
		ShutdownTimeout: time.Second,
		Service: ServiceFunc{
			RunFunc: func(ctx context.Context) error {
				cancel()
				<-ctx.Done()

				return ctx.Err()
			},
			ShutdownFunc: func(ctx context.Context) error {
				assert.NoError(t, ctx.Err())

				shutdownCalled = true

				return nil
			},
		},
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, shutdownCalled)
}

func TestRunJoinsShutdownError(t *testing.T) {
	err := Run(context.Background(), &RunOptions{
		Service: ServiceFunc{
			RunFunc:      func(context.Context) error { return nil },
			ShutdownFunc: func(context.Context) error { return errBoom },
		},
	})

	assert.ErrorIs(t, err, errBoom)
}

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger("registry", &logger.Config{Level: "debug", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = CreateComponentLogger("registry", &logger.Config{Level: "nope"})
	assert.Error(t, err)
}
