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
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestClient(t *testing.T, store *settings.Store) (*Client, *MockRunner) {
	t.Helper()

	ctrl := gomock.NewController(t)
	runner := NewMockRunner(ctrl)

	return NewClient(store, logger.NewTestLogger(), WithRunner(runner)), runner
}

func TestExecReadsSettingsOnEveryCall(t *testing.T) {
	store := settings.NewMemory(settings.Defaults())
	client, runner := newTestClient(t, store)

	gomock.InOrder(
		runner.EXPECT().
			Run(gomock.Any(), "adb", []string{"devices", "-l"}, gomock.Any()).
			Return(Result{Stdout: []byte("List of devices attached\n")}, nil),
		runner.EXPECT().
			Run(gomock.Any(), "/opt/adb", []string{"version"}, gomock.Any()).
			Return(Result{Stdout: []byte("1.0.41\n")}, nil),
	)

	out, err := client.Exec(context.Background(), "devices", "-l")
	require.NoError(t, err)
	assert.Equal(t, "List of devices attached\n", out)

	require.NoError(t, store.Set("adbPath", "/opt/adb"))

	out, err = client.Exec(context.Background(), "version")
	require.NoError(t, err)
	assert.Equal(t, "1.0.41\n", out)
	assert.Equal(t, "/opt/adb", client.Path())
}

func TestExecAppliesConfiguredTimeout(t *testing.T) {
	s := settings.Defaults()
	s.ADBTimeout = 20

	client, runner := newTestClient(t, settings.NewMemory(s))

	runner.EXPECT().
		Run(gomock.Any(), "adb", gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _, _ []string) (Result, error) {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 20*time.Millisecond)

			<-ctx.Done()

			return Result{}, ctx.Err()
		})

	_, err := client.Exec(context.Background(), "devices")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestExecParentCancellationIsNotATimeout(t *testing.T) {
	client, runner := newTestClient(t, settings.NewMemory(settings.Defaults()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(Result{}, context.Canceled)

	_, err := client.Exec(ctx, "devices")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestExecMissingExecutableIsSpawnError(t *testing.T) {
	client, runner := newTestClient(t, settings.NewMemory(settings.Defaults()))

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Result{}, &exec.Error{Name: "adb", Err: exec.ErrNotFound})

	_, err := client.Exec(context.Background(), "devices")

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "adb", spawnErr.Path)
	assert.ErrorIs(t, err, ErrSpawn)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestExecStripsProxyEnvironment(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://proxy:3128")
	t.Setenv("no_proxy", "localhost")
	t.Setenv("SIDECAST_TEST_MARKER", "1")

	client, runner := newTestClient(t, settings.NewMemory(settings.Defaults()))

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _, env []string) (Result, error) {
			assert.Contains(t, env, "SIDECAST_TEST_MARKER=1")
			assert.NotContains(t, env, "HTTPS_PROXY=http://proxy:3128")
			assert.NotContains(t, env, "no_proxy=localhost")

			return Result{}, nil
		})

	_, err := client.Exec(context.Background(), "devices")
	require.NoError(t, err)
}

func TestCleanEnv(t *testing.T) {
	env := []string{"PATH=/usr/bin", "http_proxy=x", "ALL_PROXY=y", "HTTP_PROXY_EXTRA=kept"}

	assert.Equal(t, []string{"PATH=/usr/bin", "HTTP_PROXY_EXTRA=kept"}, CleanEnv(env))
}

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Args: []string{"adb", "connect", "10.0.0.2:5555"}, ExitCode: 1, Stdout: "failed to connect\n"}

	assert.Equal(t, "adb connect 10.0.0.2:5555: exit status 1: failed to connect", err.Error())
	assert.ErrorIs(t, err, ErrCommandFailed)
}
