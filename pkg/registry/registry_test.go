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
	"context"
	"errors"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mirrorKey = Key{Device: "ABC123", Kind: models.SessionMirror}

func spawnOf(p Process) SpawnFunc {
	return func() (Process, error) { return p, nil }
}

func waitDone(t *testing.T, h *Handle) models.ExitStatus {
	t.Helper()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("process did not finish")
	}

	status, ok := h.Status()
	require.True(t, ok)

	return status
}

func TestStartRegistersProcess(t *testing.T) {
	r := New(logger.NewTestLogger())
	proc := newFakeProcess()

	h, err := r.Start(mirrorKey, spawnOf(proc), WithMetadata("output", "/tmp/x.mkv"))
	require.NoError(t, err)

	assert.True(t, r.IsActive(mirrorKey))
	assert.Equal(t, []Key{mirrorKey}, r.List())
	assert.Equal(t, proc.pid, h.PID())
	assert.Equal(t, "/tmp/x.mkv", h.Metadata("output"))
	assert.NotEmpty(t, h.ID())
	assert.Equal(t, 1, r.Count(models.SessionMirror))
	assert.Equal(t, 0, r.Count(models.SessionRecording))

	proc.Exit(models.ExitStatus{Code: 0})
	waitDone(t, h)
}

func TestStartRejectsOccupiedKeyWithoutSpawning(t *testing.T) {
	r := New(nil)

	_, err := r.Start(mirrorKey, spawnOf(newFakeProcess()))
	require.NoError(t, err)

	called := false
	_, err = r.Start(mirrorKey, func() (Process, error) {
		called = true
		return newFakeProcess(), nil
	})

	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.False(t, called)
}

func TestDifferentKindsForSameDeviceCoexist(t *testing.T) {
	r := New(nil)

	_, err := r.Start(mirrorKey, spawnOf(newFakeProcess()))
	require.NoError(t, err)

	_, err = r.Start(Key{Device: mirrorKey.Device, Kind: models.SessionLogStream}, spawnOf(newFakeProcess()))
	require.NoError(t, err)

	assert.Len(t, r.List(), 2)
}

func TestConcurrentStartsYieldExactlyOneSuccess(t *testing.T) {
	r := New(nil)

	const n = 64

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		rejected  atomic.Int32
		spawned   atomic.Int32
		start     = make(chan struct{})
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start

			_, err := r.Start(mirrorKey, func() (Process, error) {
				spawned.Add(1)
				time.Sleep(time.Millisecond)

				return newFakeProcess(), nil
			})

			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyRunning):
				rejected.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(n-1), rejected.Load())
	assert.Equal(t, int32(1), spawned.Load())
}

func TestSpawnFailureLeavesNoResidue(t *testing.T) {
	r := New(nil)

	_, err := r.Start(mirrorKey, func() (Process, error) {
		return nil, exec.ErrNotFound
	})

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.ErrorIs(t, err, ErrSpawn)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Equal(t, mirrorKey, spawnErr.Key)
	assert.False(t, r.IsActive(mirrorKey))
	assert.Empty(t, r.List())

	_, err = r.Start(mirrorKey, spawnOf(newFakeProcess()))
	assert.NoError(t, err)
}

func TestSpawnReturningNilProcessIsAFailure(t *testing.T) {
	r := New(nil)

	_, err := r.Start(mirrorKey, func() (Process, error) { return nil, nil })

	assert.ErrorIs(t, err, ErrNilProcess)
	assert.False(t, r.IsActive(mirrorKey))
}

func TestStopFreesKeyImmediately(t *testing.T) {
	r := New(nil)
	proc := newFakeProcess()
	proc.ignoreTerm = true

	first, err := r.Start(mirrorKey, spawnOf(proc))
	require.NoError(t, err)

	assert.True(t, r.Stop(mirrorKey))
	assert.False(t, r.IsActive(mirrorKey))
	assert.Equal(t, int32(1), proc.terminated.Load())
	assert.True(t, first.StopRequested())

	second, err := r.Start(mirrorKey, spawnOf(newFakeProcess()))
	require.NoError(t, err)

	// The old process exiting late must not evict the new entry.
	proc.Exit(models.ExitStatus{Code: -1, Signal: "SIGTERM"})
	status := waitDone(t, first)

	assert.True(t, status.Manual)

	got, ok := r.Get(mirrorKey)
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestStopUnknownKey(t *testing.T) {
	r := New(nil)

	assert.False(t, r.Stop(mirrorKey))
}

func TestExitClassification(t *testing.T) {
	t.Run("manual after stop", func(t *testing.T) {
		r := New(nil)

		got := make(chan models.ExitStatus, 1)
		h, err := r.Start(mirrorKey, spawnOf(newFakeProcess()), WithExitHandler(func(_ *Handle, s models.ExitStatus) {
			got <- s
		}))
		require.NoError(t, err)

		r.Stop(mirrorKey)
		waitDone(t, h)

		status := <-got
		assert.True(t, status.Manual)
		assert.Equal(t, "SIGTERM", status.Signal)
	})

	t.Run("abnormal when process exits on its own", func(t *testing.T) {
		r := New(nil)
		proc := newFakeProcess()

		got := make(chan models.ExitStatus, 1)
		h, err := r.Start(mirrorKey, spawnOf(proc), WithExitHandler(func(_ *Handle, s models.ExitStatus) {
			got <- s
		}))
		require.NoError(t, err)

		// An external SIGTERM is still abnormal: we did not send it.
		proc.Exit(models.ExitStatus{Code: -1, Signal: "SIGTERM"})
		waitDone(t, h)

		status := <-got
		assert.False(t, status.Manual)
		assert.False(t, r.IsActive(mirrorKey))
	})
}

func TestOnExitFiresOnce(t *testing.T) {
	r := New(nil)
	proc := newFakeProcess()

	h, err := r.Start(mirrorKey, spawnOf(proc))
	require.NoError(t, err)

	var calls atomic.Int32
	require.True(t, r.OnExit(mirrorKey, func(*Handle, models.ExitStatus) { calls.Add(1) }))

	proc.Exit(models.ExitStatus{Code: 3})
	status := waitDone(t, h)

	assert.Equal(t, 3, status.Code)
	assert.Equal(t, int32(1), calls.Load())

	// Registered after exit: runs immediately, once.
	h.OnExit(func(*Handle, models.ExitStatus) { calls.Add(1) })
	assert.Equal(t, int32(2), calls.Load())

	assert.False(t, r.OnExit(mirrorKey, func(*Handle, models.ExitStatus) {}))
}

func TestExitHandlerCanRestartKey(t *testing.T) {
	r := New(nil)
	proc := newFakeProcess()

	restarted := make(chan error, 1)
	h, err := r.Start(mirrorKey, spawnOf(proc), WithExitHandler(func(old *Handle, _ models.ExitStatus) {
		_, err := r.Start(old.Key(), spawnOf(newFakeProcess()))
		restarted <- err
	}))
	require.NoError(t, err)

	proc.Exit(models.ExitStatus{Code: 1})
	waitDone(t, h)

	assert.NoError(t, <-restarted)
	assert.True(t, r.IsActive(mirrorKey))
}

func TestStopKind(t *testing.T) {
	r := New(nil)

	for _, device := range []models.DeviceID{"a", "b"} {
		_, err := r.Start(Key{Device: device, Kind: models.SessionLogStream}, spawnOf(newFakeProcess()))
		require.NoError(t, err)
	}

	_, err := r.Start(mirrorKey, spawnOf(newFakeProcess()))
	require.NoError(t, err)

	stopped := r.StopKind(models.SessionLogStream)

	assert.Equal(t, []Key{
		{Device: "a", Kind: models.SessionLogStream},
		{Device: "b", Kind: models.SessionLogStream},
	}, stopped)
	assert.Equal(t, []Key{mirrorKey}, r.List())
}

func TestLingeringReportsSignalledSurvivors(t *testing.T) {
	r := New(nil)
	stubborn := newFakeProcess()
	stubborn.ignoreTerm = true

	h, err := r.Start(mirrorKey, spawnOf(stubborn))
	require.NoError(t, err)

	r.Stop(mirrorKey)

	alive := func(_ context.Context, pid int32) (bool, string) {
		return int(pid) == stubborn.pid, "scrcpy"
	}

	lingering := r.lingering(context.Background(), alive)
	require.Len(t, lingering, 1)
	assert.Equal(t, stubborn.pid, lingering[0].PID)
	assert.Equal(t, "scrcpy", lingering[0].Name)
	assert.Equal(t, mirrorKey, lingering[0].Key)

	stubborn.Exit(models.ExitStatus{Code: 0})
	waitDone(t, h)

	assert.Empty(t, r.lingering(context.Background(), alive))
}

func TestStopHandleReturnsRemovedHandleAfterRestart(t *testing.T) {
	r := New(nil)
	proc := newFakeProcess()
	proc.ignoreTerm = true

	first, err := r.Start(mirrorKey, spawnOf(proc))
	require.NoError(t, err)

	stopped, ok := r.StopHandle(mirrorKey)
	require.True(t, ok)
	assert.Same(t, first, stopped)

	second, err := r.Start(mirrorKey, spawnOf(newFakeProcess()))
	require.NoError(t, err)

	// Waiting on the stopped handle tracks the old process only.
	proc.Exit(models.ExitStatus{Code: 0})
	assert.True(t, waitDone(t, stopped).Manual)

	select {
	case <-second.Done():
		t.Fatal("replacement process reported done")
	default:
	}

	_, ok = r.StopHandle(Key{Device: "missing", Kind: models.SessionMirror})
	assert.False(t, ok)
}
