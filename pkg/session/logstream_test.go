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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/carverauto/sidecast/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logRecorder struct {
	mu    sync.Mutex
	lines []string
	ended chan bool
}

func newLogRecorder() *logRecorder {
	return &logRecorder{ended: make(chan bool, 1)}
}

func (r *logRecorder) onBatch(device models.DeviceID, lines []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if device == devD {
		r.lines = append(r.lines, lines...)
	}
}

func (r *logRecorder) onEnd(_ models.DeviceID, manual bool) {
	r.ended <- manual
}

func (r *logRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.lines)
}

func (r *logRecorder) waitEnd(t *testing.T) bool {
	t.Helper()

	select {
	case manual := <-r.ended:
		return manual
	case <-time.After(2 * time.Second):
		t.Fatal("log stream end not reported")

		return false
	}
}

func TestLogStreamDeliversBatches(t *testing.T) {
	h := newHarness(t)
	rec := newLogRecorder()

	require.NoError(t, h.manager.StartLogStream(devD, rec.onBatch, rec.onEnd))

	l := h.launcher.last(t)
	assert.Equal(t, "adb", l.name)
	assert.Equal(t, []string{"-s", "ABC123", "logcat"}, l.args)

	_, err := io.WriteString(l.proc.out, strings.Repeat("I/ActivityManager: hello\n", 50))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() == 50 }, time.Second, 5*time.Millisecond)

	h.manager.StopLogStream(devD)
	assert.True(t, rec.waitEnd(t))
}

func TestLogStreamExternalKillIsAbnormal(t *testing.T) {
	h := newHarness(t)
	rec := newLogRecorder()

	require.NoError(t, h.manager.StartLogStream(devD, rec.onBatch, rec.onEnd))

	h.launcher.last(t).proc.Exit(models.ExitStatus{Code: -1, Signal: "SIGKILL"})

	assert.False(t, rec.waitEnd(t))
	assert.False(t, h.manager.IsStreamingLogs(devD))
}

func TestLogStreamManualStop(t *testing.T) {
	h := newHarness(t)
	rec := newLogRecorder()

	require.NoError(t, h.manager.StartLogStream(devD, rec.onBatch, rec.onEnd))
	require.True(t, h.manager.StopLogStream(devD))

	assert.True(t, rec.waitEnd(t))
	assert.False(t, h.manager.StopLogStream(devD))
}

func TestStartLogStreamIsIdempotent(t *testing.T) {
	h := newHarness(t)
	rec := newLogRecorder()

	require.NoError(t, h.manager.StartLogStream(devD, rec.onBatch, rec.onEnd))
	require.NoError(t, h.manager.StartLogStream(devD, rec.onBatch, rec.onEnd))

	assert.Equal(t, 1, h.launcher.count())

	h.manager.StopLogStream(devD)
	rec.waitEnd(t)
}

func TestConcurrentLogStreamSubscribersSpawnOnce(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			assert.NoError(t, h.manager.StartLogStream(devD, nil, nil))
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, h.launcher.count())
	assert.Equal(t, []models.DeviceID{devD}, h.manager.StopAllLogStreams())
}

func TestStopAllLogStreams(t *testing.T) {
	h := newHarness(t)

	ends := make(chan models.DeviceID, 2)
	onEnd := func(device models.DeviceID, manual bool) {
		assert.True(t, manual)
		ends <- device
	}

	require.NoError(t, h.manager.StartLogStream("A", nil, onEnd))
	require.NoError(t, h.manager.StartLogStream("B", nil, onEnd))
	require.NoError(t, h.manager.StartMirror("A", MirrorOptions{}))

	assert.Equal(t, []models.DeviceID{"A", "B"}, h.manager.StopAllLogStreams())

	got := []models.DeviceID{<-ends, <-ends}
	assert.ElementsMatch(t, []models.DeviceID{"A", "B"}, got)
	assert.True(t, h.manager.IsMirroring("A"))
}

func TestLogStreamNoBatchAfterEnd(t *testing.T) {
	h := newHarness(t)

	var (
		mu       sync.Mutex
		finished bool
		late     bool
	)

	onBatch := func(models.DeviceID, []string) {
		mu.Lock()
		defer mu.Unlock()

		if finished {
			late = true
		}
	}

	done := make(chan struct{})
	onEnd := func(models.DeviceID, bool) {
		mu.Lock()
		finished = true
		mu.Unlock()
		close(done)
	}

	require.NoError(t, h.manager.StartLogStream(devD, onBatch, onEnd))

	l := h.launcher.last(t)
	_, err := io.WriteString(l.proc.out, "one\ntwo\n")
	require.NoError(t, err)

	l.proc.Exit(models.ExitStatus{Code: 0})
	<-done

	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, late)
}

func TestLogStreamSurvivesOverlongLine(t *testing.T) {
	h := newHarness(t)
	rec := newLogRecorder()

	require.NoError(t, h.manager.StartLogStream(devD, rec.onBatch, rec.onEnd))

	l := h.launcher.last(t)

	go func() {
		_, _ = io.WriteString(l.proc.out, strings.Repeat("x", 2_000_000)+"\nafter\n")
	}()

	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	assert.Len(t, rec.lines[0], 1<<20)
	assert.Equal(t, "after", rec.lines[1])
	rec.mu.Unlock()

	require.True(t, h.manager.StopLogStream(devD))
	assert.True(t, rec.waitEnd(t))
}
