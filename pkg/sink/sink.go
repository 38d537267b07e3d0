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

// Package sink delivers session notifications to their consumers: log
// batches, log stream ends and session ends.
package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/models"
)

// Sink receives notifications. Implementations must not block for long;
// they run on the goroutines that observe the processes.
type Sink interface {
	LogBatch(device models.DeviceID, lines []string)
	LogEnded(device models.DeviceID, manual bool)
	SessionEnded(end models.SessionEnd)
}

// LogSink records notifications as structured log events.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: logger.OrNop(log)}
}

func (s *LogSink) LogBatch(device models.DeviceID, lines []string) {
	s.logger.Debug().Str("device", device.String()).Int("lines", len(lines)).Msg("Log batch")
}

func (s *LogSink) LogEnded(device models.DeviceID, manual bool) {
	event := s.logger.Info()
	if !manual {
		event = s.logger.Warn()
	}

	event.Str("device", device.String()).Bool("manual", manual).Msg("Log stream ended")
}

func (s *LogSink) SessionEnded(end models.SessionEnd) {
	event := s.logger.Info()
	if !end.Status.Manual {
		event = s.logger.Warn()
	}

	event.
		Str("device", end.Device.String()).
		Str("kind", end.Kind.String()).
		Str("session_id", end.SessionID).
		Int("exit_code", end.Status.Code).
		Str("signal", end.Status.Signal).
		Bool("manual", end.Status.Manual).
		Dur("duration", end.EndedAt.Sub(end.StartedAt)).
		Msg("Session ended")
}

// WriterSink prints log lines verbatim, one per line. End notifications are
// ignored.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	prefix bool
}

// NewWriterSink creates a WriterSink. With prefix set every line starts with
// "[device] ".
func NewWriterSink(w io.Writer, prefix bool) *WriterSink {
	return &WriterSink{w: w, prefix: prefix}
}

func (s *WriterSink) LogBatch(device models.DeviceID, lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range lines {
		if s.prefix {
			_, _ = fmt.Fprintf(s.w, "[%s] %s\n", device, line)
		} else {
			_, _ = fmt.Fprintln(s.w, line)
		}
	}
}

func (*WriterSink) LogEnded(models.DeviceID, bool) {}

func (*WriterSink) SessionEnded(models.SessionEnd) {}

// Multi fans every notification out to each sink in order.
type Multi []Sink

func (m Multi) LogBatch(device models.DeviceID, lines []string) {
	for _, s := range m {
		s.LogBatch(device, lines)
	}
}

func (m Multi) LogEnded(device models.DeviceID, manual bool) {
	for _, s := range m {
		s.LogEnded(device, manual)
	}
}

func (m Multi) SessionEnded(end models.SessionEnd) {
	for _, s := range m {
		s.SessionEnded(end)
	}
}
