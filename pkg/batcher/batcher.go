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

// Package batcher turns a bursty line stream into bounded batches delivered
// on a fixed cadence.
//
// Lines are buffered in a drop-oldest ring. Every flush interval the whole
// buffer is handed to the sink as one batch; empty buffers produce no batch.
// When the stream ends the ticker stops and any unflushed lines are dropped.
package batcher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
)

const (
	DefaultFlushInterval = 100 * time.Millisecond
	DefaultMaxLines      = 2000

	initialLineBuffer = 64 * 1024
	maxLineLength     = 1024 * 1024
)

var ErrInvalidInterval = errors.New("flush interval must be positive")

// Sink receives each non-empty batch. Calls are sequential.
type Sink func(lines []string)

// Batcher buffers lines and flushes them to a Sink.
type Batcher struct {
	interval time.Duration
	clock    Clock
	sink     Sink
	logger   logger.Logger

	mu      sync.Mutex
	ring    *Ring
	dropped uint64
	batches uint64
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithFlushInterval sets the flush cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(b *Batcher) { b.interval = d }
}

// WithMaxLines caps the number of buffered lines between flushes.
func WithMaxLines(n int) Option {
	return func(b *Batcher) { b.ring = NewRing(n) }
}

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(b *Batcher) { b.clock = c }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(b *Batcher) { b.logger = logger.OrNop(log) }
}

// New creates a Batcher that delivers to sink.
func New(sink Sink, opts ...Option) *Batcher {
	b := &Batcher{
		interval: DefaultFlushInterval,
		clock:    realClock{},
		sink:     sink,
		logger:   logger.Nop(),
		ring:     NewRing(DefaultMaxLines),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Push buffers one line, discarding the oldest line if the buffer is full.
func (b *Batcher) Push(line string) {
	b.mu.Lock()
	if b.ring.Push(line) {
		b.dropped++
	}
	b.mu.Unlock()
}

// Flush delivers the buffered lines as one batch. It returns false, without
// calling the sink, when nothing is buffered.
func (b *Batcher) Flush() bool {
	b.mu.Lock()
	batch := b.ring.Drain()
	if batch != nil {
		b.batches++
	}
	b.mu.Unlock()

	if batch == nil {
		return false
	}

	if b.sink != nil {
		b.sink(batch)
	}

	return true
}

// Len returns the number of buffered lines.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.ring.Len()
}

// Stats returns the number of lines discarded on overflow and batches
// delivered so far.
func (b *Batcher) Stats() (dropped, batches uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped, b.batches
}

// Run reads lines from r until EOF, a read error, or ctx cancellation while
// flushing on every tick. Lines longer than 1 MiB are truncated. When it returns no further batches are delivered and
// any unflushed lines have been discarded. EOF is not an error.
func (b *Batcher) Run(ctx context.Context, r io.Reader) error {
	if b.interval <= 0 {
		return ErrInvalidInterval
	}

	ticker := b.clock.Ticker(b.interval)
	stop := make(chan struct{})
	flusherDone := make(chan struct{})

	go func() {
		defer close(flusherDone)

		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				b.Flush()
			}
		}
	}()

	err := b.consume(ctx, r)

	close(stop)
	ticker.Stop()
	<-flusherDone

	b.mu.Lock()
	b.ring.Reset()
	dropped := b.dropped
	b.mu.Unlock()

	if dropped > 0 {
		b.logger.Debug().Uint64("dropped_lines", dropped).Msg("Line stream overflowed between flushes")
	}

	return err
}

func (b *Batcher) consume(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReaderSize(r, initialLineBuffer)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, ok, err := readLine(reader, maxLineLength)
		if ok {
			b.Push(line)
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
			return ctx.Err()
		default:
			return fmt.Errorf("read line stream: %w", err)
		}
	}
}

// readLine returns the next line without its terminator. Bytes past limit
// are read and discarded so an oversized line never stalls the stream. ok is
// false when nothing was read before err.
func readLine(r *bufio.Reader, limit int) (string, bool, error) {
	var (
		buf []byte
		ok  bool
	)

	for {
		chunk, readErr := r.ReadSlice('\n')
		ok = ok || len(chunk) > 0

		if room := limit - len(buf); room > 0 {
			buf = append(buf, chunk[:min(room, len(chunk))]...)
		}

		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}

		buf = bytes.TrimSuffix(buf, []byte("\n"))
		buf = bytes.TrimSuffix(buf, []byte("\r"))

		return string(buf), ok, readErr
	}
}
