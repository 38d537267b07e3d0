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

package batcher

// Ring is a fixed-capacity FIFO of lines. Pushing into a full ring overwrites
// the oldest line, so memory stays bounded and the producer never blocks.
type Ring struct {
	buf  []string
	head int
	size int
}

// NewRing returns a ring holding at most capacity lines. Capacity is at least 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring{buf: make([]string, capacity)}
}

// Push appends line and reports whether the oldest line was discarded.
func (r *Ring) Push(line string) bool {
	tail := (r.head + r.size) % len(r.buf)
	r.buf[tail] = line

	if r.size < len(r.buf) {
		r.size++
		return false
	}

	r.head = (r.head + 1) % len(r.buf)

	return true
}

// Drain removes and returns every buffered line, oldest first. It returns nil
// when the ring is empty.
func (r *Ring) Drain() []string {
	if r.size == 0 {
		return nil
	}

	out := make([]string, r.size)
	for i := range out {
		idx := (r.head + i) % len(r.buf)
		out[i] = r.buf[idx]
		r.buf[idx] = ""
	}

	r.head = 0
	r.size = 0

	return out
}

// Reset discards every buffered line.
func (r *Ring) Reset() {
	clear(r.buf)
	r.head = 0
	r.size = 0
}

func (r *Ring) Len() int { return r.size }
func (r *Ring) Cap() int { return len(r.buf) }
