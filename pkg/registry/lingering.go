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
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// LingeringProcess is a process that was sent the termination signal but has
// not been reaped yet. Stop does not escalate, so such processes stay in the
// OS process table until they exit on their own.
type LingeringProcess struct {
	Key         Key       `json:"key"`
	PID         int       `json:"pid"`
	Name        string    `json:"name,omitempty"`
	SignalledAt time.Time `json:"signalled_at"`
}

// PIDProber checks whether a PID is still present in the OS process table.
type PIDProber func(ctx context.Context, pid int32) (exists bool, name string)

// Lingering lists stopped processes that the OS still reports as running.
func (r *Registry) Lingering(ctx context.Context) []LingeringProcess {
	return r.lingering(ctx, probePID)
}

func (r *Registry) lingering(ctx context.Context, probe PIDProber) []LingeringProcess {
	r.mu.Lock()
	candidates := make([]*Handle, 0, len(r.signalled))

	for h := range r.signalled {
		candidates = append(candidates, h)
	}
	r.mu.Unlock()

	out := make([]LingeringProcess, 0, len(candidates))

	for _, h := range candidates {
		exists, name := probe(ctx, int32(h.PID()))
		if !exists {
			continue
		}

		out = append(out, LingeringProcess{
			Key:         h.key,
			PID:         h.PID(),
			Name:        name,
			SignalledAt: h.signalledAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })

	return out
}

func probePID(ctx context.Context, pid int32) (bool, string) {
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil || !exists {
		return false, ""
	}

	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return true, ""
	}

	// Zombies are already dead; they are just waiting for us to reap them.
	if statuses, err := proc.StatusWithContext(ctx); err == nil {
		for _, s := range statuses {
			if s == process.Zombie {
				return false, ""
			}
		}
	}

	name, _ := proc.NameWithContext(ctx)

	return true, name
}
