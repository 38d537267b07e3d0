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

package discovery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/models"
)

// DefaultPollInterval is how often a Watcher re-enumerates devices.
const DefaultPollInterval = 2 * time.Second

var errInvalidPollInterval = errors.New("poll interval must be positive")

// Change describes the difference between two consecutive polls.
type Change struct {
	Devices []models.DeviceSnapshot
	Added   []models.DeviceID
	Removed []models.DeviceID
}

// ChangeFunc is called after a poll that added or removed devices.
type ChangeFunc func(Change)

// Poller is the enumeration a Watcher drives. *Discovery satisfies it.
type Poller interface {
	Poll(ctx context.Context) []models.DeviceSnapshot
}

// Watcher polls on an interval and keeps the latest device set. The set is
// replaced wholesale on every poll.
type Watcher struct {
	poller   Poller
	interval time.Duration
	onChange ChangeFunc
	logger   logger.Logger

	mu      sync.RWMutex
	devices map[models.DeviceID]models.DeviceSnapshot
}

// NewWatcher creates a watcher. onChange may be nil.
func NewWatcher(poller Poller, interval time.Duration, onChange ChangeFunc, log logger.Logger) *Watcher {
	return &Watcher{
		poller:   poller,
		interval: interval,
		onChange: onChange,
		logger:   logger.OrNop(log),
		devices:  make(map[models.DeviceID]models.DeviceSnapshot),
	}
}

// Run polls immediately and then on every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return errInvalidPollInterval
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Refresh(ctx)
		}
	}
}

// Refresh performs one poll and swaps in the result.
func (w *Watcher) Refresh(ctx context.Context) Change {
	devices := w.poller.Poll(ctx)

	next := make(map[models.DeviceID]models.DeviceSnapshot, len(devices))
	for _, dev := range devices {
		next[dev.Serial] = dev
	}

	w.mu.Lock()
	prev := w.devices
	w.devices = next
	w.mu.Unlock()

	change := Change{Devices: devices}

	for id := range next {
		if _, ok := prev[id]; !ok {
			change.Added = append(change.Added, id)
		}
	}

	for id := range prev {
		if _, ok := next[id]; !ok {
			change.Removed = append(change.Removed, id)
		}
	}

	sortIDs(change.Added)
	sortIDs(change.Removed)

	if len(change.Added) > 0 || len(change.Removed) > 0 {
		w.logger.Info().
			Interface("added", change.Added).
			Interface("removed", change.Removed).
			Msg("Device set changed")

		if w.onChange != nil {
			w.onChange(change)
		}
	}

	return change
}

// Known reports whether id was present in the latest poll.
func (w *Watcher) Known(id models.DeviceID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.devices[id]

	return ok
}

// Devices returns the latest device set ordered by serial.
func (w *Watcher) Devices() []models.DeviceSnapshot {
	w.mu.RLock()
	out := make([]models.DeviceSnapshot, 0, len(w.devices))

	for _, dev := range w.devices {
		out = append(out, dev)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })

	return out
}

func sortIDs(ids []models.DeviceID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
