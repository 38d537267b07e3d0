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
	"context"
	"time"

	"github.com/carverauto/sidecast/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Shutdown stops every session, log streams first, then waits up to the
// grace period for the processes to exit. Processes still alive afterwards
// are logged. It returns ctx's error if ctx ends during the wait.
func (m *Manager) Shutdown(ctx context.Context) error {
	handles := m.registry.Handles()

	for _, kind := range models.SessionKinds() {
		if stopped := m.registry.StopKind(kind); len(stopped) > 0 {
			m.logger.Info().Str("kind", kind.String()).Int("count", len(stopped)).Msg("Stopped sessions")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, h := range handles {
		g.Go(func() error {
			timer := time.NewTimer(m.gracePeriod)
			defer timer.Stop()

			select {
			case <-h.Done():
			case <-timer.C:
			case <-gctx.Done():
				return gctx.Err()
			}

			return nil
		})
	}

	err := g.Wait()

	for _, p := range m.Lingering(context.WithoutCancel(ctx)) {
		m.logger.Warn().
			Str("key", p.Key.String()).
			Int("pid", p.PID).
			Str("name", p.Name).
			Msg("Process survived the termination signal")
	}

	return err
}
