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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Service is anything with a blocking run phase and an orderly teardown.
type Service interface {
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// RunOptions configures Run.
type RunOptions struct {
	ServiceName     string
	Service         Service
	ShutdownTimeout time.Duration
	Logger          logger.Logger
	// Signals defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// Run executes the service until it returns or a termination signal arrives,
// then always calls Shutdown with a bounded deadline.
func Run(ctx context.Context, opts *RunOptions) error {
	log := logger.OrNop(opts.Logger)

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	runCtx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()

	runErr := opts.Service.Run(runCtx)
	if errors.Is(runErr, context.Canceled) && ctx.Err() == nil {
		log.Info().Str("service", opts.ServiceName).Msg("Received termination signal")

		runErr = nil
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	// Shutdown must run even when ctx is already done.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := opts.Service.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Str("service", opts.ServiceName).Msg("Shutdown failed")

		return errors.Join(runErr, err)
	}

	log.Debug().Str("service", opts.ServiceName).Msg("Shutdown complete")

	return runErr
}

// ServiceFunc adapts a pair of functions to Service.
type ServiceFunc struct {
	RunFunc      func(ctx context.Context) error
	ShutdownFunc func(ctx context.Context) error
}

func (s ServiceFunc) Run(ctx context.Context) error {
	if s.RunFunc == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	return s.RunFunc(ctx)
}

func (s ServiceFunc) Shutdown(ctx context.Context) error {
	if s.ShutdownFunc == nil {
		return nil
	}

	return s.ShutdownFunc(ctx)
}
