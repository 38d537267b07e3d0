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

// Package app wires the sidecast packages into the command line.
package app

import (
	"context"
	"fmt"

	"github.com/carverauto/sidecast/pkg/bridge"
	"github.com/carverauto/sidecast/pkg/config"
	"github.com/carverauto/sidecast/pkg/discovery"
	"github.com/carverauto/sidecast/pkg/lifecycle"
	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/models"
	"github.com/carverauto/sidecast/pkg/registry"
	"github.com/carverauto/sidecast/pkg/session"
	"github.com/carverauto/sidecast/pkg/settings"
	"github.com/carverauto/sidecast/pkg/sink"
)

// Options contains runtime configuration derived from global flags.
type Options struct {
	ConfigPath   string
	SettingsPath string
	Debug        bool
}

// Runtime holds the components shared by every command.
type Runtime struct {
	Config    *config.AppConfig
	Logger    logger.Logger
	Settings  *settings.Store
	Bridge    *bridge.Client
	Discovery *discovery.Discovery
}

// NewRuntime loads configuration and builds the shared components. Nothing
// here runs the bridge command.
func NewRuntime(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := config.DefaultConfig()

	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.ConfigPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	settingsPath := opts.SettingsPath
	if settingsPath == "" {
		settingsPath = cfg.SettingsPath
	}

	if settingsPath == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			return nil, err
		}

		settingsPath = p
	}

	store, err := settings.Open(settingsPath, nil)
	if err != nil {
		return nil, err
	}

	if cfg.Logging == nil {
		cfg.Logging = logger.DefaultConfig()
	}

	logCfg := *cfg.Logging
	if opts.Debug || store.Snapshot().DebugLogging {
		logCfg.Debug = true
		logCfg.Level = "debug"
	}

	if err := lifecycle.InitializeLogger(&logCfg); err != nil {
		return nil, err
	}

	log, err := lifecycle.CreateComponentLogger("sidecast", &logCfg)
	if err != nil {
		return nil, err
	}

	br := bridge.NewClient(store, log)

	return &Runtime{
		Config:    cfg,
		Logger:    log,
		Settings:  store,
		Bridge:    br,
		Discovery: discovery.New(br, log),
	}, nil
}

// Sinks returns the notification sinks selected by the config plus extra.
// The returned close function releases any connection.
func (rt *Runtime) Sinks(ctx context.Context, extra ...sink.Sink) (sink.Sink, func(), error) {
	sinks := append(sink.Multi{sink.NewLogSink(rt.Logger)}, extra...)

	if !rt.Config.NATSEnabled() {
		return sinks, func() {}, nil
	}

	natsSink, nc, err := sink.ConnectNATS(ctx, rt.Config.NATS, rt.Logger)
	if err != nil {
		return nil, nil, err
	}

	sinks = append(sinks, natsSink)

	return sinks, func() {
		if err := nc.Drain(); err != nil {
			rt.Logger.Warn().Err(err).Msg("Failed to drain NATS connection")
		}
	}, nil
}

// NewManager builds a session manager that validates targets against a
// fresh device poll. Session ends go to out and then to onEnd, which may be
// nil. Long-lived commands keep the returned watcher polling so devices that
// appear later become valid targets.
func (rt *Runtime) NewManager(ctx context.Context, out sink.Sink, onEnd func(models.SessionEnd)) (*session.Manager, *discovery.Watcher) {
	watcher := discovery.NewWatcher(rt.Discovery, rt.Config.PollInterval.Std(), nil, rt.Logger)
	watcher.Refresh(ctx)

	mgr := session.NewManager(registry.New(rt.Logger), rt.Settings, rt.Bridge, rt.Logger,
		session.WithDeviceValidator(watcher),
		session.WithGracePeriod(rt.Config.Grace()),
		session.WithBatcherOptions(rt.Config.BatcherOptions()...),
		session.WithEndObserver(func(end models.SessionEnd) {
			out.SessionEnded(end)

			if onEnd != nil {
				onEnd(end)
			}
		}),
	)

	return mgr, watcher
}
