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

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/sidecast/pkg/batcher"
	"github.com/carverauto/sidecast/pkg/discovery"
	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/models"
	"github.com/carverauto/sidecast/pkg/session"
	"github.com/carverauto/sidecast/pkg/sink"
	"github.com/rs/zerolog"
)

var (
	errPollInterval  = errors.New("poll_interval must be positive")
	errFlushInterval = errors.New("flush_interval must be positive")
	errGracePeriod   = errors.New("grace_period must not be negative")
	errMaxLines      = errors.New("max_lines must be positive")
	errLogLevel      = errors.New("invalid logging level")
)

// AppConfig is the sidecast daemon configuration. User-facing settings such
// as bitrate or save directories live in the settings store at SettingsPath.
type AppConfig struct {
	Logging *logger.Config `json:"logging,omitempty" toml:"logging"`

	// SettingsPath is the settings store file. Empty selects the default
	// location in the user config directory.
	SettingsPath  string          `json:"settings_path,omitempty" toml:"settings_path"`
	PollInterval  models.Duration `json:"poll_interval" toml:"poll_interval"`
	GracePeriod   models.Duration `json:"grace_period" toml:"grace_period"`
	FlushInterval models.Duration `json:"flush_interval" toml:"flush_interval"`
	MaxLines      int             `json:"max_lines" toml:"max_lines"`

	// NATS enables the JetStream sink when URL is set.
	NATS sink.NATSConfig `json:"nats" toml:"nats"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging:       logger.DefaultConfig(),
		PollInterval:  models.Duration(discovery.DefaultPollInterval),
		GracePeriod:   models.Duration(session.DefaultGracePeriod),
		FlushInterval: models.Duration(batcher.DefaultFlushInterval),
		MaxLines:      batcher.DefaultMaxLines,
	}
}

// Validate implements Validator.
func (c *AppConfig) Validate() error {
	if c.PollInterval.Std() <= 0 {
		return errPollInterval
	}

	if c.FlushInterval.Std() <= 0 {
		return errFlushInterval
	}

	if c.GracePeriod.Std() < 0 {
		return errGracePeriod
	}

	if c.MaxLines <= 0 {
		return errMaxLines
	}

	if c.Logging != nil && c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("%w %q: %w", errLogLevel, c.Logging.Level, err)
		}
	}

	return nil
}

// NATSEnabled reports whether the JetStream sink should be connected.
func (c *AppConfig) NATSEnabled() bool {
	return c.NATS.URL != ""
}

// BatcherOptions returns the log stream batching options.
func (c *AppConfig) BatcherOptions() []batcher.Option {
	return []batcher.Option{
		batcher.WithFlushInterval(c.FlushInterval.Std()),
		batcher.WithMaxLines(c.MaxLines),
	}
}

// Grace returns the recording stop grace period.
func (c *AppConfig) Grace() time.Duration {
	return c.GracePeriod.Std()
}
