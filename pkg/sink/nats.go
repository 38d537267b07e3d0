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

package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/carverauto/sidecast/pkg/models"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	DefaultStream = "SIDECAST"

	// SessionEndedSubject carries every session end.
	SessionEndedSubject = "sidecast.session.ended"

	TypeLogBatch     = "com.carverauto.sidecast.logcat.batch"
	TypeLogEnded     = "com.carverauto.sidecast.logcat.ended"
	TypeSessionEnded = "com.carverauto.sidecast.session.ended"

	eventSource           = "sidecast/session"
	defaultPublishTimeout = 5 * time.Second
)

// DefaultSubjects is what the stream must capture.
var DefaultSubjects = []string{"sidecast.>"}

// LogSubject is the subject of a device's log batches.
func LogSubject(device models.DeviceID) string {
	return "sidecast.logcat." + subjectToken(device.String())
}

// LogEndedSubject is the subject of a device's log stream end.
func LogEndedSubject(device models.DeviceID) string {
	return LogSubject(device) + ".ended"
}

// subjectToken turns a serial into a single subject token. Network serials
// contain dots, which would otherwise split the token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}

		return r
	}, s)
}

// Publisher is the JetStream publish call. jetstream.JetStream satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSSink publishes notifications as CloudEvents to JetStream.
type NATSSink struct {
	pub     Publisher
	timeout time.Duration
	logger  logger.Logger
	now     func() time.Time
}

// NewNATSSink creates a sink over pub.
func NewNATSSink(pub Publisher, log logger.Logger) *NATSSink {
	return &NATSSink{
		pub:     pub,
		timeout: defaultPublishTimeout,
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
}

func (s *NATSSink) LogBatch(device models.DeviceID, lines []string) {
	s.publishOrLog(LogSubject(device), TypeLogBatch, models.LogBatchEventData{Device: device, Lines: lines})
}

func (s *NATSSink) LogEnded(device models.DeviceID, manual bool) {
	s.publishOrLog(LogEndedSubject(device), TypeLogEnded, models.LogEndedEventData{Device: device, Manual: manual})
}

func (s *NATSSink) SessionEnded(end models.SessionEnd) {
	s.publishOrLog(SessionEndedSubject, TypeSessionEnded, end)
}

func (s *NATSSink) publishOrLog(subject, eventType string, data interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Publish(ctx, subject, eventType, data); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}

// Publish wraps data in a CloudEvent and publishes it on subject.
func (s *NATSSink) Publish(ctx context.Context, subject, eventType string, data interface{}) error {
	now := s.now()
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &now,
		Data:            data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	ack, err := s.pub.Publish(ctx, subject, payload, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	s.logger.Trace().
		Str("event_id", event.ID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("Published event")

	return nil
}

// NATSConfig selects the server and stream the NATS sink publishes to.
type NATSConfig struct {
	URL       string   `json:"url" toml:"url"`
	Stream    string   `json:"stream,omitempty" toml:"stream"`
	Domain    string   `json:"domain,omitempty" toml:"domain"`
	CredsFile string   `json:"creds_file,omitempty" toml:"creds_file"`
	CertFile  string   `json:"cert_file,omitempty" toml:"cert_file"`
	KeyFile   string   `json:"key_file,omitempty" toml:"key_file"`
	CAFile    string   `json:"ca_file,omitempty" toml:"ca_file"`
	Subjects  []string `json:"subjects,omitempty" toml:"subjects"`
}

var errNATSURLRequired = errors.New("nats url is required")

// ConnectNATS connects, makes sure the stream captures the sidecast
// subjects and returns a sink. The caller closes the connection.
func ConnectNATS(ctx context.Context, cfg NATSConfig, log logger.Logger) (*NATSSink, *nats.Conn, error) {
	log = logger.OrNop(log)

	if cfg.URL == "" {
		return nil, nil, errNATSURLRequired
	}

	opts := []nats.Option{
		nats.Name("sidecast"),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		opts = append(opts, nats.ClientCert(cfg.CertFile, cfg.KeyFile))
	}

	if cfg.CAFile != "" {
		opts = append(opts, nats.RootCAs(cfg.CAFile))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream
	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = DefaultStream
	}

	subjects := cfg.Subjects
	if len(subjects) == 0 {
		subjects = DefaultSubjects
	}

	if err := ensureStream(ctx, js, stream, subjects); err != nil {
		nc.Close()

		return nil, nil, err
	}

	log.Info().Str("url", nc.ConnectedUrl()).Str("stream", stream).Msg("Connected to NATS")

	return NewNATSSink(js, log), nc, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, name string, subjects []string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", name, err)
		}

		if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{Name: name, Subjects: subjects}); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	cfg := stream.CachedInfo().Config
	merged := append([]string(nil), cfg.Subjects...)

	for _, subject := range subjects {
		merged = ensureSubjectList(merged, subject)
	}

	if len(merged) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = merged

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to update stream %s subjects: %w", name, err)
	}

	return nil
}

// ensureSubjectList appends subject unless an existing pattern covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether the NATS subject pattern covers subject.
// A pattern also covers an identical wildcard subject.
func matchesSubject(pattern, subject string) bool {
	p := strings.Split(pattern, ".")
	s := strings.Split(subject, ".")

	for i, token := range p {
		if token == ">" {
			return len(s) > i
		}

		if i >= len(s) {
			return false
		}

		if token != "*" && token != s[i] {
			return false
		}
	}

	return len(p) == len(s)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
