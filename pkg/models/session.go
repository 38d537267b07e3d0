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

package models

import (
	"errors"
	"fmt"
	"time"
)

// SessionKind identifies the purpose of a per-device external process. A
// device holds at most one session of each kind.
type SessionKind int

const (
	SessionMirror SessionKind = iota
	SessionRecording
	SessionLogStream
)

var sessionKindNames = map[SessionKind]string{
	SessionMirror:    "mirror",
	SessionRecording: "recording",
	SessionLogStream: "logstream",
}

func (k SessionKind) String() string {
	if name, ok := sessionKindNames[k]; ok {
		return name
	}

	return "unknown"
}

var ErrUnknownSessionKind = errors.New("unknown session kind")

func (k SessionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SessionKind) UnmarshalText(text []byte) error {
	for kind, name := range sessionKindNames {
		if name == string(text) {
			*k = kind

			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownSessionKind, text)
}

// SessionKinds lists every kind in shutdown order.
func SessionKinds() []SessionKind {
	return []SessionKind{SessionLogStream, SessionRecording, SessionMirror}
}

// ExitStatus describes how a session process ended.
type ExitStatus struct {
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
	// Manual is true when the exit followed a stop request from this side.
	Manual bool   `json:"manual"`
	Err    string `json:"error,omitempty"`
}

// SessionEnd is emitted once per session when its process exits.
type SessionEnd struct {
	SessionID string      `json:"session_id"`
	Device    DeviceID    `json:"device"`
	Kind      SessionKind `json:"kind"`
	Status    ExitStatus  `json:"status"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
}
