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

// Package models holds the types shared between discovery, sessions, and sinks.
package models

import "time"

// DeviceID names a connected device as reported by the bridge tool (its
// serial). Network-attached devices use host:port and may change across
// reconnects.
type DeviceID string

func (d DeviceID) String() string {
	return string(d)
}

// Transport is how the device is attached to the host.
type Transport string

const (
	TransportUSB   Transport = "usb"
	TransportTCPIP Transport = "tcpip"
)

// DeviceSnapshot is one device as seen by a single discovery poll. Snapshots
// are replaced wholesale on the next poll and never mutated.
type DeviceSnapshot struct {
	Serial     DeviceID          `json:"serial"`
	Status     string            `json:"status"`
	Transport  Transport         `json:"connection_mode"`
	Model      string            `json:"model"`
	Product    string            `json:"product,omitempty"`
	Device     string            `json:"device,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	SeenAt     time.Time         `json:"seen_at"`
}

// Online reports whether the bridge considers the device ready for commands.
func (d *DeviceSnapshot) Online() bool {
	return d.Status == StatusDevice
}

// Status tokens printed by the bridge enumeration command.
const (
	StatusDevice       = "device"
	StatusOffline      = "offline"
	StatusUnauthorized = "unauthorized"
)

// ConnectionState is the result of a targeted connection-state query.
// NotFound and Unknown are distinct from any bridge-reported status.
type ConnectionState string

const (
	ConnectionOnline       ConnectionState = "online"
	ConnectionOffline      ConnectionState = "offline"
	ConnectionUnauthorized ConnectionState = "unauthorized"
	ConnectionNotFound     ConnectionState = "not_found"
	ConnectionUnknown      ConnectionState = "unknown"
)

// ConnectionStateFromStatus maps a raw status token to a ConnectionState.
func ConnectionStateFromStatus(status string) ConnectionState {
	switch status {
	case StatusDevice:
		return ConnectionOnline
	case StatusOffline:
		return ConnectionOffline
	case StatusUnauthorized:
		return ConnectionUnauthorized
	case "":
		return ConnectionUnknown
	default:
		return ConnectionState(status)
	}
}

// DeviceDetails is the per-device telemetry gathered on demand.
type DeviceDetails struct {
	Serial         DeviceID        `json:"serial"`
	Brand          string          `json:"brand"`
	Model          string          `json:"model"`
	BatteryLevel   string          `json:"battery_level"`
	BatteryStatus  BatteryStatus   `json:"battery_status"`
	AndroidVersion string          `json:"android_version"`
	APILevel       string          `json:"api_level"`
	ScreenSize     string          `json:"screen_size"`
	CPUABI         string          `json:"cpu_abi"`
	Uptime         string          `json:"uptime"`
	Connection     ConnectionState `json:"connection"`
}

// Unknown is the placeholder for telemetry that could not be read.
const Unknown = "Unknown"

// BatteryStatus is the human-readable battery state.
type BatteryStatus string

const (
	BatteryUnknown     BatteryStatus = "Unknown"
	BatteryCharging    BatteryStatus = "Charging"
	BatteryDischarging BatteryStatus = "Discharging"
	BatteryNotCharging BatteryStatus = "Not charging"
	BatteryFull        BatteryStatus = "Full"
)

// BatteryStatusFromCode maps the numeric status reported by the device
// battery service. Codes outside 1..5 are Unknown.
func BatteryStatusFromCode(code string) BatteryStatus {
	switch code {
	case "2":
		return BatteryCharging
	case "3":
		return BatteryDischarging
	case "4":
		return BatteryNotCharging
	case "5":
		return BatteryFull
	default:
		return BatteryUnknown
	}
}
