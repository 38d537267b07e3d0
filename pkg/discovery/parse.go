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
	"regexp"
	"strings"
	"time"

	"github.com/carverauto/sidecast/pkg/models"
)

var (
	networkSerial = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+`)
	batteryLevel  = regexp.MustCompile(`level:\s*(\d+)`)
	batteryStatus = regexp.MustCompile(`status:\s*(\d+)`)
)

const listHeader = "List of devices attached"

// ClassifyTransport reports tcpip for serials shaped like a dotted-quad
// address with a port and usb for everything else.
func ClassifyTransport(serial string) models.Transport {
	if networkSerial.MatchString(serial) {
		return models.TransportTCPIP
	}

	return models.TransportUSB
}

// ParseDevices parses the enumeration output. The header, daemon status
// notices and blank lines are skipped.
func ParseDevices(output string, seenAt time.Time) []models.DeviceSnapshot {
	var devices []models.DeviceSnapshot

	for _, line := range strings.Split(output, "\n") {
		if dev, ok := ParseDeviceLine(line); ok {
			dev.SeenAt = seenAt
			devices = append(devices, dev)
		}
	}

	return devices
}

// ParseDeviceLine parses "serial status key:value...". It returns false for
// lines that do not describe a device.
func ParseDeviceLine(line string) (models.DeviceSnapshot, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, listHeader) {
		return models.DeviceSnapshot{}, false
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return models.DeviceSnapshot{}, false
	}

	dev := models.DeviceSnapshot{
		Serial:    models.DeviceID(fields[0]),
		Status:    fields[1],
		Transport: ClassifyTransport(fields[0]),
		Model:     models.Unknown,
	}

	for _, item := range fields[2:] {
		key, value, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}

		if dev.Properties == nil {
			dev.Properties = make(map[string]string)
		}

		dev.Properties[key] = value

		switch key {
		case "model":
			dev.Model = value
		case "product":
			dev.Product = value
		case "device":
			dev.Device = value
		}
	}

	return dev, true
}

// ParseBattery extracts the level ("N%") and status from battery service
// output. Missing values are Unknown.
func ParseBattery(output string) (level string, status models.BatteryStatus) {
	level = models.Unknown
	if m := batteryLevel.FindStringSubmatch(output); m != nil {
		level = m[1] + "%"
	}

	code := "0"
	if m := batteryStatus.FindStringSubmatch(output); m != nil {
		code = m[1]
	}

	return level, models.BatteryStatusFromCode(code)
}

// parseScreenSize returns the text after the first colon of "Physical size:
// 1080x2400".
func parseScreenSize(output string) string {
	_, size, ok := strings.Cut(output, ":")
	if !ok {
		return models.Unknown
	}

	size, _, _ = strings.Cut(size, "\n")
	if size = strings.TrimSpace(size); size == "" {
		return models.Unknown
	}

	return size
}
