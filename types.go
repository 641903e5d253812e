// Copyright 2023 Turing Machines
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package robotest

import "time"

// Defaults used when no option overrides them
const (
	DefaultBaudRate     = 115200
	DefaultReadTimeout  = 200 * time.Millisecond
	DefaultReadyTimeout = 20 * time.Second
	DefaultHTTPTimeout  = 5 * time.Second
	DefaultHTTPPort     = 80
)

// Serial device naming conventions, in preference order
const (
	// Native USB CDC ports (Arduino UNO R4, Leonardo, ...)
	ModemPattern = "/dev/cu.usbmodem*"
	// USB-serial adapters (CH340, FTDI, CP210x)
	SerialAdapterPattern = "/dev/cu.usbserial*"
)

// DefaultPatterns lists the patterns scanned when none are given
var DefaultPatterns = []string{ModemPattern, SerialAdapterPattern}

// Build configuration slots filled by the port selector
const (
	UploadPortKey  = "UPLOAD_PORT"
	MonitorPortKey = "MONITOR_PORT"
	TestPortKey    = "TEST_PORT"
)

// Endpoint represents a firmware HTTP endpoint exercised by the smoke test
type Endpoint string

const (
	EndpointRoot    Endpoint = "/"
	EndpointControl Endpoint = "/control"
	EndpointHealth  Endpoint = "/health"
	EndpointDrive   Endpoint = "/drive"
)
