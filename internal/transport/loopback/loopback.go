// Copyright 2026 The OpenAwair Authors. All Rights Reserved.
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

// Package loopback connects a host directly to an in-process simulated
// device.
package loopback

import (
	"fmt"

	"github.com/TheJACKedViking/OpenAwair/internal/device"
)

// Device dispatches vendor commands to a device controller's handlers.
type Device struct {
	handlers map[byte]device.Handler
}

// New returns a Device serving c's request handlers.
func New(c *device.Controller) *Device {
	return &Device{handlers: c.Handlers()}
}

// Command implements transport.Commander.
func (d *Device) Command(cmd byte, data []byte) ([]byte, error) {
	h, ok := d.handlers[cmd]
	if !ok {
		return nil, fmt.Errorf("unsupported command 0x%02x", cmd)
	}
	// Requests are copied, as a real link would.
	return h(append([]byte(nil), data...)), nil
}
