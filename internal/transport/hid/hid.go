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

// Package hid talks to a device over its U2F HID interface.
package hid

import (
	"errors"
	"fmt"

	flynn_hid "github.com/flynn/hid"
	"github.com/flynn/u2f/u2fhid"
	"k8s.io/klog/v2"

	"github.com/TheJACKedViking/OpenAwair/api"
)

// ErrNotFound is returned by Detect when no matching device is attached.
var ErrNotFound = errors.New("no DFU capable device found")

// Device is an attached device's U2F HID interface.
type Device struct {
	u2f *u2fhid.Device
}

func matches(d *flynn_hid.DeviceInfo) bool {
	return d.UsagePage == api.HIDUsagePage &&
		d.VendorID == api.VendorID &&
		d.ProductID == api.ProductID
}

// Detect opens the first attached device exposing the DFU interface.
func Detect() (*Device, error) {
	devices, err := flynn_hid.Devices()
	if err != nil {
		return nil, err
	}

	for _, d := range devices {
		if !matches(d) {
			continue
		}
		dev, err := u2fhid.Open(d)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %v", d.Path, err)
		}
		klog.Infof("Found device %04x:%04x at %s", d.VendorID, d.ProductID, d.Path)
		return &Device{u2f: dev}, nil
	}
	return nil, ErrNotFound
}

// Command implements transport.Commander.
func (d *Device) Command(cmd byte, data []byte) ([]byte, error) {
	return d.u2f.Command(cmd, data)
}

// Close releases the device.
func (d *Device) Close() {
	d.u2f.Close()
}
