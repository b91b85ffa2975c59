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

package device

import (
	"fmt"

	"github.com/TheJACKedViking/OpenAwair/firmware"
	"k8s.io/klog/v2"
)

// Installer stores a verified image where the device will boot it from.
type Installer interface {
	Install(img firmware.Image) error
}

// InstallerFunc adapts a function to the Installer interface.
type InstallerFunc func(img firmware.Image) error

// Install implements Installer.
func (f InstallerFunc) Install(img firmware.Image) error {
	return f(img)
}

// Record is durable storage for a single image, typically a *slots.Slot.
type Record interface {
	Capacity() uint
	Write(p []byte) error
}

// SlotInstaller writes images into a journaled storage slot.
type SlotInstaller struct {
	Slot Record
}

// Install implements Installer.
func (s *SlotInstaller) Install(img firmware.Image) error {
	if c := s.Slot.Capacity(); uint(len(img.Bytes)) > c {
		return fmt.Errorf("%v does not fit in firmware slot of %d bytes", img, c)
	}
	klog.Infof("Flashing %v", img)
	if err := s.Slot.Write(img.Bytes); err != nil {
		return fmt.Errorf("flashing error: %v", err)
	}
	return nil
}
