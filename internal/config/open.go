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

package config

import (
	"fmt"

	"github.com/TheJACKedViking/OpenAwair/bootloader"
	"github.com/TheJACKedViking/OpenAwair/internal/device"
	"github.com/TheJACKedViking/OpenAwair/internal/storage"
	"github.com/TheJACKedViking/OpenAwair/internal/storage/slots"
	"github.com/TheJACKedViking/OpenAwair/internal/storage/sqlite"
	"k8s.io/klog/v2"
)

// Backend is the opened storage of a device.
type Backend struct {
	KV storage.KV
	// Installer is nil unless the backend has somewhere to put images.
	Installer device.Installer

	close func() error
}

// Close releases the backend's storage.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Bootloader returns a bootloader over the backend's store.
func (d *Device) Bootloader(b *Backend) *bootloader.Bootloader {
	return bootloader.New(b.KV, d.Keys)
}

// Geometry returns the slot layout used by the slots backend: boot state in
// slot 0, the firmware image in slot 1.
func (d *Device) Geometry() slots.Geometry {
	return slots.Geometry{
		Start:       0,
		Length:      d.Store.Blocks,
		SlotLengths: []uint{StateBlocks, d.Store.Blocks - StateBlocks},
	}
}

// Open opens the configured store.
func (d *Device) Open() (*Backend, error) {
	switch d.Store.Backend {
	case BackendMemory:
		return &Backend{KV: storage.NewMemStore()}, nil
	case BackendSQLite:
		s, err := sqlite.Open(d.Store.Path)
		if err != nil {
			return nil, err
		}
		return &Backend{KV: s, close: s.Close}, nil
	case BackendSlots:
		return d.openSlots()
	}
	return nil, fmt.Errorf("unknown backend %q", d.Store.Backend)
}

func (d *Device) openSlots() (*Backend, error) {
	dev, err := storage.OpenFileDev(d.Store.Path, d.SlotBlockSize, d.Store.Blocks)
	if err != nil {
		return nil, err
	}
	p, err := slots.OpenPartition(dev, d.Geometry())
	if err != nil {
		dev.Close()
		return nil, err
	}
	state, err := p.Open(0)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to open state slot: %v", err)
	}
	fw, err := p.Open(1)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to open firmware slot: %v", err)
	}
	klog.V(1).Infof("Opened %q (%d blocks of %d bytes): state slot %d bytes, firmware slot %d bytes", d.Store.Path, dev.NumBlocks(), dev.BlockSize(), state.Capacity(), fw.Capacity())
	return &Backend{
		KV:        storage.NewSlotStore(state),
		Installer: &device.SlotInstaller{Slot: fw},
		close:     dev.Close,
	}, nil
}
