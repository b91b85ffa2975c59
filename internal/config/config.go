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

// Package config describes how a simulated device keeps its state, and
// opens the storage it describes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/TheJACKedViking/OpenAwair/bootloader"
	"github.com/TheJACKedViking/OpenAwair/upload"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendSlots  = "slots"
)

// StateBlocks is the number of blocks reserved for the boot state record
// when using the slots backend. The remainder holds the firmware image.
const StateBlocks = 4

// Device is the configuration of a simulated device.
type Device struct {
	Store         Store                 `yaml:"store"`
	Keys          bootloader.BootConfig `yaml:"keys"`
	ChunkSize     int                   `yaml:"chunk_size"`
	SlotBlockSize uint                  `yaml:"slot_block_size"`
}

// Store selects where boot state is persisted.
type Store struct {
	Backend string `yaml:"backend"`
	// Path is the database file (sqlite) or block device image (slots).
	Path string `yaml:"path"`
	// Blocks is the size of the block device image (slots).
	Blocks uint `yaml:"blocks"`
}

// Default returns the configuration used when no file is given.
func Default() *Device {
	return &Device{
		Store:         Store{Backend: BackendMemory, Blocks: 2048},
		Keys:          bootloader.DefaultBootConfig(),
		ChunkSize:     upload.DefaultChunkSize,
		SlotBlockSize: 512,
	}
}

// LoadConfig reads and parses a device configuration file.
func LoadConfig(path string) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration, filling absent fields with defaults.
// Unknown fields are rejected.
func Parse(data []byte) (*Device, error) {
	config := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration is usable.
func (d *Device) Validate() error {
	switch d.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if d.Store.Path == "" {
			return errors.New("store: sqlite backend requires a path")
		}
	case BackendSlots:
		if d.Store.Path == "" {
			return errors.New("store: slots backend requires a path")
		}
		if d.Store.Blocks <= StateBlocks+1 {
			return fmt.Errorf("store: slots backend needs more than %d blocks, got %d", StateBlocks+1, d.Store.Blocks)
		}
		if d.SlotBlockSize == 0 || d.SlotBlockSize%512 != 0 {
			return fmt.Errorf("slot_block_size %d is not a positive multiple of 512", d.SlotBlockSize)
		}
	default:
		return fmt.Errorf("store: unknown backend %q", d.Store.Backend)
	}

	k := d.Keys
	if k.DfuFlagKey == "" || k.FirmwareCRCKey == "" || k.FirmwareSizeKey == "" {
		return errors.New("keys: dfu_flag, fw_crc and fw_size must be set")
	}
	seen := map[string]bool{}
	for _, key := range []string{k.DfuFlagKey, k.FirmwareCRCKey, k.FirmwareSizeKey, k.FirmwareVersionKey} {
		if key == "" {
			continue
		}
		if seen[key] {
			return fmt.Errorf("keys: %q used more than once", key)
		}
		seen[key] = true
	}

	if d.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", d.ChunkSize)
	}
	return nil
}
