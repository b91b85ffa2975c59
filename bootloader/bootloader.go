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

// Package bootloader decides at power-on whether the device runs its
// application or waits for a firmware update, and records the metadata of
// each image once it has been validated.
//
// All state lives in a persisted string key/value store:
//
//	flag key  "1" enter DFU mode, anything else (or unset) boot the application
//	crc key   decimal CRC-32 of the image expected by the next update
//	size key  decimal length of that image in bytes
package bootloader

import (
	"fmt"
	"strconv"

	"github.com/TheJACKedViking/OpenAwair/dfu"
	"github.com/TheJACKedViking/OpenAwair/firmware"
	"github.com/TheJACKedViking/OpenAwair/internal/storage"
	"github.com/coreos/go-semver/semver"
	"k8s.io/klog/v2"
)

const (
	flagEnterDfu = "1"
	flagBootApp  = "0"
)

// Decision is the outcome of DecideBoot.
type Decision int

const (
	// BootApp runs the installed application.
	BootApp Decision = iota
	// EnterDfu waits for a firmware update.
	EnterDfu
)

func (d Decision) String() string {
	switch d {
	case BootApp:
		return "BootApp"
	case EnterDfu:
		return "EnterDfu"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// BootConfig names the persisted keys which carry boot state.
type BootConfig struct {
	DfuFlagKey      string `yaml:"dfu_flag"`
	FirmwareCRCKey  string `yaml:"fw_crc"`
	FirmwareSizeKey string `yaml:"fw_size"`
	// FirmwareVersionKey holds the semantic version of the installed release.
	// Empty disables version tracking.
	FirmwareVersionKey string `yaml:"fw_version"`
}

// DefaultBootConfig returns the key names used by the stock firmware.
func DefaultBootConfig() BootConfig {
	return BootConfig{
		DfuFlagKey:         "dfu_flag",
		FirmwareCRCKey:     "fw_crc",
		FirmwareSizeKey:    "fw_size",
		FirmwareVersionKey: "fw_version",
	}
}

// Bootloader operates the boot-mode state machine over a persisted store.
//
// Its operations are invoked at distinct points of the device lifecycle and
// are not synchronised against each other.
type Bootloader struct {
	store storage.KV
	cfg   BootConfig
}

// New returns a Bootloader using store for its persisted state.
func New(store storage.KV, cfg BootConfig) *Bootloader {
	if store == nil {
		panic("bootloader: nil store")
	}
	return &Bootloader{store: store, cfg: cfg}
}

// DecideBoot returns EnterDfu iff the flag key holds exactly "1".
// Only a failure to read the store is reported as an error.
func (b *Bootloader) DecideBoot() (Decision, error) {
	v, ok, err := b.store.Read(b.cfg.DfuFlagKey)
	if err != nil {
		return BootApp, fmt.Errorf("failed to read %q: %w", b.cfg.DfuFlagKey, err)
	}
	if ok && v == flagEnterDfu {
		klog.Info("DFU flag set, entering update mode")
		return EnterDfu, nil
	}
	klog.V(1).Infof("DFU flag %q, booting application", v)
	return BootApp, nil
}

// readUint32 returns the decimal value stored under key. An unset or empty
// value is reported as missing.
func (b *Bootloader) readUint32(key string) (uint32, error) {
	v, ok, err := b.store.Read(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read %q: %w", key, err)
	}
	if !ok || v == "" {
		return 0, &MetadataError{Key: key, Err: ErrMissingMetadata}
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, &MetadataError{Key: key, Value: v, Err: ErrMalformedMetadata}
	}
	return uint32(n), nil
}

// PrepareSession returns a DFU session anchored to the persisted checksum and
// size. It fails with ErrMissingMetadata if either is unset, or
// ErrMalformedMetadata if either is not a decimal uint32.
func (b *Bootloader) PrepareSession() (*dfu.Session, error) {
	crc, err := b.readUint32(b.cfg.FirmwareCRCKey)
	if err != nil {
		return nil, err
	}
	size, err := b.readUint32(b.cfg.FirmwareSizeKey)
	if err != nil {
		return nil, err
	}
	klog.Infof("Prepared DFU session for %d byte image, crc 0x%08x", size, crc)
	return dfu.NewSession(crc, size), nil
}

// Commit records img as the installed image and clears the DFU flag, so the
// next boot runs the application.
//
// The checksum is written first, then the size, then the flag. A failure
// part way through leaves the flag set.
func (b *Bootloader) Commit(img firmware.Image) error {
	for _, kv := range [][2]string{
		{b.cfg.FirmwareCRCKey, strconv.FormatUint(uint64(img.CRC), 10)},
		{b.cfg.FirmwareSizeKey, strconv.FormatUint(uint64(len(img.Bytes)), 10)},
		{b.cfg.DfuFlagKey, flagBootApp},
	} {
		if err := b.store.Write(kv[0], kv[1]); err != nil {
			klog.Errorf("Commit of %v failed writing %q: %v", img, kv[0], err)
			return fmt.Errorf("failed to write %q: %w", kv[0], err)
		}
	}
	klog.Infof("Committed %v", img)
	return nil
}

// Arm tells the device to expect an image with the given checksum and size
// and to enter DFU mode on its next boot.
func (b *Bootloader) Arm(crc, size uint32) error {
	for _, kv := range [][2]string{
		{b.cfg.FirmwareCRCKey, strconv.FormatUint(uint64(crc), 10)},
		{b.cfg.FirmwareSizeKey, strconv.FormatUint(uint64(size), 10)},
		{b.cfg.DfuFlagKey, flagEnterDfu},
	} {
		if err := b.store.Write(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to write %q: %w", kv[0], err)
		}
	}
	klog.Infof("Armed DFU for %d byte image, crc 0x%08x", size, crc)
	return nil
}

// InstalledVersion returns the version of the installed release, or nil if
// none is recorded or version tracking is disabled.
func (b *Bootloader) InstalledVersion() (*semver.Version, error) {
	if b.cfg.FirmwareVersionKey == "" {
		return nil, nil
	}
	v, ok, err := b.store.Read(b.cfg.FirmwareVersionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", b.cfg.FirmwareVersionKey, err)
	}
	if !ok || v == "" {
		return nil, nil
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return nil, &MetadataError{Key: b.cfg.FirmwareVersionKey, Value: v, Err: ErrMalformedMetadata}
	}
	return ver, nil
}

// CheckRelease returns ErrRollback if version is older than the installed
// release. It always succeeds when version tracking is disabled.
func (b *Bootloader) CheckRelease(version semver.Version) error {
	cur, err := b.InstalledVersion()
	if err != nil {
		return err
	}
	if cur != nil && version.LessThan(*cur) {
		return fmt.Errorf("%w: %s is older than installed %s", ErrRollback, version, cur)
	}
	return nil
}

// CommitRelease behaves like Commit, additionally recording version. It fails
// with ErrRollback, writing nothing, if version is older than the installed
// release.
func (b *Bootloader) CommitRelease(img firmware.Image, version semver.Version) error {
	if b.cfg.FirmwareVersionKey != "" {
		if err := b.CheckRelease(version); err != nil {
			return err
		}
		if err := b.store.Write(b.cfg.FirmwareVersionKey, version.String()); err != nil {
			return fmt.Errorf("failed to write %q: %w", b.cfg.FirmwareVersionKey, err)
		}
	}
	return b.Commit(img)
}
