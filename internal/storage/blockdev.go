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

package storage

import (
	"fmt"
	"os"

	"k8s.io/klog/v2"
)

var (
	// MaxTransferBytes is the largest single read or write issued to the
	// backing file. Larger requests are split.
	MaxTransferBytes = 32 * 1024
)

// DefaultBlockSize is the block size used by OpenFileDev when none is given.
const DefaultBlockSize = 512

// FileDev is a block device backed by a regular file, standing in for the
// device's flash when running on a host.
type FileDev struct {
	f         *os.File
	blockSize uint
	blocks    uint
}

// OpenFileDev opens, creating if necessary, a file-backed block device of
// the given number of blocks. A blockSize of zero selects DefaultBlockSize.
func OpenFileDev(path string, blockSize, blocks uint) (*FileDev, error) {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if blocks == 0 {
		return nil, fmt.Errorf("block device %q must have at least one block", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open block device: %v", err)
	}
	want := int64(blockSize * blocks)
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %q: %v", path, err)
	}
	if fi.Size() < want {
		if err := f.Truncate(want); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size %q to %d bytes: %v", path, want, err)
		}
		klog.Infof("Initialised block device %q: %d blocks of %d bytes", path, blocks, blockSize)
	}
	return &FileDev{f: f, blockSize: blockSize, blocks: blocks}, nil
}

// Close releases the backing file.
func (d *FileDev) Close() error {
	return d.f.Close()
}

// BlockSize returns the size in bytes of each block.
func (d *FileDev) BlockSize() uint {
	return d.blockSize
}

// NumBlocks returns the number of blocks on the device.
func (d *FileDev) NumBlocks() uint {
	return d.blocks
}

// WriteBlocks writes the data in b to the device blocks starting at the given block address.
// If the final block to be written is partial, it will be padded with zeroes to ensure that
// full blocks are written.
// Returns the number of blocks written, or an error.
func (d *FileDev) WriteBlocks(lba uint, b []byte) (uint, error) {
	if len(b) == 0 {
		return 0, nil
	}
	bs := int(d.blockSize)
	if r := len(b) % bs; r != 0 {
		b = append(b[:len(b):len(b)], make([]byte, bs-r)...)
	}
	numBlocks := uint(len(b) / bs)
	if lba+numBlocks > d.blocks {
		return 0, fmt.Errorf("write of %d blocks @ %d overruns device (%d blocks)", numBlocks, lba, d.blocks)
	}
	for len(b) > 0 {
		bl := min(len(b), transferBytes(bs))
		off := int64(lba) * int64(bs)
		if _, err := d.f.WriteAt(b[:bl], off); err != nil {
			klog.Errorf("WriteAt(%d, %d) = %v", off, bl, err)
			return 0, err
		}
		b = b[bl:]
		lba += uint(bl / bs)
	}
	if err := d.f.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync block device: %v", err)
	}
	return numBlocks, nil
}

// ReadBlocks reads data from the storage device at the given address into b.
// b must be a multiple of the underlying device's block size.
func (d *FileDev) ReadBlocks(lba uint, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	bs := int(d.blockSize)
	if len(b)%bs != 0 {
		return fmt.Errorf("read of %d bytes is not a multiple of block size %d", len(b), bs)
	}
	if lba+uint(len(b)/bs) > d.blocks {
		return fmt.Errorf("read of %d blocks @ %d overruns device (%d blocks)", len(b)/bs, lba, d.blocks)
	}
	for len(b) > 0 {
		bl := min(len(b), transferBytes(bs))
		off := int64(lba) * int64(bs)
		if _, err := d.f.ReadAt(b[:bl], off); err != nil {
			klog.Errorf("ReadAt(%d, %d) = %v", off, bl, err)
			return err
		}
		b = b[bl:]
		lba += uint(bl / bs)
	}
	return nil
}

// transferBytes returns the largest whole number of blocks which fits in a
// single transfer, and never less than one block.
func transferBytes(bs int) int {
	return max(bs, MaxTransferBytes/bs*bs)
}
