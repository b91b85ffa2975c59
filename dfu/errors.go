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

package dfu

import (
	"errors"
	"fmt"
)

var (
	// ErrOverflow is returned when a chunk extends past the end of the image.
	// The session should be discarded.
	ErrOverflow = errors.New("chunk exceeds firmware size")

	// ErrChecksumMismatch is returned when an image is requested from a session
	// which is incomplete or whose contents do not match the expected checksum.
	ErrChecksumMismatch = errors.New("firmware CRC mismatch")
)

// OverflowError describes a rejected chunk.
type OverflowError struct {
	Offset uint32
	Length int
	Size   uint32
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%v: chunk [%d, %d) outside image of %d bytes",
		ErrOverflow, e.Offset, uint64(e.Offset)+uint64(e.Length), e.Size)
}

func (e *OverflowError) Unwrap() error {
	return ErrOverflow
}

// ChecksumMismatchError describes a failed verification.
type ChecksumMismatchError struct {
	Expected uint32
	// Actual is only meaningful when Complete is true.
	Actual   uint32
	Complete bool
}

func (e *ChecksumMismatchError) Error() string {
	if !e.Complete {
		return fmt.Sprintf("%v: image incomplete", ErrChecksumMismatch)
	}
	return fmt.Sprintf("%v: expected 0x%08x, got 0x%08x", ErrChecksumMismatch, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error {
	return ErrChecksumMismatch
}
