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

// Package firmware provides definitions of the firmware image and the
// fragments it is transferred in.
package firmware

import (
	"fmt"

	"github.com/TheJACKedViking/OpenAwair/internal/checksum"
)

// Image represents a complete firmware binary together with its checksum.
//
// Images created with NewImage always satisfy CRC == checksum(Bytes); an
// Image obtained any other way should be checked with Verify before it is
// trusted.
type Image struct {
	// Bytes is the raw firmware executable.
	Bytes []byte
	// CRC is the CRC-32 of Bytes.
	CRC uint32
}

// NewImage returns an Image for b, computing its checksum.
func NewImage(b []byte) Image {
	return Image{Bytes: b, CRC: checksum.Sum(b)}
}

// Size returns the length of the image in bytes.
func (i Image) Size() uint32 {
	return uint32(len(i.Bytes))
}

// Verify reports whether CRC matches the checksum of Bytes.
func (i Image) Verify() bool {
	return checksum.Sum(i.Bytes) == i.CRC
}

func (i Image) String() string {
	return fmt.Sprintf("firmware image (%d bytes, crc 0x%08x)", len(i.Bytes), i.CRC)
}

// Chunk is a fragment of an image tagged with its byte offset within the
// whole image. Data is only borrowed for the duration of a single call.
type Chunk struct {
	Offset uint32
	Data   []byte
}

// End returns the offset one past the last byte covered by the chunk.
func (c Chunk) End() uint64 {
	return uint64(c.Offset) + uint64(len(c.Data))
}
