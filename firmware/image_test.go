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

package firmware

import (
	"testing"

	"github.com/TheJACKedViking/OpenAwair/internal/checksum"
)

func TestNewImage(t *testing.T) {
	for _, test := range []struct {
		name string
		b    []byte
	}{
		{name: "empty", b: nil},
		{name: "small", b: []byte{10, 11, 12, 13, 14, 15}},
		{name: "larger", b: make([]byte, 1000)},
	} {
		t.Run(test.name, func(t *testing.T) {
			img := NewImage(test.b)
			if got, want := img.CRC, checksum.Sum(test.b); got != want {
				t.Fatalf("CRC = 0x%08x, want 0x%08x", got, want)
			}
			if !img.Verify() {
				t.Fatal("Verify() = false for image built with NewImage")
			}
			if got, want := img.Size(), uint32(len(test.b)); got != want {
				t.Fatalf("Size() = %d, want %d", got, want)
			}
		})
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	img := NewImage([]byte{1, 2, 3, 4, 5})
	img.Bytes = []byte{1, 2, 3, 4, 6}
	if img.Verify() {
		t.Fatal("Verify() = true for modified image")
	}
}

func TestChunkEnd(t *testing.T) {
	c := Chunk{Offset: 0xffffffff, Data: []byte{1, 2}}
	if got, want := c.End(), uint64(0x100000001); got != want {
		t.Fatalf("End() = %d, want %d", got, want)
	}
}
