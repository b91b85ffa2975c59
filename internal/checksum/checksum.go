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

// Package checksum implements the CRC-32 used to guard firmware images.
//
// The algorithm is the reflected IEEE 802.3 variant, and both host and device
// must agree on it bit-for-bit.
package checksum

// Polynomial is the reflected IEEE 802.3 polynomial.
const Polynomial = 0xedb88320

// table is built once at startup and never modified afterwards.
var table = makeTable(Polynomial)

func makeTable(poly uint32) *[256]uint32 {
	t := new([256]uint32)
	for i := range t {
		v := uint32(i)
		for bit := 0; bit < 8; bit++ {
			if v&1 != 0 {
				v = poly ^ (v >> 1)
			} else {
				v >>= 1
			}
		}
		t[i] = v
	}
	return t
}

// Sum returns the CRC-32 of b.
func Sum(b []byte) uint32 {
	return Update(0, b)
}

// Update returns the result of adding the bytes in b to crc, which must be a
// value previously returned by Sum or Update (or 0 to start).
func Update(crc uint32, b []byte) uint32 {
	crc = ^crc
	for _, v := range b {
		crc = (crc >> 8) ^ table[byte(crc)^v]
	}
	return ^crc
}
