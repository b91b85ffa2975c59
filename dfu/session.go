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

// Package dfu reassembles a firmware image from chunks delivered by an
// untrusted transport.
//
// The only integrity guarantee is the final comparison of the whole buffer
// against the checksum agreed before the transfer started; individual chunks
// are not authenticated.
package dfu

import (
	"github.com/TheJACKedViking/OpenAwair/firmware"
	"github.com/TheJACKedViking/OpenAwair/internal/checksum"
	"k8s.io/klog/v2"
)

// Session accumulates the chunks of a single update attempt.
//
// A Session has a single owner and is not safe for concurrent use; callers
// which receive chunks from several goroutines must serialise AcceptChunk.
type Session struct {
	expectedCRC uint32
	size        uint32
	buf         []byte

	// received is a running total of accepted chunk lengths. It does not
	// track which byte ranges were covered, so overlapping chunks can make a
	// session look complete before every byte has been written.
	received uint64
	chunks   uint64
}

// NewSession returns a session for an image of size bytes whose checksum is
// expected to be expectedCRC. The buffer is zero filled.
func NewSession(expectedCRC uint32, size uint32) *Session {
	return &Session{
		expectedCRC: expectedCRC,
		size:        size,
		buf:         make([]byte, size),
	}
}

// ExpectedCRC returns the checksum the session was anchored to.
func (s *Session) ExpectedCRC() uint32 {
	return s.expectedCRC
}

// Size returns the length of the image being reassembled.
func (s *Session) Size() uint32 {
	return s.size
}

// Received returns the total number of bytes accepted so far.
func (s *Session) Received() uint64 {
	return s.received
}

// AcceptChunk copies c into the image buffer.
//
// A chunk which would extend past the end of the image is rejected with an
// *OverflowError and leaves the session unchanged.
func (s *Session) AcceptChunk(c firmware.Chunk) error {
	if c.End() > uint64(s.size) {
		return &OverflowError{Offset: c.Offset, Length: len(c.Data), Size: s.size}
	}
	copy(s.buf[c.Offset:], c.Data)
	s.received += uint64(len(c.Data))
	s.chunks++

	klog.V(2).Infof("DFU chunk %d @ %d (%d bytes), %d/%d received", s.chunks, c.Offset, len(c.Data), s.received, s.size)
	return nil
}

// IsComplete reports whether at least size bytes have been accepted.
func (s *Session) IsComplete() bool {
	return s.received >= uint64(s.size)
}

// Verify reports whether the session is complete and the buffer matches the
// expected checksum.
func (s *Session) Verify() bool {
	if !s.IsComplete() {
		return false
	}
	return checksum.Sum(s.buf) == s.expectedCRC
}

// Image returns the reassembled image if it verifies, or a
// *ChecksumMismatchError otherwise.
//
// On success ownership of the buffer passes to the caller and the session
// must not be used again.
func (s *Session) Image() (firmware.Image, error) {
	if !s.IsComplete() {
		return firmware.Image{}, &ChecksumMismatchError{Expected: s.expectedCRC}
	}
	if got := checksum.Sum(s.buf); got != s.expectedCRC {
		return firmware.Image{}, &ChecksumMismatchError{Expected: s.expectedCRC, Actual: got, Complete: true}
	}
	return firmware.Image{Bytes: s.buf, CRC: s.expectedCRC}, nil
}
