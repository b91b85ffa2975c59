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

package upload

import (
	"errors"
	"fmt"
)

// ErrTransport is matched by every error returned because a chunk write
// failed.
var ErrTransport = errors.New("chunk transport failed")

// ErrImageTooLarge is returned for images whose offsets do not fit in 32 bits.
var ErrImageTooLarge = errors.New("image too large")

// TransportError describes the chunk whose write failed.
type TransportError struct {
	Offset uint32
	Length int
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: chunk @ %d (%d bytes): %v", ErrTransport, e.Offset, e.Length, e.Err)
}

// Unwrap returns the error reported by the transport.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
