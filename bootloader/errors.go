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

package bootloader

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingMetadata is returned when the expected checksum or size of the
	// next image has never been persisted, meaning no update is pending.
	ErrMissingMetadata = errors.New("firmware metadata missing")

	// ErrMalformedMetadata is returned when a persisted checksum or size is not
	// a valid unsigned 32-bit decimal integer.
	ErrMalformedMetadata = errors.New("firmware metadata malformed")

	// ErrRollback is returned when asked to commit a release older than the
	// one already installed.
	ErrRollback = errors.New("firmware version rollback")
)

// MetadataError describes a missing or unparseable persisted value.
type MetadataError struct {
	Key   string
	Value string
	// Err is ErrMissingMetadata or ErrMalformedMetadata.
	Err error
}

func (e *MetadataError) Error() string {
	if errors.Is(e.Err, ErrMissingMetadata) {
		return fmt.Sprintf("%v: key %q not set", e.Err, e.Key)
	}
	return fmt.Sprintf("%v: key %q has value %q", e.Err, e.Key, e.Value)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}
