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

package device

import (
	"errors"

	"github.com/TheJACKedViking/OpenAwair/api"
	"github.com/TheJACKedViking/OpenAwair/bootloader"
	"github.com/TheJACKedViking/OpenAwair/dfu"
	"k8s.io/klog/v2"
)

// Handler serves a single vendor command, returning an encoded api.Response.
type Handler func(req []byte) (res []byte)

// Handlers returns the vendor command mapping served by c.
func (c *Controller) Handlers() map[byte]Handler {
	return map[byte]Handler{
		api.U2FHID_DFU_STATUS: c.StatusRequest,
		api.U2FHID_DFU_CHUNK:  c.ChunkRequest,
		api.U2FHID_DFU_ABORT:  c.AbortRequest,
	}
}

// StatusRequest is the handler for U2FHID_DFU_STATUS requests.
func (c *Controller) StatusRequest(_ []byte) []byte {
	st := c.Status()
	return (&api.Response{Payload: st.Bytes()}).Bytes()
}

// ChunkRequest is the handler for U2FHID_DFU_CHUNK requests, each of which
// carries one api.Chunk.
func (c *Controller) ChunkRequest(req []byte) (res []byte) {
	st, err := c.HandleChunk(req)
	if err != nil {
		klog.Warningf("DFU chunk rejected: %v", err)
		return api.ErrorResponse(errorCode(err), err)
	}
	return (&api.Response{Payload: st.Bytes()}).Bytes()
}

// AbortRequest is the handler for U2FHID_DFU_ABORT requests.
func (c *Controller) AbortRequest(_ []byte) []byte {
	c.Abort()
	return api.EmptyResponse()
}

func errorCode(err error) api.ErrorCode {
	switch {
	case errors.Is(err, dfu.ErrOverflow):
		return api.ErrorCode_OVERFLOW
	case errors.Is(err, dfu.ErrChecksumMismatch):
		return api.ErrorCode_CHECKSUM_MISMATCH
	case errors.Is(err, ErrNoSession),
		errors.Is(err, bootloader.ErrMissingMetadata),
		errors.Is(err, bootloader.ErrMalformedMetadata):
		return api.ErrorCode_NO_SESSION
	case errors.Is(err, bootloader.ErrRollback):
		return api.ErrorCode_ROLLBACK
	case errors.Is(err, errMalformedRequest):
		return api.ErrorCode_MALFORMED_REQUEST
	}
	return api.ErrorCode_GENERIC_ERROR
}
