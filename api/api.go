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

// Package api defines the messages exchanged between a host and a device
// receiving a firmware update, and the U2F HID commands which carry them.
//
// Messages use the protocol buffer wire format so that device firmware
// written against any protobuf runtime can decode them.
package api

import (
	"bytes"
	"fmt"

	"github.com/gsora/fidati/u2fhid"
)

const (
	// http://pid.codes/1209/2702/
	VendorID  = 0x1209
	ProductID = 0x2702

	HIDUsagePage = 0xff00

	// Maximum Message size according to U2F HID standard (see formula in
	// [FIDO U2F // HID Protocol Specification, 2.4]).
	MaxMessageSize = 7609

	// chunkOverhead bounds the encoding of a Chunk's tags, offset and data
	// length.
	chunkOverhead = 16

	// MaxChunkSize is the largest chunk payload which fits in a single
	// message.
	MaxChunkSize = MaxMessageSize - chunkOverhead
)

// U2FHID vendor specific commands
const (
	// DFU status, request is empty and the response payload is a Status.
	U2FHID_DFU_STATUS = iota + u2fhid.VendorCommandFirst
	// DFU chunk, request is a Chunk and the response payload is a Status.
	U2FHID_DFU_CHUNK
	// Abort the current DFU session.
	U2FHID_DFU_ABORT
)

// ErrorCode classifies a failed request.
type ErrorCode int32

const (
	ErrorCode_NONE ErrorCode = iota
	ErrorCode_GENERIC_ERROR
	ErrorCode_NO_SESSION
	ErrorCode_OVERFLOW
	ErrorCode_CHECKSUM_MISMATCH
	ErrorCode_MALFORMED_REQUEST
	ErrorCode_ROLLBACK
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_NONE:              "NONE",
	ErrorCode_GENERIC_ERROR:     "GENERIC_ERROR",
	ErrorCode_NO_SESSION:        "NO_SESSION",
	ErrorCode_OVERFLOW:          "OVERFLOW",
	ErrorCode_CHECKSUM_MISMATCH: "CHECKSUM_MISMATCH",
	ErrorCode_MALFORMED_REQUEST: "MALFORMED_REQUEST",
	ErrorCode_ROLLBACK:          "ROLLBACK",
}

func (c ErrorCode) String() string {
	if n, ok := errorCodeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ErrorCode(%d)", int32(c))
}

// Mode is the boot mode a device is running in.
type Mode int32

const (
	Mode_APP Mode = iota
	Mode_DFU
)

func (m Mode) String() string {
	switch m {
	case Mode_APP:
		return "APP"
	case Mode_DFU:
		return "DFU"
	}
	return fmt.Sprintf("Mode(%d)", int32(m))
}

// Chunk carries a fragment of a firmware image.
type Chunk struct {
	Offset uint32
	Data   []byte
}

// Status reports the state of a device's update session.
type Status struct {
	Mode        Mode
	Received    uint64
	Size        uint32
	ExpectedCRC uint32
	Complete    bool
}

// Response wraps the reply to every request.
type Response struct {
	Error   ErrorCode
	Payload []byte
}

// ErrorResponse converts an error in an API Message.
func ErrorResponse(code ErrorCode, err error) []byte {
	msg := &Response{
		Error:   code,
		Payload: []byte(err.Error()),
	}
	return msg.Bytes()
}

// EmptyResponse for when no relevant data is available.
func EmptyResponse() []byte {
	return (&Response{}).Bytes()
}

// Print returns the DFU status in textual format.
func (p *Status) Print() string {
	var status bytes.Buffer

	status.WriteString("------------------------------------------------------------- DFU ----\n")
	status.WriteString(fmt.Sprintf("Mode ...................: %v\n", p.Mode))
	status.WriteString(fmt.Sprintf("Expected CRC ...........: 0x%08x\n", p.ExpectedCRC))
	status.WriteString(fmt.Sprintf("Size ...................: %d\n", p.Size))
	status.WriteString(fmt.Sprintf("Received ...............: %d\n", p.Received))
	status.WriteString(fmt.Sprintf("Complete ...............: %v", p.Complete))

	return status.String()
}
