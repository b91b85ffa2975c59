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

// Package transport carries DFU requests from a host to a device over any
// link which can exchange a vendor command for a response.
package transport

import (
	"context"
	"fmt"
	"math"

	"github.com/TheJACKedViking/OpenAwair/api"
	"k8s.io/klog/v2"
)

// Commander sends a vendor command and returns the device's reply, which is
// an encoded api.Response.
type Commander interface {
	Command(cmd byte, data []byte) ([]byte, error)
}

func call(c Commander, cmd byte, req []byte) (*api.Response, error) {
	buf, err := c.Command(cmd, req)
	if err != nil {
		return nil, err
	}
	res := &api.Response{}
	if err := res.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("malformed response: %v", err)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Status returns the device's DFU status.
func Status(c Commander) (*api.Status, error) {
	res, err := call(c, api.U2FHID_DFU_STATUS, nil)
	if err != nil {
		return nil, err
	}
	s := &api.Status{}
	if err := s.Unmarshal(res.Payload); err != nil {
		return nil, fmt.Errorf("malformed status: %v", err)
	}
	return s, nil
}

// Abort discards the device's active DFU session.
func Abort(c Commander) error {
	_, err := call(c, api.U2FHID_DFU_ABORT, nil)
	return err
}

// ChunkWriter frames consecutive chunks with their offset in the image and
// sends them to the device. It implements upload.Transport.
type ChunkWriter struct {
	c      Commander
	offset uint32
	// last is the status returned by the most recent successful write.
	last api.Status
}

// NewChunkWriter returns a ChunkWriter starting at offset zero.
func NewChunkWriter(c Commander) *ChunkWriter {
	return &ChunkWriter{c: c}
}

// WriteChunk sends chunk and waits for the device to acknowledge it. The
// offset only advances when the device accepts the chunk.
func (w *ChunkWriter) WriteChunk(ctx context.Context, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunk) > api.MaxChunkSize {
		return fmt.Errorf("chunk of %d bytes exceeds maximum of %d", len(chunk), api.MaxChunkSize)
	}
	if uint64(w.offset)+uint64(len(chunk)) > math.MaxUint32 {
		return fmt.Errorf("chunk @ %d (%d bytes) overruns the 32-bit image offset", w.offset, len(chunk))
	}
	req := (&api.Chunk{Offset: w.offset, Data: chunk}).Bytes()
	res, err := call(w.c, api.U2FHID_DFU_CHUNK, req)
	if err != nil {
		return err
	}
	if err := w.last.Unmarshal(res.Payload); err != nil {
		return fmt.Errorf("malformed status: %v", err)
	}
	klog.V(2).Infof("Chunk @ %d (%d bytes) acknowledged, device has %d/%d", w.offset, len(chunk), w.last.Received, w.last.Size)
	w.offset += uint32(len(chunk))
	return nil
}

// Offset returns the image offset the next chunk will be written at.
func (w *ChunkWriter) Offset() uint32 {
	return w.offset
}

// LastStatus returns the device status reported with the last accepted chunk.
func (w *ChunkWriter) LastStatus() api.Status {
	return w.last
}
