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

// Package upload streams a firmware image to a device in fixed-size chunks.
//
// Chunks are written strictly in order, and each write must complete before
// the next is started, so at most one chunk is in flight.
package upload

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/TheJACKedViking/OpenAwair/internal/checksum"
)

// Transport moves a single chunk to the device.
type Transport interface {
	// WriteChunk returns once the device has acknowledged the chunk.
	WriteChunk(ctx context.Context, chunk []byte) error
}

// Progress is reported after every successfully written chunk.
type Progress struct {
	SentBytes  int
	TotalBytes int
	// Percentage is SentBytes/TotalBytes*100 rounded to the nearest integer.
	Percentage int
}

// ProgressCallback is called after each chunk write. Implementations should
// return quickly, as the next chunk is not sent until they do.
type ProgressCallback func(Progress)

// Uploader sends images over a Transport.
type Uploader struct {
	transport Transport
	config    Config
}

// New creates an Uploader writing to transport.
func New(transport Transport, opts ...Option) *Uploader {
	if transport == nil {
		panic("upload: nil transport")
	}
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Uploader{transport: transport, config: config}
}

// ChunkSize returns the configured chunk size.
func (u *Uploader) ChunkSize() int {
	return u.config.ChunkSize
}

// Upload writes image to the transport and returns its checksum as computed
// locally. The checksum is not read back from the device.
//
// onProgress may be nil. If a write fails the upload stops and a
// *TransportError is returned; nothing is kept to resume from. The context is
// checked between chunks and passed to the transport.
func (u *Uploader) Upload(ctx context.Context, image []byte, onProgress ProgressCallback) (uint32, error) {
	log := u.config.Logger
	total := len(image)
	if err := checkSize(uint64(total)); err != nil {
		return 0, err
	}
	start := time.Now()
	log.Info("Starting upload", "bytes", total, "chunkSize", u.config.ChunkSize)

	for off := 0; off < total; off += u.config.ChunkSize {
		if err := ctx.Err(); err != nil {
			log.Error("Upload cancelled", "offset", off, "err", err)
			return 0, err
		}
		end := off + u.config.ChunkSize
		if end > total {
			end = total
		}
		chunk := image[off:end]
		if err := u.transport.WriteChunk(ctx, chunk); err != nil {
			log.Error("Chunk write failed", "offset", off, "length", len(chunk), "err", err)
			return 0, &TransportError{Offset: uint32(off), Length: len(chunk), Err: err}
		}
		log.Debug("Chunk written", "offset", off, "length", len(chunk))

		if onProgress != nil {
			onProgress(Progress{
				SentBytes:  end,
				TotalBytes: total,
				Percentage: percentage(end, total),
			})
		}
	}

	crc := checksum.Sum(image)
	log.Info("Upload complete", "bytes", total, "crc", crc, "elapsed", time.Since(start))
	return crc, nil
}

func checkSize(n uint64) error {
	if n > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrImageTooLarge, n, uint64(math.MaxUint32))
	}
	return nil
}

func percentage(sent, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(sent) / float64(total) * 100))
}
