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

package loopback

import (
	"context"
	"errors"
	"testing"

	"github.com/TheJACKedViking/OpenAwair/api"
	"github.com/TheJACKedViking/OpenAwair/bootloader"
	"github.com/TheJACKedViking/OpenAwair/firmware"
	"github.com/TheJACKedViking/OpenAwair/internal/device"
	"github.com/TheJACKedViking/OpenAwair/internal/storage"
	"github.com/TheJACKedViking/OpenAwair/internal/transport"
	"github.com/TheJACKedViking/OpenAwair/upload"
	"github.com/google/go-cmp/cmp"
)

func testImage(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i ^ (i >> 8))
	}
	return b
}

// simulate returns a device in DFU mode expecting armedFor, and a record of
// what it installs.
func simulate(t *testing.T, armedFor []byte) (*Device, *device.Controller, *[]firmware.Image) {
	t.Helper()
	b := bootloader.New(storage.NewMemStore(), bootloader.DefaultBootConfig())
	fw := firmware.NewImage(armedFor)
	if err := b.Arm(fw.CRC, fw.Size()); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	var installed []firmware.Image
	c := device.New(b, device.WithInstaller(device.InstallerFunc(func(img firmware.Image) error {
		installed = append(installed, img)
		return nil
	})))
	if _, err := c.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	return New(c), c, &installed
}

func TestUploadEndToEnd(t *testing.T) {
	for _, chunkSize := range []int{1, 7, 128, 4096} {
		image := testImage(1500)
		dev, ctrl, installed := simulate(t, image)
		w := transport.NewChunkWriter(dev)

		crc, err := upload.New(w, upload.WithChunkSize(chunkSize)).Upload(context.Background(), image, nil)
		if err != nil {
			t.Fatalf("chunk size %d: Upload: %v", chunkSize, err)
		}
		if want := firmware.NewImage(image).CRC; crc != want {
			t.Fatalf("chunk size %d: Upload() = 0x%08x, want 0x%08x", chunkSize, crc, want)
		}
		if len(*installed) != 1 {
			t.Fatalf("chunk size %d: installed %d images", chunkSize, len(*installed))
		}
		if diff := cmp.Diff(image, (*installed)[0].Bytes); diff != "" {
			t.Fatalf("chunk size %d: Got diff: %s", chunkSize, diff)
		}
		if got := w.Offset(); got != uint32(len(image)) {
			t.Fatalf("chunk size %d: Offset() = %d", chunkSize, got)
		}
		if last := w.LastStatus(); !last.Complete || last.Received != uint64(len(image)) {
			t.Fatalf("chunk size %d: LastStatus() = %+v", chunkSize, last)
		}
		if got := ctrl.Status().Mode; got != api.Mode_APP {
			t.Fatalf("chunk size %d: mode = %v, want APP", chunkSize, got)
		}
	}
}

func TestUploadWrongImage(t *testing.T) {
	dev, _, installed := simulate(t, testImage(100))
	other := testImage(100)
	other[50]++

	_, err := upload.New(transport.NewChunkWriter(dev), upload.WithChunkSize(30)).Upload(context.Background(), other, nil)
	if !errors.Is(err, upload.ErrTransport) {
		t.Fatalf("Upload() = %v, want ErrTransport", err)
	}
	var re *api.ResponseError
	if !errors.As(err, &re) || re.Code != api.ErrorCode_CHECKSUM_MISMATCH {
		t.Fatalf("Upload() = %v, want CHECKSUM_MISMATCH from device", err)
	}
	var te *upload.TransportError
	if !errors.As(err, &te) || te.Offset != 90 {
		t.Fatalf("Upload() = %v, want failure on final chunk", err)
	}
	if len(*installed) != 0 {
		t.Fatal("mismatched image installed")
	}
}

func TestUploadTooLarge(t *testing.T) {
	dev, _, _ := simulate(t, testImage(10))
	_, err := upload.New(transport.NewChunkWriter(dev), upload.WithChunkSize(4)).Upload(context.Background(), testImage(12), nil)
	var re *api.ResponseError
	if !errors.As(err, &re) || re.Code != api.ErrorCode_OVERFLOW {
		t.Fatalf("Upload() = %v, want OVERFLOW from device", err)
	}
}

func TestStatusAndAbort(t *testing.T) {
	image := testImage(64)
	dev, _, _ := simulate(t, image)
	w := transport.NewChunkWriter(dev)
	if err := w.WriteChunk(context.Background(), image[:16]); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	st, err := transport.Status(dev)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := &api.Status{Mode: api.Mode_DFU, Received: 16, Size: 64, ExpectedCRC: firmware.NewImage(image).CRC}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("Got diff: %s", diff)
	}
	if err := transport.Abort(dev); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if st, err := transport.Status(dev); err != nil || st.Received != 0 {
		t.Fatalf("Status after abort = %+v, %v", st, err)
	}
}

func TestUnsupportedCommand(t *testing.T) {
	dev, _, _ := simulate(t, testImage(4))
	if _, err := dev.Command(0x01, nil); err == nil {
		t.Fatal("Command(0x01) succeeded")
	}
}

func TestWriteChunkCancelled(t *testing.T) {
	dev, _, _ := simulate(t, testImage(4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := transport.NewChunkWriter(dev)
	if err := w.WriteChunk(ctx, []byte{0}); !errors.Is(err, context.Canceled) {
		t.Fatalf("WriteChunk() = %v, want context.Canceled", err)
	}
	if w.Offset() != 0 {
		t.Fatalf("Offset() = %d after cancelled write", w.Offset())
	}
}
