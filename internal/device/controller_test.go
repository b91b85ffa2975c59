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
	"testing"

	"github.com/TheJACKedViking/OpenAwair/api"
	"github.com/TheJACKedViking/OpenAwair/bootloader"
	"github.com/TheJACKedViking/OpenAwair/dfu"
	"github.com/TheJACKedViking/OpenAwair/firmware"
	"github.com/TheJACKedViking/OpenAwair/internal/metrics"
	"github.com/TheJACKedViking/OpenAwair/internal/storage"
	"github.com/TheJACKedViking/OpenAwair/internal/storage/slots"
	"github.com/TheJACKedViking/OpenAwair/internal/storage/testonly"
	"github.com/coreos/go-semver/semver"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var testImage = []byte{10, 11, 12, 13, 14, 15}

// armed returns a bootloader whose store expects img.
func armed(t *testing.T, img []byte) (*bootloader.Bootloader, *storage.MemStore) {
	t.Helper()
	kv := storage.NewMemStore()
	b := bootloader.New(kv, bootloader.DefaultBootConfig())
	fw := firmware.NewImage(img)
	if err := b.Arm(fw.CRC, fw.Size()); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	return b, kv
}

func bootDfu(t *testing.T, c *Controller) {
	t.Helper()
	d, err := c.Boot()
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if d != bootloader.EnterDfu {
		t.Fatalf("Boot() = %v, want EnterDfu", d)
	}
}

func TestUpdate(t *testing.T) {
	b, _ := armed(t, testImage)
	var installed []firmware.Image
	m := metrics.NewMetrics()
	c := New(b, WithMetrics(m), WithInstaller(InstallerFunc(func(img firmware.Image) error {
		installed = append(installed, img)
		return nil
	})))
	bootDfu(t, c)

	st, err := c.ApplyChunk(firmware.Chunk{Offset: 0, Data: testImage[:3]})
	if err != nil {
		t.Fatalf("ApplyChunk: %v", err)
	}
	want := api.Status{Mode: api.Mode_DFU, Received: 3, Size: 6, ExpectedCRC: firmware.NewImage(testImage).CRC}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("Got diff in status: %s", diff)
	}
	if _, err := c.ApplyChunk(firmware.Chunk{Offset: 3, Data: testImage[3:]}); err != nil {
		t.Fatalf("ApplyChunk: %v", err)
	}

	if len(installed) != 1 {
		t.Fatalf("Installed %d images, want 1", len(installed))
	}
	if diff := cmp.Diff(testImage, installed[0].Bytes); diff != "" {
		t.Fatalf("Got diff in installed image: %s", diff)
	}
	if got := c.Status().Mode; got != api.Mode_APP {
		t.Fatalf("Mode after update = %v, want APP", got)
	}
	if d, _ := b.DecideBoot(); d != bootloader.BootApp {
		t.Fatalf("DecideBoot() after update = %v, want BootApp", d)
	}
	if _, err := c.ApplyChunk(firmware.Chunk{Data: []byte{1}}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("ApplyChunk after commit = %v, want ErrNoSession", err)
	}

	if got := testutil.ToFloat64(m.Commits); got != 1 {
		t.Errorf("Commits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BytesAccepted); got != 6 {
		t.Errorf("BytesAccepted = %v, want 6", got)
	}
	if got := testutil.ToFloat64(m.ChunksRejected.WithLabelValues(metrics.ReasonNoSession)); got != 1 {
		t.Errorf("ChunksRejected{no_session} = %v, want 1", got)
	}
}

func TestBootApp(t *testing.T) {
	kv := storage.NewMemStore()
	c := New(bootloader.New(kv, bootloader.DefaultBootConfig()))
	d, err := c.Boot()
	if err != nil || d != bootloader.BootApp {
		t.Fatalf("Boot() = %v, %v; want BootApp", d, err)
	}
	if diff := cmp.Diff(api.Status{Mode: api.Mode_APP}, c.Status()); diff != "" {
		t.Fatalf("Got diff in status: %s", diff)
	}
}

func TestBootMissingMetadata(t *testing.T) {
	kv := storage.NewMemStore()
	if err := kv.Write("dfu_flag", "1"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	c := New(bootloader.New(kv, bootloader.DefaultBootConfig()))
	d, err := c.Boot()
	if d != bootloader.EnterDfu || !errors.Is(err, bootloader.ErrMissingMetadata) {
		t.Fatalf("Boot() = %v, %v; want EnterDfu, ErrMissingMetadata", d, err)
	}
	if _, err := c.ApplyChunk(firmware.Chunk{Data: []byte{1}}); !errors.Is(err, bootloader.ErrMissingMetadata) {
		t.Fatalf("ApplyChunk() = %v, want ErrMissingMetadata", err)
	}
}

func TestChecksumMismatchRetries(t *testing.T) {
	b, kv := armed(t, testImage)
	m := metrics.NewMetrics()
	installs := 0
	c := New(b, WithMetrics(m), WithInstaller(InstallerFunc(func(firmware.Image) error {
		installs++
		return nil
	})))
	bootDfu(t, c)

	bad := append([]byte(nil), testImage...)
	bad[5] ^= 0xff
	if _, err := c.ApplyChunk(firmware.Chunk{Data: bad}); !errors.Is(err, dfu.ErrChecksumMismatch) {
		t.Fatalf("ApplyChunk(corrupt) = %v, want ErrChecksumMismatch", err)
	}
	if installs != 0 {
		t.Fatal("corrupt image installed")
	}
	if v, _, _ := kv.Read("dfu_flag"); v != "1" {
		t.Fatalf("dfu_flag = %q after failed attempt, want 1", v)
	}
	if got := c.Status(); got.Mode != api.Mode_DFU || got.Size != 0 {
		t.Fatalf("Status() after failed attempt = %+v, want DFU with no session", got)
	}

	// The next chunk starts over.
	if _, err := c.ApplyChunk(firmware.Chunk{Data: testImage}); err != nil {
		t.Fatalf("ApplyChunk(retry): %v", err)
	}
	if installs != 1 {
		t.Fatalf("Got %d installs, want 1", installs)
	}
	if got := testutil.ToFloat64(m.VerificationFailures); got != 1 {
		t.Errorf("VerificationFailures = %v, want 1", got)
	}
}

func TestOverflowDiscardsSession(t *testing.T) {
	b, _ := armed(t, testImage)
	m := metrics.NewMetrics()
	c := New(b, WithMetrics(m))
	bootDfu(t, c)

	if _, err := c.ApplyChunk(firmware.Chunk{Offset: 0, Data: testImage[:3]}); err != nil {
		t.Fatalf("ApplyChunk: %v", err)
	}
	if _, err := c.ApplyChunk(firmware.Chunk{Offset: 5, Data: []byte{1, 2}}); !errors.Is(err, dfu.ErrOverflow) {
		t.Fatalf("ApplyChunk(overflow) = %v, want ErrOverflow", err)
	}
	if got := c.Status().Received; got != 0 {
		t.Fatalf("Received = %d after overflow, want fresh session", got)
	}
	if got := testutil.ToFloat64(m.ChunksRejected.WithLabelValues(metrics.ReasonOverflow)); got != 1 {
		t.Errorf("ChunksRejected{overflow} = %v, want 1", got)
	}

	for _, off := range []uint32{0, 3} {
		if _, err := c.ApplyChunk(firmware.Chunk{Offset: off, Data: testImage[off : off+3]}); err != nil {
			t.Fatalf("ApplyChunk(%d): %v", off, err)
		}
	}
	if got := c.Status().Mode; got != api.Mode_APP {
		t.Fatalf("Mode = %v, want APP", got)
	}
}

func TestInstallFailureLeavesFlag(t *testing.T) {
	b, kv := armed(t, testImage)
	c := New(b, WithInstaller(InstallerFunc(func(firmware.Image) error {
		return errors.New("flash busy")
	})))
	bootDfu(t, c)
	if _, err := c.ApplyChunk(firmware.Chunk{Data: testImage}); err == nil {
		t.Fatal("ApplyChunk succeeded with failing installer")
	}
	if v, _, _ := kv.Read("dfu_flag"); v != "1" {
		t.Fatalf("dfu_flag = %q, want 1", v)
	}
	if got := c.Status().Mode; got != api.Mode_DFU {
		t.Fatalf("Mode = %v, want DFU", got)
	}
}

func TestAbort(t *testing.T) {
	b, _ := armed(t, testImage)
	c := New(b)
	bootDfu(t, c)
	if _, err := c.ApplyChunk(firmware.Chunk{Data: testImage[:2]}); err != nil {
		t.Fatalf("ApplyChunk: %v", err)
	}
	c.Abort()
	if got := c.Status(); got.Received != 0 || got.Mode != api.Mode_DFU {
		t.Fatalf("Status() after abort = %+v", got)
	}
	if _, err := c.ApplyChunk(firmware.Chunk{Data: testImage}); err != nil {
		t.Fatalf("ApplyChunk after abort: %v", err)
	}
}

func TestSlotInstaller(t *testing.T) {
	dev := testonly.NewMemDev(t, 16)
	p, err := slots.OpenPartition(dev, slots.Geometry{Start: 0, Length: 16, SlotLengths: []uint{2, 8}})
	if err != nil {
		t.Fatalf("OpenPartition: %v", err)
	}
	slot, err := p.Open(1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	b, _ := armed(t, testImage)
	c := New(b, WithInstaller(&SlotInstaller{Slot: slot}))
	bootDfu(t, c)
	if _, err := c.ApplyChunk(firmware.Chunk{Data: testImage}); err != nil {
		t.Fatalf("ApplyChunk: %v", err)
	}
	got, rev, err := slot.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rev != 1 {
		t.Errorf("slot revision = %d, want 1", rev)
	}
	if diff := cmp.Diff(testImage, got); diff != "" {
		t.Fatalf("Got diff in flashed image: %s", diff)
	}

	big := firmware.NewImage(make([]byte, slot.Capacity()+1))
	if err := (&SlotInstaller{Slot: slot}).Install(big); err == nil {
		t.Fatal("Install of oversize image succeeded")
	}
}

func TestRequestHandlers(t *testing.T) {
	b, _ := armed(t, testImage)
	c := New(b)
	bootDfu(t, c)
	h := c.Handlers()

	call := func(cmd byte, req []byte) api.Response {
		t.Helper()
		var r api.Response
		if err := r.Unmarshal(h[cmd](req)); err != nil {
			t.Fatalf("Unmarshal response: %v", err)
		}
		return r
	}

	r := call(api.U2FHID_DFU_CHUNK, (&api.Chunk{Offset: 0, Data: testImage[:4]}).Bytes())
	if err := r.Err(); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	var st api.Status
	if err := st.Unmarshal(r.Payload); err != nil {
		t.Fatalf("Unmarshal status: %v", err)
	}
	if st.Received != 4 || st.Mode != api.Mode_DFU {
		t.Fatalf("Got status %+v", st)
	}

	r = call(api.U2FHID_DFU_STATUS, nil)
	if err := st.Unmarshal(r.Payload); err != nil || st.Received != 4 {
		t.Fatalf("status = %+v, %v", st, err)
	}

	for _, test := range []struct {
		name string
		req  []byte
		want api.ErrorCode
	}{
		{name: "overflow", req: (&api.Chunk{Offset: 4, Data: []byte{1, 2, 3}}).Bytes(), want: api.ErrorCode_OVERFLOW},
		{name: "malformed", req: []byte{0x08}, want: api.ErrorCode_MALFORMED_REQUEST},
		{name: "offset sent as bytes", req: []byte{0x0a, 0x01, 0x05, 0x12, 0x01, 0xaa}, want: api.ErrorCode_MALFORMED_REQUEST},
		{name: "mismatch", req: (&api.Chunk{Data: make([]byte, 6)}).Bytes(), want: api.ErrorCode_CHECKSUM_MISMATCH},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := call(api.U2FHID_DFU_CHUNK, test.req).Error; got != test.want {
				t.Fatalf("Got error code %v, want %v", got, test.want)
			}
		})
	}

	if r := call(api.U2FHID_DFU_ABORT, nil); r.Err() != nil {
		t.Fatalf("abort: %v", r.Err())
	}
}

func TestRelease(t *testing.T) {
	b, kv := armed(t, testImage)
	if err := kv.Write("fw_version", "1.4.0"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	installs := 0
	installer := WithInstaller(InstallerFunc(func(firmware.Image) error {
		installs++
		return nil
	}))

	old := New(b, installer, WithRelease(*semver.New("1.3.9")))
	bootDfu(t, old)
	if _, err := old.ApplyChunk(firmware.Chunk{Data: testImage}); !errors.Is(err, bootloader.ErrRollback) {
		t.Fatalf("ApplyChunk(older release) = %v, want ErrRollback", err)
	}
	if installs != 0 {
		t.Fatal("older release installed")
	}
	if got := errorCode(bootloader.ErrRollback); got != api.ErrorCode_ROLLBACK {
		t.Fatalf("errorCode(ErrRollback) = %v", got)
	}

	c := New(b, installer, WithRelease(*semver.New("1.5.0")))
	bootDfu(t, c)
	if _, err := c.ApplyChunk(firmware.Chunk{Data: testImage}); err != nil {
		t.Fatalf("ApplyChunk(newer release): %v", err)
	}
	v, err := b.InstalledVersion()
	if err != nil || v == nil || v.String() != "1.5.0" {
		t.Fatalf("InstalledVersion() = %v, %v; want 1.5.0", v, err)
	}
}
