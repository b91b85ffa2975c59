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

// Package device runs the device side of a firmware update: it decides the
// boot mode, feeds received chunks into a DFU session, and installs and
// commits the image once it verifies.
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/TheJACKedViking/OpenAwair/api"
	"github.com/TheJACKedViking/OpenAwair/bootloader"
	"github.com/TheJACKedViking/OpenAwair/dfu"
	"github.com/TheJACKedViking/OpenAwair/firmware"
	"github.com/TheJACKedViking/OpenAwair/internal/metrics"
	"github.com/coreos/go-semver/semver"
	"k8s.io/klog/v2"
)

// ErrNoSession is returned when a chunk arrives while the device is not in
// DFU mode.
var ErrNoSession = errors.New("no DFU session")

var errMalformedRequest = errors.New("malformed request")

// Controller serialises chunk delivery into a single DFU session.
type Controller struct {
	mu sync.Mutex

	boot      *bootloader.Bootloader
	installer Installer
	metrics   *metrics.Metrics
	release   *semver.Version

	mode bootloader.Decision
	// session is nil outside DFU mode, and after a failed attempt until the
	// next chunk re-prepares it.
	session *dfu.Session
}

// New returns a controller operating on b. Boot must be called before
// chunks are handled.
func New(b *bootloader.Bootloader, opts ...Option) *Controller {
	if b == nil {
		panic("device: nil bootloader")
	}
	c := &Controller{
		boot:    b,
		metrics: metrics.NewMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Boot decides the boot mode and, in DFU mode, prepares a session for the
// expected image.
func (c *Controller) Boot() (bootloader.Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.boot.DecideBoot()
	if err != nil {
		return d, err
	}
	c.mode = d
	c.session = nil
	c.metrics.BootDecisions.WithLabelValues(d.String()).Inc()
	if d != bootloader.EnterDfu {
		return d, nil
	}
	if err := c.prepareLocked(); err != nil {
		return d, err
	}
	return d, nil
}

func (c *Controller) prepareLocked() error {
	s, err := c.boot.PrepareSession()
	if err != nil {
		return fmt.Errorf("failed to prepare DFU session: %w", err)
	}
	c.session = s
	c.metrics.Progress(0, s.Size())
	return nil
}

// discardLocked abandons the current attempt. The device stays in DFU mode
// and the next chunk starts a fresh session.
func (c *Controller) discardLocked(why error) {
	klog.Warningf("Discarding DFU session: %v", why)
	c.session = nil
	c.metrics.Progress(0, 1)
}

// ApplyChunk adds ch to the active session, installing and committing the
// image once the session completes.
//
// An overflowing chunk or an image which fails verification discards the
// session; the persisted DFU flag is left set so the update can be retried.
func (c *Controller) ApplyChunk(ch firmware.Chunk) (api.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != bootloader.EnterDfu {
		c.metrics.ChunkRejected(metrics.ReasonNoSession)
		return c.statusLocked(), ErrNoSession
	}
	if c.session == nil {
		if err := c.prepareLocked(); err != nil {
			c.metrics.ChunkRejected(metrics.ReasonNoSession)
			return c.statusLocked(), err
		}
	}

	s := c.session
	if err := s.AcceptChunk(ch); err != nil {
		c.metrics.ChunkRejected(metrics.ReasonOverflow)
		c.discardLocked(err)
		return c.statusLocked(), err
	}
	c.metrics.ChunkAccepted(len(ch.Data))
	c.metrics.Progress(s.Received(), s.Size())

	if !s.IsComplete() {
		return c.statusLocked(), nil
	}
	st := c.statusLocked()

	img, err := s.Image()
	if err != nil {
		c.metrics.VerificationFailures.Inc()
		c.discardLocked(err)
		return st, err
	}
	if err := c.installLocked(img); err != nil {
		c.metrics.CommitFailures.Inc()
		c.discardLocked(err)
		return st, err
	}
	c.metrics.Commits.Inc()
	c.mode = bootloader.BootApp
	c.session = nil
	klog.Infof("DFU complete, %v installed", img)
	return st, nil
}

func (c *Controller) installLocked(img firmware.Image) error {
	if c.release != nil {
		if err := c.boot.CheckRelease(*c.release); err != nil {
			return err
		}
	}
	if c.installer != nil {
		if err := c.installer.Install(img); err != nil {
			return fmt.Errorf("failed to install %v: %w", img, err)
		}
	}
	if c.release != nil {
		return c.boot.CommitRelease(img, *c.release)
	}
	return c.boot.Commit(img)
}

// HandleChunk decodes an api.Chunk from frame and applies it.
func (c *Controller) HandleChunk(frame []byte) (api.Status, error) {
	var ch api.Chunk
	if err := ch.Unmarshal(frame); err != nil {
		c.metrics.ChunkRejected(metrics.ReasonMalformed)
		return c.Status(), fmt.Errorf("%w: %v", errMalformedRequest, err)
	}
	return c.ApplyChunk(firmware.Chunk{Offset: ch.Offset, Data: ch.Data})
}

// Status reports the current mode and session progress.
func (c *Controller) Status() api.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() api.Status {
	st := api.Status{Mode: api.Mode_APP}
	if c.mode == bootloader.EnterDfu {
		st.Mode = api.Mode_DFU
	}
	if s := c.session; s != nil {
		st.Received = s.Received()
		st.Size = s.Size()
		st.ExpectedCRC = s.ExpectedCRC()
		st.Complete = s.IsComplete()
	}
	return st
}

// Abort discards the active session, if any.
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.discardLocked(errors.New("aborted by host"))
	}
}
