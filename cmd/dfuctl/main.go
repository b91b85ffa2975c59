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

// The dfuctl tool uploads firmware to a device, either attached over USB or
// simulated in-process from a device configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/TheJACKedViking/OpenAwair/api"
	"github.com/TheJACKedViking/OpenAwair/firmware"
	"github.com/TheJACKedViking/OpenAwair/internal/config"
	"github.com/TheJACKedViking/OpenAwair/internal/device"
	"github.com/TheJACKedViking/OpenAwair/internal/metrics"
	"github.com/TheJACKedViking/OpenAwair/internal/transport"
	"github.com/TheJACKedViking/OpenAwair/internal/transport/hid"
	"github.com/TheJACKedViking/OpenAwair/internal/transport/loopback"
	"github.com/TheJACKedViking/OpenAwair/upload"
	"github.com/cheggaaa/pb/v3"
	"github.com/coreos/go-semver/semver"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

type Config struct {
	configFile string
	sim        bool

	status    bool
	abort     bool
	arm       bool
	image     string
	chunkSize int
	noBar     bool
	version   string

	metricsFile string
}

func flags(fs *flag.FlagSet) *Config {
	c := &Config{}
	fs.StringVar(&c.configFile, "config", "", "Device configuration YAML file, used with -sim.")
	fs.BoolVar(&c.sim, "sim", false, "Talk to an in-process simulated device instead of USB.")
	fs.BoolVar(&c.status, "status", false, "Print the device's DFU status.")
	fs.BoolVar(&c.abort, "abort", false, "Abort the device's DFU session.")
	fs.BoolVar(&c.arm, "arm", false, "Arm the simulated device for the -upload image before uploading.")
	fs.StringVar(&c.image, "upload", "", "Firmware image file to upload.")
	fs.IntVar(&c.chunkSize, "chunk_size", 0, "Bytes per chunk, 0 for the configured default.")
	fs.BoolVar(&c.noBar, "no_progress", false, "Do not draw a progress bar.")
	fs.StringVar(&c.version, "version", "", "Semantic version of the -upload image, recorded by the simulated device.")
	fs.StringVar(&c.metricsFile, "metrics_file", "", "Write the simulated device's metrics to this file in Prometheus text format on exit.")
	return c
}

func main() {
	klog.InitFlags(nil)
	conf := flags(flag.CommandLine)
	flag.Parse()

	if flag.NFlag() == 0 {
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := run(context.Background(), conf, os.Stdout); err != nil {
		klog.Exitf("fatal error, %v", err)
	}
}

// simulator is an in-process device built from a configuration.
type simulator struct {
	dev     *config.Device
	backend *config.Backend
	ctrl    *device.Controller
	reg     *prometheus.Registry
}

func newSimulator(d *config.Device, release *semver.Version) (*simulator, error) {
	be, err := d.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open simulated device storage: %v", err)
	}
	m := metrics.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		be.Close()
		return nil, fmt.Errorf("failed to register metrics: %v", err)
	}
	opts := []device.Option{device.WithMetrics(m)}
	if be.Installer != nil {
		opts = append(opts, device.WithInstaller(be.Installer))
	}
	if release != nil {
		opts = append(opts, device.WithRelease(*release))
	}
	return &simulator{
		dev:     d,
		backend: be,
		ctrl:    device.New(d.Bootloader(be), opts...),
		reg:     reg,
	}, nil
}

// boot powers the simulated device on. A device which cannot enter DFU mode
// is still usable for status requests.
func (s *simulator) boot() {
	d, err := s.ctrl.Boot()
	if err != nil {
		klog.Warningf("Simulated device boot: %v", err)
	}
	klog.Infof("Simulated device booted: %v", d)
}

// writeMetrics dumps the simulated device's metrics to path.
func (s *simulator) writeMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, s.reg); err != nil {
		return fmt.Errorf("failed to write metrics: %v", err)
	}
	klog.V(1).Infof("Wrote metrics to %q", path)
	return nil
}

func run(ctx context.Context, conf *Config, out io.Writer) (retErr error) {
	d := config.Default()
	if conf.configFile != "" {
		var err error
		if d, err = config.LoadConfig(conf.configFile); err != nil {
			return err
		}
	}
	chunkSize := d.ChunkSize
	if conf.chunkSize > 0 {
		chunkSize = conf.chunkSize
	}

	var image []byte
	if conf.image != "" {
		var err error
		if image, err = os.ReadFile(conf.image); err != nil {
			return fmt.Errorf("failed to read firmware image: %v", err)
		}
	}

	var release *semver.Version
	if conf.version != "" {
		var err error
		if release, err = semver.NewVersion(conf.version); err != nil {
			return fmt.Errorf("invalid -version: %v", err)
		}
	}

	var c transport.Commander
	if conf.sim {
		sim, err := newSimulator(d, release)
		if err != nil {
			return err
		}
		defer sim.backend.Close()
		if conf.metricsFile != "" {
			defer func() {
				if err := sim.writeMetrics(conf.metricsFile); err != nil && retErr == nil {
					retErr = err
				}
			}()
		}
		if conf.arm {
			if image == nil {
				return errors.New("-arm requires -upload")
			}
			fw := firmware.NewImage(image)
			if err := sim.dev.Bootloader(sim.backend).Arm(fw.CRC, fw.Size()); err != nil {
				return err
			}
		}
		sim.boot()
		c = loopback.New(sim.ctrl)
	} else {
		if conf.metricsFile != "" {
			return errors.New("-metrics_file is only supported with -sim")
		}
		if conf.arm {
			return errors.New("-arm is only supported with -sim, use fwimage -arm to arm a device store")
		}
		dev, err := hid.Detect()
		if err != nil {
			return err
		}
		defer dev.Close()
		c = dev
	}

	if conf.abort {
		if err := transport.Abort(c); err != nil {
			return fmt.Errorf("abort failed: %w", err)
		}
	}
	if image != nil {
		if err := uploadImage(ctx, c, image, chunkSize, !conf.noBar, out); err != nil {
			return err
		}
	}
	if conf.status {
		s, err := transport.Status(c)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		fmt.Fprintln(out, s.Print())
	}
	return nil
}

func uploadImage(ctx context.Context, c transport.Commander, image []byte, chunkSize int, bar bool, out io.Writer) error {
	if chunkSize > api.MaxChunkSize {
		return fmt.Errorf("chunk size %d exceeds maximum of %d", chunkSize, api.MaxChunkSize)
	}
	w := transport.NewChunkWriter(c)
	u := upload.New(w, upload.WithChunkSize(chunkSize))
	klog.V(1).Infof("Uploading %d bytes in chunks of %d", len(image), u.ChunkSize())

	var onProgress upload.ProgressCallback
	if bar {
		pbar := pb.Full.New(len(image))
		pbar.SetWriter(out)
		pbar.Set(pb.Bytes, true)
		pbar.Start()
		defer pbar.Finish()
		onProgress = func(p upload.Progress) {
			pbar.SetCurrent(int64(p.SentBytes))
		}
	}

	crc, err := u.Upload(ctx, image, onProgress)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	st := w.LastStatus()
	klog.Infof("Uploaded %d bytes, crc 0x%08x, device received %d/%d", len(image), crc, st.Received, st.Size)
	return nil
}
