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

// The fwimage tool prints the metadata of a firmware image and can arm a
// device's store to expect it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/TheJACKedViking/OpenAwair/firmware"
	"github.com/TheJACKedViking/OpenAwair/internal/config"
	"github.com/coreos/go-semver/semver"
	"github.com/machinebox/progress"
	"k8s.io/klog/v2"
)

var (
	imageSrc   = flag.String("image", "", "Firmware image file or http(s) URL.")
	configFile = flag.String("config", "", "Device configuration YAML file, used with -arm.")
	arm        = flag.Bool("arm", false, "Arm the configured device store to expect this image.")
	version    = flag.String("version", "", "Semantic version of the image, checked against the installed release when arming.")
	timeout    = flag.Duration("timeout", time.Minute, "Download timeout for URL images.")
)

// Metadata describes a firmware image.
type Metadata struct {
	Source  string `json:"source"`
	Size    uint32 `json:"size"`
	CRC     uint32 `json:"crc"`
	CRCHex  string `json:"crc_hex"`
	Version string `json:"version,omitempty"`
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	ctx := context.Background()

	if *imageSrc == "" {
		klog.Exit("-image is required")
	}
	b, err := fetch(ctx, *imageSrc, *timeout)
	if err != nil {
		klog.Exitf("Failed to fetch %q: %v", *imageSrc, err)
	}
	var ver *semver.Version
	if *version != "" {
		if ver, err = semver.NewVersion(*version); err != nil {
			klog.Exitf("Invalid -version: %v", err)
		}
	}

	img := firmware.NewImage(b)
	md := metadata(*imageSrc, img, ver)
	if *arm {
		d := config.Default()
		if *configFile != "" {
			if d, err = config.LoadConfig(*configFile); err != nil {
				klog.Exit(err)
			}
		}
		if err := armStore(d, img, ver); err != nil {
			klog.Exitf("Failed to arm device store: %v", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(md); err != nil {
		klog.Exitf("Failed to write metadata: %v", err)
	}
}

func metadata(src string, img firmware.Image, ver *semver.Version) Metadata {
	md := Metadata{
		Source: src,
		Size:   img.Size(),
		CRC:    img.CRC,
		CRCHex: fmt.Sprintf("0x%08x", img.CRC),
	}
	if ver != nil {
		md.Version = ver.String()
	}
	return md
}

// armStore records img as the image the device should expect. When ver is
// given it must not be older than the installed release.
func armStore(d *config.Device, img firmware.Image, ver *semver.Version) error {
	if d.Store.Backend == config.BackendMemory {
		return errors.New("the memory backend does not persist, configure sqlite or slots")
	}
	be, err := d.Open()
	if err != nil {
		return err
	}
	defer be.Close()

	b := d.Bootloader(be)
	if ver != nil {
		if err := b.CheckRelease(*ver); err != nil {
			return err
		}
	}
	return b.Arm(img.CRC, img.Size())
}

// fetch reads a local file, or downloads src if it is an http(s) URL.
func fetch(ctx context.Context, src string, timeout time.Duration) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return os.ReadFile(src)
	}
	return readHTTP(ctx, u, timeout)
}

func readHTTP(ctx context.Context, u *url.URL, timeout time.Duration) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	// Clone DefaultClient and set a timeout.
	dc := *http.DefaultClient
	hc := &dc
	hc.Timeout = timeout
	resp, err := hc.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("http.Client.Do(): %v", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			klog.Errorf("resp.Body.Close(): %v", err)
		}
	}()
	switch resp.StatusCode {
	case http.StatusNotFound:
		klog.Infof("Not found: %q", u.String())
		return nil, os.ErrNotExist
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("unexpected http status %q", resp.Status)
	}

	pr := progress.NewReader(resp.Body)
	if resp.ContentLength > 0 {
		tctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			progressChan := progress.NewTicker(tctx, pr, resp.ContentLength, 1*time.Second)
			for p := range progressChan {
				klog.Infof("Downloading %q: %d%%, %v remaining...", u.String(), int(p.Percent()), p.Remaining().Round(time.Second))
			}
		}()
	}
	b, err := io.ReadAll(pr)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %v", u.String(), err)
	}
	klog.Infof("Downloading %q: finished", u.String())
	return b, nil
}
