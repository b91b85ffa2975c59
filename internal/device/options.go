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
	"github.com/TheJACKedViking/OpenAwair/internal/metrics"
	"github.com/coreos/go-semver/semver"
)

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithMetrics records update activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithInstaller sets the installer a verified image is handed to before it
// is committed. Without one, images are committed without being stored.
func WithInstaller(i Installer) Option {
	return func(c *Controller) {
		c.installer = i
	}
}

// WithRelease marks images received by the controller as release v. The
// installed version is recorded on commit, and older releases are refused
// before they are installed.
func WithRelease(v semver.Version) Option {
	return func(c *Controller) {
		c.release = &v
	}
}
