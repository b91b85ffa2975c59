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

// Package metrics exposes Prometheus metrics for the device side of a
// firmware update.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reasons a chunk may be rejected, used as the "reason" label.
const (
	ReasonOverflow  = "overflow"
	ReasonNoSession = "no_session"
	ReasonMalformed = "malformed"
)

// Metrics holds all DFU Prometheus metrics
type Metrics struct {
	ChunksAccepted prometheus.Counter
	BytesAccepted  prometheus.Counter
	ChunksRejected *prometheus.CounterVec

	VerificationFailures prometheus.Counter
	Commits              prometheus.Counter
	CommitFailures       prometheus.Counter

	// BootDecisions counts boots by the mode chosen.
	BootDecisions *prometheus.CounterVec

	// SessionProgress is the fraction of the expected image received by the
	// active session.
	SessionProgress prometheus.Gauge
}

// NewMetrics creates a new Prometheus metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openawair_dfu_chunks_accepted_total",
			Help: "Total number of firmware chunks applied to a DFU session",
		}),
		BytesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openawair_dfu_bytes_accepted_total",
			Help: "Total number of firmware bytes applied to a DFU session",
		}),
		ChunksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openawair_dfu_chunks_rejected_total",
			Help: "Total number of firmware chunks rejected",
		}, []string{"reason"}),

		VerificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openawair_dfu_verification_failures_total",
			Help: "Total number of completed sessions whose image failed its checksum",
		}),
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openawair_dfu_commits_total",
			Help: "Total number of firmware images installed and committed",
		}),
		CommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openawair_dfu_commit_failures_total",
			Help: "Total number of verified images which could not be installed or committed",
		}),

		BootDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openawair_boot_decisions_total",
			Help: "Total number of boots by selected mode",
		}, []string{"mode"}),

		SessionProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "openawair_dfu_session_progress_ratio",
			Help: "Fraction of the expected image received by the active DFU session",
		}),
	}
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.ChunksAccepted.Describe(ch)
	m.BytesAccepted.Describe(ch)
	m.ChunksRejected.Describe(ch)

	m.VerificationFailures.Describe(ch)
	m.Commits.Describe(ch)
	m.CommitFailures.Describe(ch)

	m.BootDecisions.Describe(ch)
	m.SessionProgress.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.ChunksAccepted.Collect(ch)
	m.BytesAccepted.Collect(ch)
	m.ChunksRejected.Collect(ch)

	m.VerificationFailures.Collect(ch)
	m.Commits.Collect(ch)
	m.CommitFailures.Collect(ch)

	m.BootDecisions.Collect(ch)
	m.SessionProgress.Collect(ch)
}

// Register registers all metrics with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m)
}

// ChunkAccepted records a chunk of n bytes applied to a session.
func (m *Metrics) ChunkAccepted(n int) {
	m.ChunksAccepted.Inc()
	m.BytesAccepted.Add(float64(n))
}

// ChunkRejected records a chunk rejected for reason.
func (m *Metrics) ChunkRejected(reason string) {
	m.ChunksRejected.WithLabelValues(reason).Inc()
}

// Progress records received of size bytes received by the active session.
func (m *Metrics) Progress(received uint64, size uint32) {
	if size == 0 {
		m.SessionProgress.Set(1)
		return
	}
	p := float64(received) / float64(size)
	if p > 1 {
		p = 1
	}
	m.SessionProgress.Set(p)
}
