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

package upload

import "k8s.io/klog/v2"

// DefaultChunkSize is the number of bytes sent per chunk unless overridden.
const DefaultChunkSize = 128

// Logger is an optional logging interface, allowing the uploader to be
// embedded in hosts with their own logging framework.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// klogLogger is used when no Logger is configured.
type klogLogger struct{}

func (klogLogger) Debug(msg string, kv ...interface{}) { klog.V(2).InfoS(msg, kv...) }
func (klogLogger) Info(msg string, kv ...interface{})  { klog.InfoS(msg, kv...) }
func (klogLogger) Error(msg string, kv ...interface{}) { klog.ErrorS(nil, msg, kv...) }

// Config holds the uploader configuration.
type Config struct {
	// ChunkSize is the largest number of bytes written per chunk.
	ChunkSize int

	// Logger is used for logging operations (optional)
	Logger Logger
}

func defaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		Logger:    klogLogger{},
	}
}

// Option is a functional option for configuring the Uploader.
type Option func(*Config)

// WithChunkSize sets the maximum chunk size. Values below one are ignored.
//
// Example:
//
//	u := upload.New(transport, upload.WithChunkSize(512))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithLogger sets a logger for upload operations. A nil logger is ignored.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
