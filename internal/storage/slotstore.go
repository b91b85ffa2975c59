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

package storage

import (
	"fmt"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// Record is the storage a SlotStore persists its contents to, typically a
// *slots.Slot.
type Record interface {
	Read() ([]byte, uint32, error)
	CheckAndWrite(token uint32, p []byte) error
}

// SlotStore is a KV which keeps all of its keys in a single journaled
// record, serialised as a YAML mapping.
type SlotStore struct {
	rec Record
}

// NewSlotStore returns a KV backed by rec.
func NewSlotStore(rec Record) *SlotStore {
	return &SlotStore{rec: rec}
}

func (s *SlotStore) load() (map[string]string, uint32, error) {
	b, token, err := s.rec.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read state record: %v", err)
	}
	m := make(map[string]string)
	if len(b) == 0 {
		return m, token, nil
	}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, 0, fmt.Errorf("failed to decode state record revision %d: %v", token, err)
	}
	return m, token, nil
}

// Read implements KV.
func (s *SlotStore) Read(key string) (string, bool, error) {
	m, _, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// Write implements KV.
func (s *SlotStore) Write(key, value string) error {
	m, token, err := s.load()
	if err != nil {
		return err
	}
	m[key] = value
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode state record: %v", err)
	}
	if err := s.rec.CheckAndWrite(token, b); err != nil {
		return fmt.Errorf("failed to write %q: %v", key, err)
	}
	klog.V(2).Infof("State record revision %d: %s=%q", token+1, key, value)
	return nil
}
