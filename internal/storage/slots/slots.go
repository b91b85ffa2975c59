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

// Package slots divides a region of block storage into independently
// journaled slots. The device keeps its boot state in one slot and the last
// installed firmware image in another.
package slots

import (
	"errors"
	"fmt"
	"sync"

	"k8s.io/klog/v2"
)

// BlockReaderWriter is the block device a partition lives on.
type BlockReaderWriter interface {
	// BlockSize returns the size in bytes of each block.
	BlockSize() uint
	// ReadBlocks reads len(b) bytes starting at block lba. len(b) must be a
	// multiple of BlockSize.
	ReadBlocks(lba uint, b []byte) error
	// WriteBlocks writes b starting at block lba, padding the final block
	// with zeroes, and returns the number of blocks written.
	WriteBlocks(lba uint, b []byte) (uint, error)
}

// Geometry describes the physical layout of a Partition and its slots on the
// underlying storage.
type Geometry struct {
	// Start identifies the address of first block which is part of a partition.
	Start uint
	// Length is the number of blocks covered by this partition.
	// i.e. [Start, Start+Length) is the range of blocks covered by this partition.
	Length uint
	// SlotLengths is an ordered list containing the lengths of the slot(s)
	// allocated within this partition.
	// Changing these once data has been written will make it unreadable.
	SlotLengths []uint
}

// Validate checks that the geometry is self-consistent.
func (g Geometry) Validate() error {
	t := uint(0)
	for i, l := range g.SlotLengths {
		if l == 0 {
			return fmt.Errorf("invalid geometry: slot %d has zero length", i)
		}
		t += l
	}
	if t > g.Length {
		return fmt.Errorf("invalid geometry: total slot length (%d blocks) exceeds overall length (%d blocks)", t, g.Length)
	}
	return nil
}

// Partition describes the extent and layout of a single contiguous region of
// underlying block storage.
type Partition struct {
	dev   BlockReaderWriter
	slots []Slot
}

// OpenPartition returns a partition struct for accessing the slots described by the given
// geometry using the provided read/write methods.
func OpenPartition(rw BlockReaderWriter, geo Geometry) (*Partition, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}

	ret := &Partition{
		dev:   rw,
		slots: make([]Slot, len(geo.SlotLengths)),
	}

	b := geo.Start
	for i, l := range geo.SlotLengths {
		ret.slots[i].start = b
		ret.slots[i].length = l
		b += l
	}

	return ret, nil
}

// Erase destroys the data stored in all slots configured in this partition.
func (p *Partition) Erase() error {
	klog.Info("Erasing partition")
	failed := false
	for i := range p.slots {
		if err := p.eraseSlot(i); err != nil {
			klog.Warningf("Failed to erase slot %d: %v", i, err)
			failed = true
		}
	}
	if failed {
		return errors.New("failed to erase one or more slots in partition")
	}
	return nil
}

func (p *Partition) eraseSlot(i int) error {
	s := &p.slots[i]
	s.mu.Lock()
	defer s.mu.Unlock()

	// The journal is stale once its blocks are gone.
	s.journal = nil

	klog.Infof("Erasing slot %d @ block %d len %d blocks", i, s.start, s.length)
	b := make([]byte, s.length*p.dev.BlockSize())
	if _, err := p.dev.WriteBlocks(s.start, b); err != nil {
		return fmt.Errorf("slot %d occupying blocks [%d, %d): %v", i, s.start, s.start+s.length, err)
	}
	return nil
}

// Open opens the specified slot, returns an error if the slot is out of bounds
// or its journal cannot be read.
func (p *Partition) Open(slot uint) (*Slot, error) {
	if l := uint(len(p.slots)); slot >= l {
		return nil, fmt.Errorf("invalid slot %d (partition has %d slots)", slot, l)
	}
	s := &p.slots[slot]
	klog.V(2).Infof("Opening slot %d", slot)
	if err := s.open(p.dev); err != nil {
		return nil, fmt.Errorf("slot %d: %v", slot, err)
	}
	return s, nil
}

// NumSlots returns the number of slots configured in this partition.
func (p *Partition) NumSlots() int {
	return len(p.slots)
}

// Slot holds the most recent record written to a region of the partition.
type Slot struct {
	mu sync.RWMutex

	// [start, start+length) are the blocks assigned to this slot.
	start, length uint

	// journal is nil until the slot is first opened.
	journal *Journal
}

func (s *Slot) open(dev BlockReaderWriter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal != nil {
		return nil
	}
	j, err := OpenJournal(dev, s.start, s.length)
	if err != nil {
		return fmt.Errorf("failed to open journal: %v", err)
	}
	s.journal = j
	return nil
}

// Capacity returns the largest record, in bytes, the slot can hold.
func (s *Slot) Capacity() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal.Capacity()
}

// Read returns the last data successfully written to the slot, along with a
// token which can be used with CheckAndWrite.
func (s *Slot) Read() ([]byte, uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal.current.Data, s.journal.current.Revision, nil
}

// Write replaces the contents of the slot.
// If the call fails, future calls to Read will return the previous
// successfully written data, if any.
func (s *Slot) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Update(p)
}

// CheckAndWrite behaves like Write, except that it fails if the slot has been
// written to since the Read call which produced token.
func (s *Slot) CheckAndWrite(token uint32, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal.current.Revision != token {
		return errors.New("invalid token, slot updated since then")
	}
	return s.journal.Update(p)
}
