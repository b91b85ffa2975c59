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

package slots

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/TheJACKedViking/OpenAwair/internal/checksum"
	"k8s.io/klog/v2"
)

// On-storage record layout, all integers big-endian:
//
//	magic[4] | revision[4] | length[4] | crc32(data)[4] | data[length]
const (
	headerSize = 16
)

var journalMagic = []byte("OAJ1")

// Entry is a single record in a journal.
type Entry struct {
	// Revision increases by one with every successful update; zero means the
	// journal has never been written.
	Revision uint32
	Data     []byte
}

// Journal stores a single record in a run of blocks.
//
// When at least two blocks are available the run is split into two copies
// and updates alternate between them, so a torn write leaves the previous
// record intact.
type Journal struct {
	dev   BlockReaderWriter
	start uint
	// copyLen is the number of blocks in each copy.
	copyLen uint
	copies  uint

	current Entry
	// next is the copy the next update will be written to.
	next uint
}

// OpenJournal reads the journal stored in blocks [start, start+length).
// Copies which are blank or fail their checksum are ignored.
func OpenJournal(dev BlockReaderWriter, start, length uint) (*Journal, error) {
	if length == 0 {
		return nil, fmt.Errorf("journal at block %d has zero length", start)
	}
	j := &Journal{
		dev:     dev,
		start:   start,
		copies:  1,
		copyLen: length,
	}
	if length >= 2 {
		j.copies = 2
		j.copyLen = length / 2
	}

	found := -1
	for i := uint(0); i < j.copies; i++ {
		e, err := j.readCopy(i)
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		if found < 0 || e.Revision > j.current.Revision {
			j.current = *e
			found = int(i)
		}
	}
	if found >= 0 {
		j.next = (uint(found) + 1) % j.copies
		klog.V(2).Infof("Journal @ %d: revision %d from copy %d (%d bytes)", start, j.current.Revision, found, len(j.current.Data))
	}
	return j, nil
}

// Capacity returns the largest record which fits in a single copy.
func (j *Journal) Capacity() uint {
	return j.copyLen*j.dev.BlockSize() - headerSize
}

func (j *Journal) copyStart(i uint) uint {
	return j.start + i*j.copyLen
}

// readCopy returns the entry held in copy i, or nil if it holds no valid
// record.
func (j *Journal) readCopy(i uint) (*Entry, error) {
	bs := j.dev.BlockSize()
	lba := j.copyStart(i)
	first := make([]byte, bs)
	if err := j.dev.ReadBlocks(lba, first); err != nil {
		return nil, fmt.Errorf("read journal header @ block %d: %v", lba, err)
	}
	if !bytes.Equal(first[:len(journalMagic)], journalMagic) {
		return nil, nil
	}
	rev := binary.BigEndian.Uint32(first[4:])
	l := binary.BigEndian.Uint32(first[8:])
	crc := binary.BigEndian.Uint32(first[12:])
	if uint(l) > j.Capacity() {
		klog.Warningf("Journal copy @ block %d claims %d bytes, capacity is %d", lba, l, j.Capacity())
		return nil, nil
	}

	total := headerSize + uint(l)
	buf := first
	if total > bs {
		blocks := (total + bs - 1) / bs
		buf = make([]byte, blocks*bs)
		if err := j.dev.ReadBlocks(lba, buf); err != nil {
			return nil, fmt.Errorf("read journal data @ block %d: %v", lba, err)
		}
	}
	data := buf[headerSize:total]
	if checksum.Sum(data) != crc {
		klog.Warningf("Journal copy @ block %d revision %d failed checksum, ignoring", lba, rev)
		return nil, nil
	}
	return &Entry{Revision: rev, Data: append([]byte(nil), data...)}, nil
}

// Update writes p as the new record. On failure the previous record remains
// current.
func (j *Journal) Update(p []byte) error {
	if l := uint(len(p)); l > j.Capacity() {
		return fmt.Errorf("record of %d bytes exceeds journal capacity of %d bytes", l, j.Capacity())
	}
	rev := j.current.Revision + 1

	buf := make([]byte, headerSize+len(p))
	copy(buf, journalMagic)
	binary.BigEndian.PutUint32(buf[4:], rev)
	binary.BigEndian.PutUint32(buf[8:], uint32(len(p)))
	binary.BigEndian.PutUint32(buf[12:], checksum.Sum(p))
	copy(buf[headerSize:], p)

	lba := j.copyStart(j.next)
	if _, err := j.dev.WriteBlocks(lba, buf); err != nil {
		return fmt.Errorf("write journal @ block %d: %v", lba, err)
	}
	klog.V(2).Infof("Journal @ %d: wrote revision %d to copy %d (%d bytes)", j.start, rev, j.next, len(p))

	j.current = Entry{Revision: rev, Data: append([]byte(nil), p...)}
	j.next = (j.next + 1) % j.copies
	return nil
}
