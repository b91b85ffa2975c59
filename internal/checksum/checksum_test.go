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

package checksum

import (
	"hash/crc32"
	"testing"
)

func TestSum(t *testing.T) {
	for _, test := range []struct {
		name string
		data []byte
		want uint32
	}{
		{
			name: "empty",
			data: []byte{},
			want: 0,
		}, {
			name: "nil",
			want: 0,
		}, {
			name: "known vector",
			data: []byte{1, 2, 3, 4, 5},
			want: 0x470b99f4,
		}, {
			name: "check string",
			data: []byte("123456789"),
			want: 0xcbf43926,
		}, {
			name: "single zero",
			data: []byte{0},
			want: 0xd202ef8d,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := Sum(test.data); got != test.want {
				t.Fatalf("Sum(%x) = 0x%08x, want 0x%08x", test.data, got, test.want)
			}
		})
	}
}

func TestSumDeterministic(t *testing.T) {
	b := make([]byte, 4096)
	for i := range b {
		b[i] = byte(i * 7)
	}
	first := Sum(b)
	for i := 0; i < 10; i++ {
		if got := Sum(b); got != first {
			t.Fatalf("Sum changed between calls: 0x%08x != 0x%08x", got, first)
		}
	}
}

func TestMatchesIEEE(t *testing.T) {
	for n := 0; n < 300; n += 17 {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(i*31 + n)
		}
		if got, want := Sum(b), crc32.ChecksumIEEE(b); got != want {
			t.Errorf("len %d: Sum = 0x%08x, IEEE = 0x%08x", n, got, want)
		}
	}
}

func TestUpdateIncremental(t *testing.T) {
	b := []byte("firmware image split across several chunks")
	want := Sum(b)
	for split := 0; split <= len(b); split++ {
		got := Update(Update(0, b[:split]), b[split:])
		if got != want {
			t.Fatalf("split at %d: got 0x%08x, want 0x%08x", split, got, want)
		}
	}
}

func TestTable(t *testing.T) {
	if got, want := table[0], uint32(0); got != want {
		t.Errorf("table[0] = 0x%08x, want 0x%08x", got, want)
	}
	if got, want := table[1], uint32(0x77073096); got != want {
		t.Errorf("table[1] = 0x%08x, want 0x%08x", got, want)
	}
	if got, want := table[255], uint32(0x2d02ef8d); got != want {
		t.Errorf("table[255] = 0x%08x, want 0x%08x", got, want)
	}
}

func BenchmarkSum(b *testing.B) {
	data := make([]byte, 64<<10)
	for i := range data {
		data[i] = byte(i)
	}
	b.SetBytes(int64(len(data)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Sum(data)
	}
}
