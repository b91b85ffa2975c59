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

package hid

import (
	"testing"

	flynn_hid "github.com/flynn/hid"

	"github.com/TheJACKedViking/OpenAwair/api"
)

func TestMatches(t *testing.T) {
	for _, test := range []struct {
		name string
		info flynn_hid.DeviceInfo
		want bool
	}{
		{
			name: "dfu interface",
			info: flynn_hid.DeviceInfo{UsagePage: api.HIDUsagePage, VendorID: api.VendorID, ProductID: api.ProductID},
			want: true,
		}, {
			name: "fido interface of same device",
			info: flynn_hid.DeviceInfo{UsagePage: 0xf1d0, VendorID: api.VendorID, ProductID: api.ProductID},
		}, {
			name: "other vendor",
			info: flynn_hid.DeviceInfo{UsagePage: api.HIDUsagePage, VendorID: 0x1050, ProductID: api.ProductID},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := matches(&test.info); got != test.want {
				t.Fatalf("matches() = %v, want %v", got, test.want)
			}
		})
	}
}
