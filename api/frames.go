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

package api

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Bytes serializes an API message.
func (p *Chunk) Bytes() []byte {
	var b []byte
	if p.Offset != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Offset))
	}
	if len(p.Data) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Data)
	}
	return b
}

// Unmarshal decodes b into p. Data aliases b.
func (p *Chunk) Unmarshal(b []byte) error {
	*p = Chunk{}
	return consumeFields(b, chunkFields, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case 1:
			if v > 0xffffffff {
				return fmt.Errorf("chunk offset %d overflows uint32", v)
			}
			p.Offset = uint32(v)
		case 2:
			p.Data = raw
		}
		return nil
	})
}

// Bytes serializes an API message.
func (p *Status) Bytes() []byte {
	var b []byte
	for _, f := range []struct {
		num protowire.Number
		v   uint64
	}{
		{1, uint64(p.Mode)},
		{2, p.Received},
		{3, uint64(p.Size)},
		{4, uint64(p.ExpectedCRC)},
		{5, protowire.EncodeBool(p.Complete)},
	} {
		if f.v == 0 {
			continue
		}
		b = protowire.AppendTag(b, f.num, protowire.VarintType)
		b = protowire.AppendVarint(b, f.v)
	}
	return b
}

// Unmarshal decodes b into p.
func (p *Status) Unmarshal(b []byte) error {
	*p = Status{}
	return consumeFields(b, statusFields, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			p.Mode = Mode(int32(v))
		case 2:
			p.Received = v
		case 3:
			p.Size = uint32(v)
		case 4:
			p.ExpectedCRC = uint32(v)
		case 5:
			p.Complete = protowire.DecodeBool(v)
		}
		return nil
	})
}

// Bytes serializes an API message.
func (p *Response) Bytes() []byte {
	var b []byte
	if p.Error != ErrorCode_NONE {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Error))
	}
	if len(p.Payload) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Payload)
	}
	return b
}

// Unmarshal decodes b into p. Payload aliases b.
func (p *Response) Unmarshal(b []byte) error {
	*p = Response{}
	return consumeFields(b, responseFields, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case 1:
			p.Error = ErrorCode(int32(v))
		case 2:
			p.Payload = raw
		}
		return nil
	})
}

// Err returns nil if the response reports success, or an error carrying the
// code and message otherwise.
func (p *Response) Err() error {
	if p.Error == ErrorCode_NONE {
		return nil
	}
	return &ResponseError{Code: p.Error, Message: string(p.Payload)}
}

// ResponseError is a failure reported by the device.
type ResponseError struct {
	Code    ErrorCode
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("device error %v: %s", e.Code, e.Message)
}

var errWireType = errors.New("unexpected wire type")

// Wire types of the known fields of each message.
var (
	chunkFields = map[protowire.Number]protowire.Type{
		1: protowire.VarintType,
		2: protowire.BytesType,
	}
	statusFields = map[protowire.Number]protowire.Type{
		1: protowire.VarintType,
		2: protowire.VarintType,
		3: protowire.VarintType,
		4: protowire.VarintType,
		5: protowire.VarintType,
	}
	responseFields = map[protowire.Number]protowire.Type{
		1: protowire.VarintType,
		2: protowire.BytesType,
	}
)

// consumeFields walks the fields of a message, calling fn with the value of
// each varint field or the contents of each length-delimited field. A known
// field arriving with a wire type other than the one in known is an error.
// Unknown fields are skipped.
func consumeFields(b []byte, known map[protowire.Number]protowire.Type, fn func(num protowire.Number, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if want, ok := known[num]; ok && want != typ {
			return fmt.Errorf("field %d: %w %d, want %d", num, errWireType, typ, want)
		}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, 0, v); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("field %d: %w: %v", num, errWireType, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
