// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import (
	"github.com/juju/errors"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/encoding/proto"
	"google.golang.org/grpc/mem"
)

// codec encodes messages of recommendation.proto and hands every other message, such
// as health checks, to the default protobuf codec.
type codec struct {
	fallback encoding.CodecV2
}

func init() {
	encoding.RegisterCodecV2(&codec{fallback: encoding.GetCodecV2(proto.Name)})
}

func (c *codec) Marshal(v any) (mem.BufferSlice, error) {
	if m, ok := v.(Message); ok {
		b, err := m.Marshal()
		if err != nil {
			return nil, errors.Trace(err)
		}
		return mem.BufferSlice{mem.SliceBuffer(b)}, nil
	}
	if c.fallback == nil {
		return nil, errors.Errorf("failed to marshal, message is %T, want protocol.Message", v)
	}
	return c.fallback.Marshal(v)
}

func (c *codec) Unmarshal(data mem.BufferSlice, v any) error {
	if m, ok := v.(Message); ok {
		buf := data.MaterializeToBuffer(mem.DefaultBufferPool())
		defer buf.Free()
		return m.Unmarshal(buf.ReadOnlyData())
	}
	if c.fallback == nil {
		return errors.Errorf("failed to unmarshal, message is %T, want protocol.Message", v)
	}
	return c.fallback.Unmarshal(data, v)
}

func (c *codec) Name() string {
	return proto.Name
}
