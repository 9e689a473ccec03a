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
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/mem"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestRecommendationRequestWire(t *testing.T) {
	// user_id = "42", n = 5
	expected := []byte{0x0a, 0x02, '4', '2', 0x10, 0x05}
	b, err := (&RecommendationRequest{UserId: "42", N: 5}).Marshal()
	assert.NoError(t, err)
	assert.Equal(t, expected, b)

	var req RecommendationRequest
	assert.NoError(t, req.Unmarshal(expected))
	assert.Equal(t, RecommendationRequest{UserId: "42", N: 5}, req)

	// defaults are omitted
	b, err = (&RecommendationRequest{}).Marshal()
	assert.NoError(t, err)
	assert.Empty(t, b)
}

func TestNegativeN(t *testing.T) {
	b, err := (&ItemRecommendationRequest{MovieId: "1", N: -1}).Marshal()
	assert.NoError(t, err)
	// negative int32 occupies ten bytes on the wire
	assert.Len(t, b, 3+1+10)
	var req ItemRecommendationRequest
	assert.NoError(t, req.Unmarshal(b))
	assert.Equal(t, int32(-1), req.GetN())
	assert.Equal(t, "1", req.GetMovieId())
}

func TestUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 7, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 123)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "3")
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "1")
	var resp RecommendationResponse
	assert.NoError(t, resp.Unmarshal(b))
	assert.Equal(t, []string{"3", "1"}, resp.GetMovieIds())
}

func TestTruncated(t *testing.T) {
	b, err := (&RecommendationResponse{MovieIds: []string{"1", "2"}}).Marshal()
	assert.NoError(t, err)
	var resp RecommendationResponse
	assert.Error(t, resp.Unmarshal(b[:len(b)-1]))
}

func TestInvalidUTF8(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "\xff")
	var req RecommendationRequest
	assert.True(t, errors.Is(req.Unmarshal(b), errors.NotValid))
	var itemReq ItemRecommendationRequest
	assert.True(t, errors.Is(itemReq.Unmarshal(b), errors.NotValid))
	var resp RecommendationResponse
	assert.True(t, errors.Is(resp.Unmarshal(b), errors.NotValid))

	_, err := (&RecommendationRequest{UserId: "\xff"}).Marshal()
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = (&ItemRecommendationRequest{MovieId: "\xff"}).Marshal()
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = (&RecommendationResponse{MovieIds: []string{"1", "\xff"}}).Marshal()
	assert.True(t, errors.Is(err, errors.NotValid))

	// multi-byte identifiers survive
	b, err = (&RecommendationRequest{UserId: "ユーザー"}).Marshal()
	assert.NoError(t, err)
	assert.NoError(t, req.Unmarshal(b))
	assert.Equal(t, "ユーザー", req.GetUserId())
}

func TestNilGetters(t *testing.T) {
	var req *RecommendationRequest
	assert.Empty(t, req.GetUserId())
	assert.Zero(t, req.GetN())
	var itemReq *ItemRecommendationRequest
	assert.Empty(t, itemReq.GetMovieId())
	var resp *RecommendationResponse
	assert.Nil(t, resp.GetMovieIds())
}

func TestCodec(t *testing.T) {
	c := encoding.GetCodecV2("proto")
	assert.IsType(t, &codec{}, c)

	// recommendation messages
	data, err := c.Marshal(&RecommendationResponse{MovieIds: []string{"1", "2"}})
	assert.NoError(t, err)
	var resp RecommendationResponse
	assert.NoError(t, c.Unmarshal(data, &resp))
	assert.Equal(t, []string{"1", "2"}, resp.MovieIds)

	// generated protobuf messages
	data, err = c.Marshal(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
	assert.NoError(t, err)
	var health grpc_health_v1.HealthCheckResponse
	assert.NoError(t, c.Unmarshal(data, &health))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, health.GetStatus())

	// split buffers
	b, err := (&RecommendationRequest{UserId: "12345", N: 3}).Marshal()
	assert.NoError(t, err)
	var req RecommendationRequest
	assert.NoError(t, c.Unmarshal(mem.BufferSlice{mem.SliceBuffer(b[:3]), mem.SliceBuffer(b[3:])}, &req))
	assert.Equal(t, "12345", req.UserId)

	// unsupported type
	_, err = c.Marshal(42)
	assert.Error(t, err)
}
