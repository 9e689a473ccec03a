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
	"unicode/utf8"

	"github.com/juju/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Message is a wire message of recommendation.proto.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal(b []byte) error
}

type RecommendationRequest struct {
	UserId string
	N      int32
}

func (x *RecommendationRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

func (x *RecommendationRequest) GetN() int32 {
	if x != nil {
		return x.N
	}
	return 0
}

func (x *RecommendationRequest) Marshal() ([]byte, error) {
	if !utf8.ValidString(x.UserId) {
		return nil, errors.NotValidf("user_id with invalid UTF-8")
	}
	var b []byte
	b = appendString(b, 1, x.UserId)
	b = appendInt32(b, 2, x.N)
	return b, nil
}

func (x *RecommendationRequest) Unmarshal(b []byte) error {
	*x = RecommendationRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			var (
				n   int
				err error
			)
			x.UserId, n, err = consumeString(num, b)
			return n, err
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			x.N = int32(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

type ItemRecommendationRequest struct {
	MovieId string
	N       int32
}

func (x *ItemRecommendationRequest) GetMovieId() string {
	if x != nil {
		return x.MovieId
	}
	return ""
}

func (x *ItemRecommendationRequest) GetN() int32 {
	if x != nil {
		return x.N
	}
	return 0
}

func (x *ItemRecommendationRequest) Marshal() ([]byte, error) {
	if !utf8.ValidString(x.MovieId) {
		return nil, errors.NotValidf("movie_id with invalid UTF-8")
	}
	var b []byte
	b = appendString(b, 1, x.MovieId)
	b = appendInt32(b, 2, x.N)
	return b, nil
}

func (x *ItemRecommendationRequest) Unmarshal(b []byte) error {
	*x = ItemRecommendationRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			var (
				n   int
				err error
			)
			x.MovieId, n, err = consumeString(num, b)
			return n, err
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			x.N = int32(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

type RecommendationResponse struct {
	MovieIds []string
}

func (x *RecommendationResponse) GetMovieIds() []string {
	if x != nil {
		return x.MovieIds
	}
	return nil
}

func (x *RecommendationResponse) Marshal() ([]byte, error) {
	var b []byte
	for _, movieId := range x.MovieIds {
		if !utf8.ValidString(movieId) {
			return nil, errors.NotValidf("movie_ids with invalid UTF-8")
		}
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, movieId)
	}
	return b, nil
}

func (x *RecommendationResponse) Unmarshal(b []byte) error {
	*x = RecommendationResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			movieId, n, err := consumeString(num, b)
			if n >= 0 && err == nil {
				x.MovieIds = append(x.MovieIds, movieId)
			}
			return n, err
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// appendString appends a non-default string field.
func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// appendInt32 appends a non-default int32 field. Negative values are sign extended.
func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// consumeString consumes a string field value, which must be valid UTF-8.
func consumeString(num protowire.Number, b []byte) (string, int, error) {
	v, n := protowire.ConsumeString(b)
	if n >= 0 && !utf8.ValidString(v) {
		return "", n, errors.NotValidf("field %d with invalid UTF-8", num)
	}
	return v, n, nil
}

// consumeFields walks the fields of b. consume returns the length of the field value
// or a negative protowire error code.
func consumeFields(b []byte, consume func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := consume(num, typ, b)
		if err != nil {
			return errors.Trace(err)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
