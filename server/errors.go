// Copyright 2020 gorse Project Authors
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

package server

import (
	"net/http"

	"github.com/juju/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ErrNotServing  = errors.ConstError("service is not serving")
	ErrRateLimited = errors.ConstError("rate limit exceeded")
)

// toStatus converts an error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(grpcCode(err), err.Error())
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, errors.NotValid):
		return codes.InvalidArgument
	case errors.Is(err, errors.NotFound):
		return codes.NotFound
	case errors.Is(err, ErrNotServing):
		return codes.Unavailable
	case errors.Is(err, ErrRateLimited):
		return codes.ResourceExhausted
	default:
		return codes.Unknown
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, errors.NotValid):
		return http.StatusBadRequest
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotServing):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
