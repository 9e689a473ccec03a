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

package parallel

import (
	"time"

	"github.com/juju/ratelimit"
)

type RateLimiter interface {
	TakeAvailable(count int64) int64
}

// NewRateLimiter creates a token bucket refilled with rps tokens every second. A
// non-positive rps disables limiting.
func NewRateLimiter(rps int) RateLimiter {
	if rps <= 0 {
		return &Unlimited{}
	}
	return ratelimit.NewBucketWithQuantum(time.Second, int64(rps), int64(rps))
}

type Unlimited struct{}

func (n *Unlimited) TakeAvailable(count int64) int64 {
	return count
}
