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
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	for _, nWorkers := range []int{0, 1, 4} {
		a := lo.Range(1000)
		b := make([]int, len(a))
		var running, peak atomic.Int32
		err := Parallel(context.Background(), len(a), nWorkers, func(_ context.Context, jobId int) error {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			b[jobId] = a[jobId]
			time.Sleep(time.Microsecond)
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, a, b)
		assert.LessOrEqual(t, int(peak.Load()), max(nWorkers, 1))
	}
}

func TestParallelError(t *testing.T) {
	for _, nWorkers := range []int{1, 4} {
		var count atomic.Int32
		err := Parallel(context.Background(), 100, nWorkers, func(ctx context.Context, jobId int) error {
			count.Add(1)
			if jobId == 42 {
				return errors.New("job 42 failed")
			}
			return nil
		})
		assert.ErrorContains(t, err, "job 42 failed")
		assert.Less(t, int(count.Load()), 100)
	}
}

func TestParallelPanic(t *testing.T) {
	err := Parallel(context.Background(), 4, 2, func(_ context.Context, jobId int) error {
		if jobId == 1 {
			panic("boom")
		}
		return nil
	})
	assert.ErrorContains(t, err, "job 1: panic: boom")
}

func TestParallelCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int32
	err := Parallel(ctx, 1000, 4, func(_ context.Context, jobId int) error {
		if jobId == 0 {
			cancel()
		}
		count.Add(1)
		time.Sleep(100 * time.Microsecond)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, int(count.Load()), 1000)
}
