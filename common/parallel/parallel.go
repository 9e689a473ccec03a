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

	"github.com/gorse-io/gorse-movies/common/util"
	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"
)

// Parallel runs jobs 0 to nJobs-1 on at most nWorkers goroutines. The first failed or
// panicking job cancels the context passed to the others and stops scheduling; its error
// is returned. Cancelling ctx stops scheduling as well.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(ctx context.Context, jobId int) error) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(nWorkers, 1))
	for jobId := range nJobs {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return runJob(groupCtx, worker, jobId)
		})
	}
	if err := group.Wait(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ctx.Err())
}

func runJob(ctx context.Context, worker func(ctx context.Context, jobId int) error, jobId int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Annotatef(util.PanicError(r), "job %d", jobId)
		}
	}()
	return worker(ctx, jobId)
}
