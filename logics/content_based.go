// Copyright 2025 gorse Project Authors
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

package logics

import (
	"github.com/gorse-io/gorse-movies/common/heap"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// ContentBasedFilter ranks items by feature similarity to a query item.
type ContentBasedFilter struct {
	dataset *dataset.Dataset
}

func NewContentBasedFilter(dataset *dataset.Dataset) *ContentBasedFilter {
	return &ContentBasedFilter{dataset: dataset}
}

// Recommend returns at most n items other than itemId by descending similarity. Equal
// similarities are ranked by ascending dense index.
func (cb *ContentBasedFilter) Recommend(itemId string, n int) ([]string, error) {
	movies := cb.dataset.GetMovies()
	itemIndex, ok := movies.Id(itemId)
	if !ok {
		return nil, errors.NotFoundf("movie %s", itemId)
	}
	if n <= 0 {
		return []string{}, nil
	}
	filter := heap.NewTopKFilter[int32, float64](n)
	for j, similarity := range cb.dataset.GetFeatureSimilarity(itemIndex) {
		if int32(j) != itemIndex {
			filter.Push(int32(j), similarity)
		}
	}
	return lo.Map(filter.PopAllValues(), func(j int32, _ int) string {
		name, _ := movies.Name(j)
		return name
	}), nil
}
