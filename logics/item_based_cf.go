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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/gorse-movies/common/heap"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// ItemBasedCF scores every item by the rating-weighted sum of its similarity to the
// items a user rated.
type ItemBasedCF struct {
	dataset *dataset.Dataset
}

func NewItemBasedCF(dataset *dataset.Dataset) *ItemBasedCF {
	return &ItemBasedCF{dataset: dataset}
}

// Recommend returns at most n unrated items by descending score. Equal scores are
// ranked by ascending item identifier.
func (cf *ItemBasedCF) Recommend(userId string, n int) ([]string, error) {
	ratings, err := cf.dataset.GetUserRatings(userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if n <= 0 || len(ratings) == 0 {
		return []string{}, nil
	}

	items := cf.dataset.GetItems()
	scores := make([]float64, items.Len())
	rated := mapset.NewThreadUnsafeSet[int32]()
	// ratings are sorted, so the summation order is fixed
	for _, rating := range ratings {
		itemIndex, ok := items.Id(rating.ItemId)
		if !ok {
			continue
		}
		rated.Add(itemIndex)
		for j, similarity := range cf.dataset.GetItemSimilarity(itemIndex) {
			scores[j] += rating.Value * similarity
		}
	}

	// item indices follow identifier order, so index ties break by identifier
	filter := heap.NewTopKFilter[int32, float64](n)
	for j, score := range scores {
		if !rated.Contains(int32(j)) {
			filter.Push(int32(j), score)
		}
	}
	return lo.Map(filter.PopAllValues(), func(itemIndex int32, _ int) string {
		name, _ := items.Name(itemIndex)
		return name
	}), nil
}
