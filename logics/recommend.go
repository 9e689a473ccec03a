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
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/juju/errors"
)

const (
	Collaborative = "collaborative"
	ContentBased  = "content-based"
)

// RecommenderFunc ranks at most n items for a user or item identifier.
type RecommenderFunc func(id string, n int) ([]string, error)

// Recommender serves both scorers over one snapshot. It is safe for concurrent use.
type Recommender struct {
	collaborative *ItemBasedCF
	contentBased  *ContentBasedFilter
}

func NewRecommender(dataset *dataset.Dataset) *Recommender {
	return &Recommender{
		collaborative: NewItemBasedCF(dataset),
		contentBased:  NewContentBasedFilter(dataset),
	}
}

func (r *Recommender) Parse(name string) (RecommenderFunc, error) {
	switch name {
	case Collaborative:
		return r.collaborative.Recommend, nil
	case ContentBased:
		return r.contentBased.Recommend, nil
	default:
		return nil, errors.NotSupportedf("recommender %s", name)
	}
}

// RecommendForUser ranks items the user has not rated.
func (r *Recommender) RecommendForUser(userId string, n int) ([]string, error) {
	return r.collaborative.Recommend(userId, n)
}

// RecommendForItem ranks items similar to the given item.
func (r *Recommender) RecommendForItem(itemId string, n int) ([]string, error) {
	return r.contentBased.Recommend(itemId, n)
}
