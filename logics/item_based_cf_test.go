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
	"math/rand"
	"strconv"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemBasedCF(t *testing.T) {
	items := []string{"A", "B", "C", "D"}
	d, err := dataset.NewDataset(
		newTable(items, map[string]map[string]float64{
			"u1": {"A": 5, "B": 3},
			"u2": {},
		}),
		newTable(items, newSymmetric(items, map[[2]string]float64{
			{"A", "C"}: 0.8,
			{"B", "C"}: 0.4,
			{"A", "D"}: 0.1,
		})),
		newIdentity(4), newIndex(items...))
	require.NoError(t, err)
	cf := NewItemBasedCF(d)

	// C scores 5.2 and D scores 0.5
	result, err := cf.Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, result)
	result, err = cf.Recommend("u1", 1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"C"}, result)

	// user without ratings
	result, err = cf.Recommend("u2", 10)
	assert.NoError(t, err)
	assert.Empty(t, result)

	// non-positive n
	result, err = cf.Recommend("u1", 0)
	assert.NoError(t, err)
	assert.Empty(t, result)

	// unknown user
	_, err = cf.Recommend("u3", 10)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestItemBasedCFTieBreak(t *testing.T) {
	items := []string{"10", "2", "1", "3"}
	d, err := dataset.NewDataset(
		newTable(items, map[string]map[string]float64{"u1": {"1": 4}}),
		newTable(items, newSymmetric(items, map[[2]string]float64{
			{"1", "10"}: 0.5,
			{"1", "2"}:  0.5,
			{"1", "3"}:  0.5,
		})),
		newIdentity(4), newIndex(items...))
	require.NoError(t, err)
	result, err := NewItemBasedCF(d).Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"2", "3", "10"}, result)
}

func TestItemBasedCFSkipsUnknownColumns(t *testing.T) {
	// Z is rated but absent from the similarity table
	d, err := dataset.NewDataset(
		newTable([]string{"A", "B", "Z"}, map[string]map[string]float64{"u1": {"A": 1, "Z": 5}}),
		newTable([]string{"A", "B"}, newSymmetric([]string{"A", "B"}, map[[2]string]float64{{"A", "B"}: 0.3})),
		newIdentity(1), newIndex("A"))
	require.NoError(t, err)
	result, err := NewItemBasedCF(d).Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"B"}, result)
}

func TestItemBasedCFProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	d := randomDataset(t, rng, 20, 30)
	cf := NewItemBasedCF(d)
	for u := 0; u < d.CountUsers(); u++ {
		userId := strconv.Itoa(u)
		ratings, err := d.GetUserRatings(userId)
		require.NoError(t, err)
		rated := mapset.NewSet(lo.Map(ratings, func(r dataset.Rating, _ int) string { return r.ItemId })...)

		// brute force scores
		scores := make(map[string]float64)
		for _, candidate := range d.GetItems().Names() {
			for _, rating := range ratings {
				i, _ := d.GetItems().Id(rating.ItemId)
				j, _ := d.GetItems().Id(candidate)
				scores[candidate] += rating.Value * d.GetItemSimilarity(i)[j]
			}
		}

		for _, n := range []int{1, 5, 100} {
			result, err := cf.Recommend(userId, n)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(result), n)
			if len(ratings) > 0 {
				assert.Equal(t, min(n, d.CountItems()-rated.Cardinality()), len(result))
			}
			for i, item := range result {
				assert.False(t, rated.Contains(item))
				if i > 0 {
					prev := result[i-1]
					assert.True(t, scores[prev] > scores[item] ||
						(scores[prev] == scores[item] && dataset.CompareItemId(prev, item) < 0))
				}
			}
			again, err := cf.Recommend(userId, n)
			require.NoError(t, err)
			assert.Equal(t, result, again)
		}
	}
}
