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

package dataset

import (
	"math"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Rating is an explicit rating of an item by a user.
type Rating struct {
	ItemId string
	Value  float64
}

// Dataset is an immutable snapshot of the recommendation artifacts.
type Dataset struct {
	timestamp time.Time
	// ratings of each user sorted by CompareItemId
	ratings map[string][]Rating
	// items of the item similarity table in CompareItemId order
	items *Index
	// similarity[i][j] is the similarity of item j to item i, zero if missing
	similarity [][]float64
	// movies maps item identifiers to rows of features
	movies   *Index
	features [][]float64
}

// NewDataset validates the artifacts and assembles a snapshot. Every column of the
// similarity table must be a column of the rating table, the similarity table must be
// square with identical row and column labels, and the feature matrix must be square
// with one row per entry of the movie index.
func NewDataset(ratings, similarity *Table, features [][]float64, movies *Index) (*Dataset, error) {
	d := &Dataset{
		timestamp: time.Now(),
		ratings:   make(map[string][]Rating, len(ratings.Rows)),
		movies:    movies,
		features:  features,
	}

	// ratings
	if dup, ok := findDuplicate(ratings.Columns); ok {
		return nil, errors.NotValidf("duplicate rating column %s", dup)
	}
	for i, userId := range ratings.Rows {
		if _, exist := d.ratings[userId]; exist {
			return nil, errors.NotValidf("duplicate user %s", userId)
		}
		var userRatings []Rating
		for j, value := range ratings.Values[i] {
			if math.IsInf(value, 0) {
				return nil, errors.NotValidf("non-finite rating of user %s", userId)
			}
			if !math.IsNaN(value) {
				userRatings = append(userRatings, Rating{ItemId: ratings.Columns[j], Value: value})
			}
		}
		slices.SortFunc(userRatings, func(a, b Rating) int {
			return CompareItemId(a.ItemId, b.ItemId)
		})
		d.ratings[userId] = userRatings
	}

	// item similarity
	d.items = NewSortedIndex(similarity.Columns)
	if d.items.Len() != len(similarity.Columns) {
		return nil, errors.NotValidf("duplicate similarity column")
	}
	if len(similarity.Rows) != d.items.Len() {
		return nil, errors.NotValidf("similarity table with %d rows and %d columns", len(similarity.Rows), d.items.Len())
	}
	ratedColumns := mapset.NewThreadUnsafeSet(ratings.Columns...)
	if missing := lo.Filter(similarity.Columns, func(item string, _ int) bool {
		return !ratedColumns.Contains(item)
	}); len(missing) > 0 {
		return nil, errors.NotValidf("similarity columns %v absent from ratings", missing)
	}
	d.similarity = make([][]float64, d.items.Len())
	for i := range d.similarity {
		d.similarity[i] = make([]float64, d.items.Len())
	}
	columns := lo.Map(similarity.Columns, func(item string, _ int) int32 {
		id, _ := d.items.Id(item)
		return id
	})
	seenRows := mapset.NewThreadUnsafeSet[string]()
	for i, rowLabel := range similarity.Rows {
		row, ok := d.items.Id(rowLabel)
		if !ok {
			return nil, errors.NotValidf("similarity row %s without column", rowLabel)
		}
		if !seenRows.Add(rowLabel) {
			return nil, errors.NotValidf("duplicate similarity row %s", rowLabel)
		}
		for j, value := range similarity.Values[i] {
			if math.IsInf(value, 0) {
				return nil, errors.NotValidf("non-finite similarity between %s and %s", rowLabel, similarity.Columns[j])
			}
			if !math.IsNaN(value) {
				d.similarity[columns[j]][row] = value
			}
		}
	}

	// feature similarity
	if len(features) != movies.Len() {
		return nil, errors.NotValidf("feature matrix with %d rows for %d indexed items", len(features), movies.Len())
	}
	for i, row := range features {
		if len(row) != len(features) {
			return nil, errors.NotValidf("feature matrix row %d with %d columns, expected %d", i, len(row), len(features))
		}
		if slices.ContainsFunc(row, isNonFinite) {
			return nil, errors.NotValidf("non-finite feature similarity in row %d", i)
		}
	}
	return d, nil
}

func (d *Dataset) GetTimestamp() time.Time {
	return d.timestamp
}

func (d *Dataset) CountUsers() int {
	return len(d.ratings)
}

func (d *Dataset) CountItems() int {
	return d.items.Len()
}

func (d *Dataset) CountMovies() int {
	return d.movies.Len()
}

// GetUserRatings returns ratings of a user sorted by item identifier.
func (d *Dataset) GetUserRatings(userId string) ([]Rating, error) {
	ratings, ok := d.ratings[userId]
	if !ok {
		return nil, errors.NotFoundf("user %s", userId)
	}
	return ratings, nil
}

// GetItems returns the index over the item similarity table.
func (d *Dataset) GetItems() *Index {
	return d.items
}

// GetItemSimilarity returns the similarity of every item to the i-th item.
func (d *Dataset) GetItemSimilarity(i int32) []float64 {
	return d.similarity[i]
}

// GetMovies returns the index over rows of the feature similarity matrix.
func (d *Dataset) GetMovies() *Index {
	return d.movies
}

func (d *Dataset) GetFeatureSimilarity(i int32) []float64 {
	return d.features[i]
}
