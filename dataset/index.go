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
	"cmp"
	"slices"
	"strconv"
)

// Index is a bijection between item identifiers and dense positions.
type Index struct {
	ids   map[string]int32
	names []string
}

func NewIndex() *Index {
	return &Index{ids: make(map[string]int32)}
}

// NewSortedIndex builds an index whose positions follow CompareItemId order.
func NewSortedIndex(names []string) *Index {
	sorted := slices.Clone(names)
	slices.SortFunc(sorted, CompareItemId)
	idx := NewIndex()
	for _, name := range sorted {
		idx.Add(name)
	}
	return idx
}

// Add returns the position of name, appending it if absent.
func (idx *Index) Add(name string) int32 {
	if id, ok := idx.ids[name]; ok {
		return id
	}
	id := int32(len(idx.names))
	idx.ids[name] = id
	idx.names = append(idx.names, name)
	return id
}

func (idx *Index) Id(name string) (int32, bool) {
	id, ok := idx.ids[name]
	return id, ok
}

func (idx *Index) Name(id int32) (string, bool) {
	if id < 0 || int(id) >= len(idx.names) {
		return "", false
	}
	return idx.names[id], true
}

func (idx *Index) Len() int {
	return len(idx.names)
}

func (idx *Index) Names() []string {
	return idx.names
}

// CompareItemId orders integer identifiers numerically and before all other
// identifiers, which are ordered lexicographically.
func CompareItemId(a, b string) int {
	x, errX := strconv.ParseInt(a, 10, 64)
	y, errY := strconv.ParseInt(b, 10, 64)
	switch {
	case errX == nil && errY == nil:
		if c := cmp.Compare(x, y); c != 0 {
			return c
		}
	case errX == nil:
		return -1
	case errY == nil:
		return 1
	}
	return cmp.Compare(a, b)
}
