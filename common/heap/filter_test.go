// Copyright 2022 gorse Project Authors
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

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKFilter(t *testing.T) {
	// Test a adjacent vec
	a := NewTopKFilter[int32, float32](3)
	a.Push(10, 2)
	a.Push(20, 8)
	a.Push(30, 1)
	values := a.PopAllValues()
	assert.Equal(t, []int32{20, 10, 30}, values)
	// Test a full adjacent vec
	a = NewTopKFilter[int32, float32](3)
	a.Push(10, 2)
	a.Push(20, 8)
	a.Push(30, 1)
	a.Push(40, 2)
	a.Push(50, 5)
	a.Push(12, 10)
	a.Push(67, 7)
	a.Push(32, 9)
	elems := a.PopAll()
	assert.Equal(t, []Elem[int32, float32]{
		{Value: 12, Weight: 10},
		{Value: 32, Weight: 9},
		{Value: 20, Weight: 8},
	}, elems)
	assert.Zero(t, a.Len())
}

func TestTopKFilterTies(t *testing.T) {
	// ties are broken by ascending value regardless of push order
	for _, order := range [][]int32{{5, 3, 9, 1}, {1, 9, 3, 5}, {9, 5, 1, 3}} {
		a := NewTopKFilter[int32, float64](3)
		for _, v := range order {
			a.Push(v, 1)
		}
		a.Push(7, 0.5)
		assert.Equal(t, []int32{1, 3, 5}, a.PopAllValues())
	}
	// a better tie replaces the worst element
	a := NewTopKFilter[int32, float64](2)
	a.Push(4, 1)
	a.Push(8, 1)
	a.Push(2, 1)
	assert.Equal(t, []int32{2, 4}, a.PopAllValues())
}

func TestTopKFilterEmpty(t *testing.T) {
	a := NewTopKFilter[string, float64](0)
	a.Push("a", 1)
	assert.Empty(t, a.PopAll())
	b := NewTopKFilter[string, float64](5)
	assert.Empty(t, b.PopAllValues())
}

func TestTopKStringFilter(t *testing.T) {
	a := NewTopKFilter[string, float64](3)
	a.Push("10", 2)
	a.Push("20", 8)
	a.Push("30", 1)
	elems := a.PopAll()
	assert.Equal(t, []Elem[string, float64]{
		{Value: "20", Weight: 8},
		{Value: "10", Weight: 2},
		{Value: "30", Weight: 1},
	}, elems)
}
