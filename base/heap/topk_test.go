// Copyright 2025 implicit Project Authors
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
	filter := NewTopKFilter[int32, float32](3)
	filter.Push(10, 1)
	filter.Push(20, 8)
	filter.Push(30, 2)
	filter.Push(40, 7)
	filter.Push(50, 5)
	values, weights := filter.PopAll()
	assert.Equal(t, []int32{20, 40, 50}, values)
	assert.Equal(t, []float32{8, 7, 5}, weights)
}

func TestTopKFilterTies(t *testing.T) {
	// ties are resolved by the smaller value
	filter := NewTopKFilter[int32, float32](3)
	filter.Push(5, 1)
	filter.Push(4, 1)
	filter.Push(3, 1)
	filter.Push(2, 1)
	filter.Push(1, 1)
	values, weights := filter.PopAll()
	assert.Equal(t, []int32{1, 2, 3}, values)
	assert.Equal(t, []float32{1, 1, 1}, weights)
}

func TestTopKFilterFewerThanK(t *testing.T) {
	filter := NewTopKFilter[int32, float32](10)
	filter.Push(1, 2)
	filter.Push(2, 1)
	values, weights := filter.PopAll()
	assert.Equal(t, []int32{1, 2}, values)
	assert.Equal(t, []float32{2, 1}, weights)
}

func TestTopKFilterEmpty(t *testing.T) {
	filter := NewTopKFilter[int32, float32](0)
	filter.Push(1, 1)
	values, weights := filter.PopAll()
	assert.Empty(t, values)
	assert.Empty(t, weights)
}
