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

package cf

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

func TestPrecision(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 3, 5)
	assert.Equal(t, float32(0.5), Precision(targetSet, []int32{1, 2, 3, 4}))
	assert.Equal(t, float32(0), Precision(targetSet, []int32{2, 4}))
	assert.Equal(t, float32(0), Precision(targetSet, nil))
}

func TestRecall(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 3, 5)
	assert.InDelta(t, 2.0/3.0, Recall(targetSet, []int32{1, 2, 3, 4}), 1e-6)
	assert.Equal(t, float32(0), Recall(mapset.NewSet[int32](), []int32{1}))
}

func TestHR(t *testing.T) {
	targetSet := mapset.NewSet[int32](7)
	assert.Equal(t, float32(1), HR(targetSet, []int32{1, 7}))
	assert.Equal(t, float32(0), HR(targetSet, []int32{1, 2}))
}

func TestMRR(t *testing.T) {
	targetSet := mapset.NewSet[int32](7)
	assert.Equal(t, float32(0.5), MRR(targetSet, []int32{1, 7, 9}))
	assert.Equal(t, float32(0), MRR(targetSet, []int32{1, 2}))
}

func TestNDCG(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 2, 3)
	// perfect ranking
	assert.InDelta(t, 1.0, NDCG(targetSet, []int32{1, 2, 3}), 1e-6)
	// no hits
	assert.Equal(t, float32(0), NDCG(targetSet, []int32{4, 5, 6}))
	assert.Equal(t, float32(0), NDCG(targetSet, nil))
}
