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

package search

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func newTestIndex() *Bruteforce {
	return NewBruteforce([][]float32{
		{1, 0},  // 0
		{0, 1},  // 1
		{1, 1},  // 2
		{0, 0},  // 3: degenerate
		{2, 0},  // 4
		{-1, 0}, // 5
	})
}

func TestSearchDot(t *testing.T) {
	b := newTestIndex()
	ids, scores, err := b.SearchDot([]float32{1, 0}, 3, nil)
	assert.NoError(t, err)
	assert.Equal(t, []int32{4, 0, 2}, ids)
	assert.Equal(t, []float32{2, 1, 1}, scores)
}

func TestSearchDotExclude(t *testing.T) {
	b := newTestIndex()
	ids, _, err := b.SearchDot([]float32{1, 0}, 3, mapset.NewSet[int32](4, 0))
	assert.NoError(t, err)
	assert.Equal(t, []int32{2, 1, 5}, ids)
}

func TestSearchOverflow(t *testing.T) {
	// asking for more candidates than exist returns all eligible ones
	b := newTestIndex()
	ids, scores, err := b.SearchDot([]float32{1, 0}, 100, nil)
	assert.NoError(t, err)
	assert.Len(t, ids, 5)
	assert.Len(t, scores, 5)
	assert.NotContains(t, ids, int32(3))
}

func TestSearchZero(t *testing.T) {
	b := newTestIndex()
	ids, scores, err := b.SearchDot([]float32{1, 0}, 0, nil)
	assert.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, scores)
}

func TestSearchCosine(t *testing.T) {
	b := newTestIndex()
	ids, scores, err := b.SearchCosine([]float32{2, 0}, 2, nil)
	assert.NoError(t, err)
	// ids 0 and 4 are colinear with the query, tie broken by ascending id
	assert.Equal(t, []int32{0, 4}, ids)
	assert.InDelta(t, 1.0, scores[0], 1e-6)
	assert.InDelta(t, 1.0, scores[1], 1e-6)
}

func TestSearchCosineZeroQuery(t *testing.T) {
	b := newTestIndex()
	ids, scores, err := b.SearchCosine([]float32{0, 0}, 3, nil)
	assert.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, scores)
}

func TestSearchDegenerateCandidate(t *testing.T) {
	b := newTestIndex()
	ids, _, err := b.SearchCosine([]float32{1, 1}, 100, nil)
	assert.NoError(t, err)
	assert.NotContains(t, ids, int32(3))
}

func TestSearchDimensionMismatch(t *testing.T) {
	b := newTestIndex()
	_, _, err := b.SearchDot([]float32{1, 0, 0}, 3, nil)
	assert.True(t, errors.IsNotValid(err))
	_, _, err = b.SearchCosine([]float32{1}, 3, nil)
	assert.True(t, errors.IsNotValid(err))
}

func TestSearchNegativeN(t *testing.T) {
	b := newTestIndex()
	_, _, err := b.SearchDot([]float32{1, 0}, -1, nil)
	assert.True(t, errors.IsNotValid(err))
}

func TestBatchSearchCosine(t *testing.T) {
	b := newTestIndex()
	queries := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	ids, scores, err := b.BatchSearchCosine(queries, 2, 2)
	assert.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Len(t, scores, 3)
	// each query is a member of the candidate set: itself first with
	// similarity one; id 0 wins the tie against the colinear id 4
	assert.Equal(t, int32(0), ids[0][0])
	assert.Equal(t, int32(1), ids[1][0])
	assert.Equal(t, int32(2), ids[2][0])
	for q := range queries {
		assert.InDelta(t, 1.0, scores[q][0], 1e-4)
	}
}
