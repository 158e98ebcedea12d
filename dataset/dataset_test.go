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

package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gs-dxdy/implicit/sparse"
)

func TestFromItemUsers(t *testing.T) {
	// 3 items (rows) by 2 users (columns)
	itemUsers := sparse.FromDense([][]float32{
		{1, 0},
		{2, 3},
		{0, 0},
	})
	d := FromItemUsers(itemUsers)
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, 3, d.CountItems())
	assert.Equal(t, 3, d.CountFeedback())
	assert.Equal(t, [][]int32{{0, 1}, {1}}, d.GetUserFeedback())
	assert.Equal(t, [][]float32{{1, 2}, {3}}, d.GetUserWeights())
	assert.Equal(t, [][]int32{{0}, {0, 1}, nil}, d.GetItemFeedback())
	assert.Equal(t, [][]float32{{1}, {2, 3}, nil}, d.GetItemWeights())
}

func TestFreqDict(t *testing.T) {
	d := NewFreqDict()
	assert.Equal(t, int32(0), d.Id("alice"))
	assert.Equal(t, int32(1), d.Id("bob"))
	assert.Equal(t, int32(0), d.Id("alice"))
	assert.Equal(t, int32(2), d.Count())
	assert.Equal(t, 2, d.Freq(0))
	s, ok := d.String(1)
	assert.True(t, ok)
	assert.Equal(t, "bob", s)
	_, ok = d.String(5)
	assert.False(t, ok)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.csv")
	assert.NoError(t, os.WriteFile(path, []byte("alice,apple,2\nalice,banana\nbob,apple,1\n"), 0644))
	triples, err := LoadCSV(path)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), triples.UserDict.Count())
	assert.Equal(t, int32(2), triples.ItemDict.Count())
	assert.Equal(t, []float32{2, 1, 1}, triples.Weights)

	userItems, err := triples.UserItems()
	assert.NoError(t, err)
	assert.Equal(t, 2, userItems.Rows())
	assert.Equal(t, 2, userItems.Cols())
	indices, values := userItems.Row(0)
	assert.Equal(t, []int32{0, 1}, indices)
	assert.Equal(t, []float32{2, 1}, values)
}

func TestSplitUserItems(t *testing.T) {
	dense := make([][]float32, 10)
	for u := range dense {
		dense[u] = make([]float32, 20)
		for i := 0; i < 10; i++ {
			dense[u][(u+i)%20] = 1
		}
	}
	userItems := sparse.FromDense(dense)
	train, test, err := SplitUserItems(userItems, 0.2, 0)
	assert.NoError(t, err)
	assert.Equal(t, userItems.NNZ(), train.NNZ()+test.NNZ())
	for u := 0; u < 10; u++ {
		assert.Equal(t, 2, test.RowDegree(u))
		assert.Equal(t, 8, train.RowDegree(u))
	}

	// deterministic for a fixed seed
	train2, test2, err := SplitUserItems(userItems, 0.2, 0)
	assert.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestSplitSingleInteraction(t *testing.T) {
	userItems := sparse.FromDense([][]float32{{1, 0}})
	train, test, err := SplitUserItems(userItems, 0.5, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, train.NNZ())
	assert.Zero(t, test.NNZ())
}
