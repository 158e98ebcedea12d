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

package sparse

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewMatrix(t *testing.T) {
	m, err := NewMatrix(3, 4,
		[]int{0, 2, 2, 3},
		[]int32{0, 3, 1},
		[]float32{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 4, m.Cols())
	assert.Equal(t, 3, m.NNZ())

	indices, values := m.Row(0)
	assert.Equal(t, []int32{0, 3}, indices)
	assert.Equal(t, []float32{1, 2}, values)
	assert.Zero(t, m.RowDegree(1))
	assert.Equal(t, 1, m.RowDegree(2))
}

func TestNewMatrixInvalid(t *testing.T) {
	_, err := NewMatrix(2, 2, []int{0, 1}, []int32{0}, []float32{1})
	assert.True(t, errors.IsNotValid(err))
	_, err = NewMatrix(2, 2, []int{0, 1, 1}, []int32{5}, []float32{1})
	assert.True(t, errors.IsNotValid(err))
	_, err = NewMatrix(2, 2, []int{0, 2, 1}, []int32{0, 1}, []float32{1, 2})
	assert.True(t, errors.IsNotValid(err))
}

func TestFromDense(t *testing.T) {
	m := FromDense([][]float32{
		{1, 0, 2},
		{0, 0, 0},
		{0, 3, 0},
	})
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 3, m.Cols())
	assert.Equal(t, 3, m.NNZ())
	indices, values := m.Row(2)
	assert.Equal(t, []int32{1}, indices)
	assert.Equal(t, []float32{3}, values)
}

func TestFromDense64(t *testing.T) {
	m32 := FromDense([][]float32{{1, 0}, {0, 2}})
	m64 := FromDense64([][]float64{{1, 0}, {0, 2}})
	assert.Equal(t, m32, m64)
}

func TestFromTriples(t *testing.T) {
	m, err := FromTriples(2, 3,
		[]int32{1, 0, 1, 1},
		[]int32{2, 0, 0, 2},
		[]float32{1, 2, 3, 4})
	assert.NoError(t, err)
	indices, values := m.Row(1)
	assert.Equal(t, []int32{0, 2}, indices)
	// duplicate coordinates are summed
	assert.Equal(t, []float32{3, 5}, values)

	_, err = FromTriples(2, 3, []int32{2}, []int32{0}, []float32{1})
	assert.True(t, errors.IsNotValid(err))
	_, err = FromTriples(2, 3, []int32{0}, []int32{3}, []float32{1})
	assert.True(t, errors.IsNotValid(err))
}

func TestTranspose(t *testing.T) {
	m := FromDense([][]float32{
		{1, 0, 2},
		{0, 3, 0},
	})
	mt := m.Transpose()
	assert.Equal(t, 3, mt.Rows())
	assert.Equal(t, 2, mt.Cols())
	indices, values := mt.Row(0)
	assert.Equal(t, []int32{0}, indices)
	assert.Equal(t, []float32{1}, values)
	indices, values = mt.Row(2)
	assert.Equal(t, []int32{0}, indices)
	assert.Equal(t, []float32{2}, values)

	// transposing twice returns the original
	assert.Equal(t, m, mt.Transpose())
}

func TestForEach(t *testing.T) {
	m := FromDense([][]float32{
		{1, 0},
		{0, 2},
	})
	var count int
	m.ForEach(func(i int, j int32, v float32) {
		count++
		assert.Equal(t, int32(i), j)
	})
	assert.Equal(t, 2, count)
}

func TestEmptyMatrix(t *testing.T) {
	m := FromDense(nil)
	assert.Zero(t, m.Rows())
	assert.Zero(t, m.NNZ())
}
