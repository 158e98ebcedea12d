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

package floats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	assert.Equal(t, float32(70), Dot(a, b))
	assert.Panics(t, func() { Dot(a, b[:3]) })
}

func TestNorm(t *testing.T) {
	assert.Equal(t, float32(5), Norm([]float32{3, 4}))
	assert.Zero(t, Norm([]float32{0, 0, 0}))
}

func TestEuclidean(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{4, 6}
	assert.Equal(t, float32(5), Euclidean(a, b))
}

func TestSum(t *testing.T) {
	assert.Equal(t, float32(10), Sum([]float32{1, 2, 3, 4}))
}

func TestZero(t *testing.T) {
	a := []float32{1, 2, 3}
	Zero(a)
	assert.Equal(t, []float32{0, 0, 0}, a)
	m := [][]float32{{1, 2}, {3, 4}}
	MatZero(m)
	assert.Equal(t, [][]float32{{0, 0}, {0, 0}}, m)
}

func TestAdd(t *testing.T) {
	a := []float32{1, 2, 3}
	Add(a, []float32{4, 5, 6})
	assert.Equal(t, []float32{5, 7, 9}, a)
}

func TestSubTo(t *testing.T) {
	dst := make([]float32, 3)
	SubTo([]float32{4, 5, 6}, []float32{1, 2, 3}, dst)
	assert.Equal(t, []float32{3, 3, 3}, dst)
}

func TestMulConst(t *testing.T) {
	a := []float32{1, 2, 3}
	MulConst(a, 2)
	assert.Equal(t, []float32{2, 4, 6}, a)

	dst := make([]float32, 3)
	MulConstTo([]float32{1, 2, 3}, 3, dst)
	assert.Equal(t, []float32{3, 6, 9}, dst)

	MulConstAdd([]float32{1, 1, 1}, 2, dst)
	assert.Equal(t, []float32{5, 8, 11}, dst)

	MulConstAddTo([]float32{1, 2, 3}, 2, []float32{1, 1, 1}, dst)
	assert.Equal(t, []float32{3, 5, 7}, dst)
}
