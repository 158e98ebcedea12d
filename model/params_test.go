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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	p := Params{
		NFactors:    16,
		Reg:         0.01,
		RandomState: 42,
	}
	assert.Equal(t, 16, p.GetInt(NFactors, 8))
	assert.Equal(t, 100, p.GetInt(NEpochs, 100))
	assert.Equal(t, float32(0.01), p.GetFloat32(Reg, 0.1))
	assert.Equal(t, int64(42), p.GetInt64(RandomState, 0))
	assert.Equal(t, "cosine", p.GetString("Similarity", "cosine"))
}

func TestParamsTypeMismatch(t *testing.T) {
	p := Params{NFactors: "sixteen"}
	assert.Equal(t, 8, p.GetInt(NFactors, 8))
}

func TestParamsCopy(t *testing.T) {
	p := Params{NFactors: 16}
	q := p.Copy()
	q[NFactors] = 32
	assert.Equal(t, 16, p.GetInt(NFactors, 0))
	assert.Equal(t, 32, q.GetInt(NFactors, 0))
}

func TestParamsOverwrite(t *testing.T) {
	p := Params{NFactors: 16, Reg: 0.01}
	q := p.Overwrite(Params{NFactors: 32})
	assert.Equal(t, 32, q.GetInt(NFactors, 0))
	assert.Equal(t, float32(0.01), q.GetFloat32(Reg, 0))
}

func TestBaseModelRandomGenerator(t *testing.T) {
	var a, b BaseModel
	a.SetParams(Params{RandomState: 7})
	b.SetParams(Params{RandomState: 7})
	assert.Equal(t,
		a.GetRandomGenerator().NormalVector(8, 0, 1),
		b.GetRandomGenerator().NormalVector(8, 0, 1))
}
