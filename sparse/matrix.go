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

// Package sparse implements the compressed sparse row matrix of user-item
// interaction weights consumed by recommendation models. A zero entry means
// "no observed interaction", not "observed negative".
package sparse

import (
	"sort"

	"github.com/juju/errors"
)

// Matrix is a compressed sparse row matrix of non-negative 32-bit interaction
// weights. Rows with no entries are legal.
type Matrix struct {
	rows   int
	cols   int
	rowPtr []int
	colInd []int32
	values []float32
}

// NewMatrix creates a matrix from raw compressed sparse row storage.
func NewMatrix(rows, cols int, rowPtr []int, colInd []int32, values []float32) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, errors.NotValidf("shape (%d, %d)", rows, cols)
	}
	if len(rowPtr) != rows+1 {
		return nil, errors.NotValidf("row pointer of length %d for %d rows", len(rowPtr), rows)
	}
	if rowPtr[0] != 0 || rowPtr[rows] != len(colInd) || len(colInd) != len(values) {
		return nil, errors.NotValidf("inconsistent sparse storage")
	}
	for i := 0; i < rows; i++ {
		if rowPtr[i] > rowPtr[i+1] {
			return nil, errors.NotValidf("non-monotonic row pointer")
		}
	}
	for _, j := range colInd {
		if j < 0 || int(j) >= cols {
			return nil, errors.NotValidf("column index %d out of %d columns", j, cols)
		}
	}
	return &Matrix{rows: rows, cols: cols, rowPtr: rowPtr, colInd: colInd, values: values}, nil
}

// NewMatrix64 creates a matrix from 64-bit weights. Weights are truncated to
// 32 bits; the set of stored entries is unchanged, so rankings computed from
// either precision select the same candidates.
func NewMatrix64(rows, cols int, rowPtr []int, colInd []int32, values []float64) (*Matrix, error) {
	converted := make([]float32, len(values))
	for i, v := range values {
		converted[i] = float32(v)
	}
	return NewMatrix(rows, cols, rowPtr, colInd, converted)
}

// FromDense creates a matrix from a dense one, dropping zero entries.
func FromDense(dense [][]float32) *Matrix {
	rows := len(dense)
	cols := 0
	if rows > 0 {
		cols = len(dense[0])
	}
	rowPtr := make([]int, 1, rows+1)
	var colInd []int32
	var values []float32
	for _, row := range dense {
		for j, v := range row {
			if v != 0 {
				colInd = append(colInd, int32(j))
				values = append(values, v)
			}
		}
		rowPtr = append(rowPtr, len(colInd))
	}
	return &Matrix{rows: rows, cols: cols, rowPtr: rowPtr, colInd: colInd, values: values}
}

// FromDense64 creates a matrix from a dense 64-bit one, dropping zero entries.
func FromDense64(dense [][]float64) *Matrix {
	converted := make([][]float32, len(dense))
	for i, row := range dense {
		converted[i] = make([]float32, len(row))
		for j, v := range row {
			converted[i][j] = float32(v)
		}
	}
	return FromDense(converted)
}

// FromTriples creates a matrix from (row, column, weight) triples. Entries in
// a row are sorted by column. Duplicate coordinates are summed.
func FromTriples(rows, cols int, rowIndices, colIndices []int32, values []float32) (*Matrix, error) {
	if len(rowIndices) != len(colIndices) || len(rowIndices) != len(values) {
		return nil, errors.NotValidf("triple slices of lengths %d, %d, %d",
			len(rowIndices), len(colIndices), len(values))
	}
	entries := make([]map[int32]float32, rows)
	for i := range entries {
		entries[i] = make(map[int32]float32)
	}
	for k := range rowIndices {
		i, j := rowIndices[k], colIndices[k]
		if i < 0 || int(i) >= rows {
			return nil, errors.NotValidf("row index %d out of %d rows", i, rows)
		}
		if j < 0 || int(j) >= cols {
			return nil, errors.NotValidf("column index %d out of %d columns", j, cols)
		}
		entries[i][j] += values[k]
	}
	rowPtr := make([]int, 1, rows+1)
	var colInd []int32
	var vals []float32
	for _, row := range entries {
		columns := make([]int32, 0, len(row))
		for j := range row {
			columns = append(columns, j)
		}
		sort.Slice(columns, func(a, b int) bool { return columns[a] < columns[b] })
		for _, j := range columns {
			colInd = append(colInd, j)
			vals = append(vals, row[j])
		}
		rowPtr = append(rowPtr, len(colInd))
	}
	return &Matrix{rows: rows, cols: cols, rowPtr: rowPtr, colInd: colInd, values: vals}, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	return m.rows
}

// Cols returns the number of columns.
func (m *Matrix) Cols() int {
	return m.cols
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int {
	return len(m.values)
}

// Row returns the column indices and weights of the stored entries in row i.
// The returned slices are views into the matrix storage and must not be mutated.
func (m *Matrix) Row(i int) ([]int32, []float32) {
	start, end := m.rowPtr[i], m.rowPtr[i+1]
	return m.colInd[start:end], m.values[start:end]
}

// RowDegree returns the number of stored entries in row i.
func (m *Matrix) RowDegree(i int) int {
	return m.rowPtr[i+1] - m.rowPtr[i]
}

// ForEach iterates all stored entries in row-major order.
func (m *Matrix) ForEach(f func(i int, j int32, v float32)) {
	for i := 0; i < m.rows; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			f(i, m.colInd[k], m.values[k])
		}
	}
}

// Transpose returns a new matrix with rows and columns swapped.
func (m *Matrix) Transpose() *Matrix {
	rowPtr := make([]int, m.cols+1)
	for _, j := range m.colInd {
		rowPtr[j+1]++
	}
	for j := 0; j < m.cols; j++ {
		rowPtr[j+1] += rowPtr[j]
	}
	colInd := make([]int32, len(m.colInd))
	values := make([]float32, len(m.values))
	offset := make([]int, m.cols)
	m.ForEach(func(i int, j int32, v float32) {
		pos := rowPtr[j] + offset[j]
		colInd[pos] = int32(i)
		values[pos] = v
		offset[j]++
	})
	return &Matrix{rows: m.cols, cols: m.rows, rowPtr: rowPtr, colInd: colInd, values: values}
}
