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

// Package search ranks candidate vectors against query vectors. Results are
// ordered by descending score with ties broken by ascending id, so rankings
// are reproducible across runs.
package search

import (
	"context"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"modernc.org/mathutil"

	"github.com/gs-dxdy/implicit/base/heap"
	"github.com/gs-dxdy/implicit/common/floats"
	"github.com/gs-dxdy/implicit/common/parallel"
)

// Bruteforce scores a query vector against every row of a dense factor matrix
// and selects the top n. Rows with zero norm are degenerate (an entity with no
// observed interactions) and never surface in results: under cosine their
// similarity is undefined, so they are skipped in both metrics.
type Bruteforce struct {
	vectors   [][]float32
	norms     []float32
	dimension int
}

// NewBruteforce creates an index over the rows of a factor matrix. The matrix
// is treated as read-only for the lifetime of the index.
func NewBruteforce(vectors [][]float32) *Bruteforce {
	b := &Bruteforce{
		vectors: vectors,
		norms:   make([]float32, len(vectors)),
	}
	for i, v := range vectors {
		if b.dimension == 0 {
			b.dimension = len(v)
		}
		b.norms[i] = floats.Norm(v)
	}
	return b
}

// Len returns the number of candidate vectors.
func (b *Bruteforce) Len() int {
	return len(b.vectors)
}

// Dimension returns the dimensionality of candidate vectors.
func (b *Bruteforce) Dimension() int {
	return b.dimension
}

func (b *Bruteforce) check(query []float32, n int) error {
	if len(query) != b.dimension && len(b.vectors) > 0 {
		return errors.NotValidf("query of dimension %d against factors of dimension %d",
			len(query), b.dimension)
	}
	if n < 0 {
		return errors.NotValidf("top size %d", n)
	}
	return nil
}

// SearchDot returns the ids and scores of the top n candidates by inner
// product. Candidates in exclude or with a zero factor vector are skipped. If
// n exceeds the number of eligible candidates, all of them are returned.
func (b *Bruteforce) SearchDot(query []float32, n int, exclude mapset.Set[int32]) ([]int32, []float32, error) {
	if err := b.check(query, n); err != nil {
		return nil, nil, errors.Trace(err)
	}
	filter := heap.NewTopKFilter[int32, float32](mathutil.Min(n, b.Len()))
	for i, vec := range b.vectors {
		if b.norms[i] == 0 || (exclude != nil && exclude.Contains(int32(i))) {
			continue
		}
		filter.Push(int32(i), floats.Dot(query, vec))
	}
	ids, scores := filter.PopAll()
	return ids, scores, nil
}

// SearchCosine returns the ids and scores of the top n candidates by cosine
// similarity. A zero query vector is similar to nothing and yields an empty
// result rather than NaN scores.
func (b *Bruteforce) SearchCosine(query []float32, n int, exclude mapset.Set[int32]) ([]int32, []float32, error) {
	if err := b.check(query, n); err != nil {
		return nil, nil, errors.Trace(err)
	}
	queryNorm := floats.Norm(query)
	if queryNorm == 0 {
		return nil, nil, nil
	}
	filter := heap.NewTopKFilter[int32, float32](mathutil.Min(n, b.Len()))
	for i, vec := range b.vectors {
		if b.norms[i] == 0 || (exclude != nil && exclude.Contains(int32(i))) {
			continue
		}
		score := floats.Dot(query, vec) / (queryNorm * b.norms[i])
		if math32.IsNaN(score) {
			continue
		}
		filter.Push(int32(i), score)
	}
	ids, scores := filter.PopAll()
	return ids, scores, nil
}

// BatchSearchCosine runs SearchCosine for each query in parallel. Per-query
// work is independent: each worker reads the shared factor matrix and writes
// only its own result rows. When a query is a member of the candidate set, its
// own row ranks first with similarity 1 up to rounding.
func (b *Bruteforce) BatchSearchCosine(queries [][]float32, n, nJobs int) ([][]int32, [][]float32, error) {
	ids := make([][]int32, len(queries))
	scores := make([][]float32, len(queries))
	err := parallel.Parallel(context.Background(), len(queries), nJobs, func(_, q int) error {
		var err error
		ids[q], scores[q], err = b.SearchCosine(queries[q], n, nil)
		return errors.Trace(err)
	})
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return ids, scores, nil
}
