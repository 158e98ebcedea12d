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
	"container/heap"

	"golang.org/x/exp/constraints"
)

type Elem[T constraints.Ordered, W constraints.Ordered] struct {
	Value  T
	Weight W
}

type _heap[T constraints.Ordered, W constraints.Ordered] struct {
	elems []Elem[T, W]
}

func (h *_heap[T, W]) Len() int {
	return len(h.elems)
}

// Less orders elements by weight, then by the larger value, so that the heap root is
// always the element to evict: the smallest weight, ties resolved against the larger value.
func (h *_heap[T, W]) Less(i, j int) bool {
	if h.elems[i].Weight != h.elems[j].Weight {
		return h.elems[i].Weight < h.elems[j].Weight
	}
	return h.elems[i].Value > h.elems[j].Value
}

func (h *_heap[T, W]) Swap(i, j int) {
	h.elems[i], h.elems[j] = h.elems[j], h.elems[i]
}

func (h *_heap[T, W]) Push(x interface{}) {
	h.elems = append(h.elems, x.(Elem[T, W]))
}

func (h *_heap[T, W]) Pop() interface{} {
	old := h.elems
	item := old[len(old)-1]
	h.elems = old[:len(old)-1]
	return item
}

// TopKFilter filters out the top k elements by weight. Ties are broken by the smaller
// value so that rankings are reproducible across runs.
type TopKFilter[T constraints.Ordered, W constraints.Ordered] struct {
	_heap[T, W]
	k int
}

// NewTopKFilter creates a top k filter. A non-positive k keeps nothing.
func NewTopKFilter[T constraints.Ordered, W constraints.Ordered](k int) *TopKFilter[T, W] {
	return &TopKFilter[T, W]{k: k}
}

// Push inserts a new element into the filter.
func (f *TopKFilter[T, W]) Push(value T, weight W) {
	if f.k <= 0 {
		return
	}
	if len(f.elems) < f.k {
		heap.Push(&f._heap, Elem[T, W]{Value: value, Weight: weight})
		return
	}
	root := f.elems[0]
	if weight > root.Weight || (weight == root.Weight && value < root.Value) {
		f.elems[0] = Elem[T, W]{Value: value, Weight: weight}
		heap.Fix(&f._heap, 0)
	}
}

// PopAll drains the filter and returns elements ordered by descending weight,
// ascending value among equal weights.
func (f *TopKFilter[T, W]) PopAll() ([]T, []W) {
	values := make([]T, f.Len())
	weights := make([]W, f.Len())
	for i := f.Len() - 1; i >= 0; i-- {
		elem := heap.Pop(&f._heap).(Elem[T, W])
		values[i] = elem.Value
		weights[i] = elem.Weight
	}
	return values, weights
}
