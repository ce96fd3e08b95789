// Copyright 2025 reelrec Project Authors
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

package base

import (
	"container/heap"
)

type _heap[T any] struct {
	elems []T
	// worse reports whether a ranks strictly below b. It must be a total
	// order so equal-rank candidates resolve the same way on every run.
	worse func(a, b T) bool
}

func (h _heap[T]) Len() int { return len(h.elems) }

func (h _heap[T]) Less(i, j int) bool { return h.worse(h.elems[i], h.elems[j]) }

func (h _heap[T]) Swap(i, j int) { h.elems[i], h.elems[j] = h.elems[j], h.elems[i] }

func (h *_heap[T]) Push(x any) { h.elems = append(h.elems, x.(T)) }

func (h *_heap[T]) Pop() any {
	old := h.elems
	n := len(old)
	x := old[n-1]
	h.elems = old[:n-1]
	return x
}

// TopKFilter keeps the k best elements pushed into it.
type TopKFilter[T any] struct {
	_heap[T]
	k int
}

// NewTopKFilter creates a top-k filter over the given strict order.
func NewTopKFilter[T any](k int, worse func(a, b T) bool) *TopKFilter[T] {
	return &TopKFilter[T]{_heap: _heap[T]{worse: worse}, k: k}
}

// Push pushes an element onto the filter, dropping the worst element once
// more than k are held. The complexity is O(log k).
func (filter *TopKFilter[T]) Push(item T) {
	heap.Push(&filter._heap, item)
	if filter.Len() > filter.k {
		heap.Pop(&filter._heap)
	}
}

// PopAll pops all elements, best first. The filter is empty afterwards.
func (filter *TopKFilter[T]) PopAll() []T {
	items := make([]T, filter.Len())
	for i := len(items) - 1; i >= 0; i-- {
		items[i] = heap.Pop(&filter._heap).(T)
	}
	return items
}
