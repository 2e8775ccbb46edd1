//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package priorityqueue provides a small binary heap over arbitrary items.
// It backs the top-K collector, the disjunction matcher and the k-way merge
// of spill runs.
package priorityqueue

// Queue is a binary heap ordered by the less function: the Top element is
// the one for which less holds against all others.
type Queue[T any] struct {
	items []T
	less  func(a, b T) bool
}

// New constructs a queue with the specified initial capacity (initial length
// is always 0).
func New[T any](capacity int, less func(a, b T) bool) *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0, capacity),
		less:  less,
	}
}

// Len returns the length of the queue.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Top peeks at the next item in the queue.
func (q *Queue[T]) Top() T {
	return q.items[0]
}

// Reset clears all items from the queue.
func (q *Queue[T]) Reset() {
	q.items = q.items[:0]
}

// Insert adds the provided item to the queue.
func (q *Queue[T]) Insert(item T) {
	q.items = append(q.items, item)
	i := len(q.items) - 1
	for i != 0 && q.less(q.items[i], q.items[q.parent(i)]) {
		q.swap(i, q.parent(i))
		i = q.parent(i)
	}
}

// Pop removes the top item in the queue and returns it.
func (q *Queue[T]) Pop() T {
	if len(q.items) == 0 {
		panic("priority queue is empty")
	}
	out := q.items[0]
	q.items[0] = q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	q.heapify(0)
	return out
}

// ReplaceTop swaps the top item for the provided one in a single sift-down,
// cheaper than Pop followed by Insert.
func (q *Queue[T]) ReplaceTop(item T) {
	q.items[0] = item
	q.heapify(0)
}

// Fix restores the heap property after the item at the top mutated in place.
func (q *Queue[T]) Fix() {
	q.heapify(0)
}

// Items returns the backing slice in heap order.
func (q *Queue[T]) Items() []T {
	return q.items
}

func (q *Queue[T]) left(i int) int { return 2*i + 1 }

func (q *Queue[T]) right(i int) int { return 2*i + 2 }

func (q *Queue[T]) parent(i int) int { return (i - 1) / 2 }

func (q *Queue[T]) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *Queue[T]) heapify(i int) {
	left := q.left(i)
	right := q.right(i)
	smallest := i
	if left < len(q.items) && q.less(q.items[left], q.items[i]) {
		smallest = left
	}

	if right < len(q.items) && q.less(q.items[right], q.items[smallest]) {
		smallest = right
	}

	if smallest != i {
		q.swap(i, smallest)
		q.heapify(smallest)
	}
}
