package queue

import (
	"container/heap"
	"sync"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// Queue is a stable priority queue: highest priority first, FIFO among equals.
// It is safe for concurrent producers and consumers.
type Queue[T any] struct {
	items entries[T]
	seq   uint64
	mu    sync.Mutex
	log   logger.Logger
}

type entry[T any] struct {
	item     T
	priority models.Priority
	seq      uint64
}

func NewQueue[T any](log logger.Logger) *Queue[T] {
	return &Queue[T]{log: log}
}

// Add inserts item in O(log n). The sequence counter advances under the same
// lock as the heap so ties resolve in insertion order.
func (q *Queue[T]) Add(item T, priority models.Priority) {
	q.mu.Lock()
	seq := q.seq
	q.seq++
	heap.Push(&q.items, entry[T]{item: item, priority: priority, seq: seq})
	size := len(q.items)
	q.mu.Unlock()

	q.log.Debug("Job enqueued", "priority", priority.String(), "seq", seq, "size", size)
}

// Next removes and returns the highest-priority item. ok is false when empty.
func (q *Queue[T]) Next() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item, false
	}
	e := heap.Pop(&q.items).(entry[T])
	return e.item, true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain empties the queue and returns the items in service order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, len(q.items))
	for len(q.items) > 0 {
		out = append(out, heap.Pop(&q.items).(entry[T]).item)
	}
	return out
}

type entries[T any] []entry[T]

func (e entries[T]) Len() int { return len(e) }

func (e entries[T]) Less(i, j int) bool {
	if e[i].priority != e[j].priority {
		return e[i].priority.Rank() > e[j].priority.Rank()
	}
	return e[i].seq < e[j].seq
}

func (e entries[T]) Swap(i, j int) { e[i], e[j] = e[j], e[i] }

func (e *entries[T]) Push(x any) { *e = append(*e, x.(entry[T])) }

func (e *entries[T]) Pop() any {
	old := *e
	n := len(old)
	it := old[n-1]
	var zero entry[T]
	old[n-1] = zero
	*e = old[:n-1]
	return it
}
