package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

func TestQueue_PriorityOrder(t *testing.T) {
	q := NewQueue[string](logger.Nop())

	q.Add("low", models.PriorityLow)
	q.Add("high", models.PriorityHigh)
	q.Add("urgent", models.PriorityUrgent)
	q.Add("medium", models.PriorityMedium)

	assert.Equal(t, []string{"urgent", "high", "medium", "low"}, q.Drain())
	assert.Zero(t, q.Len())
}

func TestQueue_FIFOAmongEqualPriorities(t *testing.T) {
	q := NewQueue[string](logger.Nop())

	q.Add("a", models.PriorityHigh)
	q.Add("x", models.PriorityLow)
	q.Add("b", models.PriorityHigh)
	q.Add("c", models.PriorityHigh)

	var got []string
	for {
		item, ok := q.Next()
		if !ok {
			break
		}
		got = append(got, item)
	}
	assert.Equal(t, []string{"a", "b", "c", "x"}, got)
}

func TestQueue_EmptyNext(t *testing.T) {
	q := NewQueue[int](logger.Nop())

	item, ok := q.Next()
	assert.False(t, ok)
	assert.Zero(t, item)

	q.Add(7, models.PriorityLow)
	item, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, 7, item)

	_, ok = q.Next()
	assert.False(t, ok)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue[int](logger.Nop())

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Add(p*perProducer+i, models.Priority(i%4+1))
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, producers*perProducer, q.Len())

	// Per producer, items of equal priority must come out in the order they were added.
	lastSeen := make(map[[2]int]int)
	prevRank := 5
	for {
		item, ok := q.Next()
		if !ok {
			break
		}
		producer, i := item/perProducer, item%perProducer
		rank := i%4 + 1
		require.LessOrEqual(t, rank, prevRank)
		prevRank = rank

		k := [2]int{producer, rank}
		if last, seen := lastSeen[k]; seen {
			require.Greater(t, i, last)
		}
		lastSeen[k] = i
	}
}
