package recent

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewMemory[int](0).Capacity())
	assert.Equal(t, DefaultCapacity, NewMemory[int](-3).Capacity())
	assert.Equal(t, 7, NewMemory[int](7).Capacity())
}

func TestMemory_EvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	log := NewMemory[int](3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, log.Append(ctx, i))
	}

	got, err := log.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5}, got)
	assert.Equal(t, int64(2), log.Dropped())
}

func TestMemory_ClearResets(t *testing.T) {
	ctx := context.Background()
	log := NewMemory[string](2)
	require.NoError(t, log.Append(ctx, "a"))
	require.NoError(t, log.Append(ctx, "b"))
	require.NoError(t, log.Clear(ctx))

	n, err := log.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, log.Append(ctx, "c"))
	got, err := log.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)
}

// After any sequence of appends the log holds exactly the last
// min(n, capacity) values in order.
func TestMemory_RetainsSuffix(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		capacity := rng.Intn(20) + 1
		n := rng.Intn(60)
		log := NewMemory[int](capacity)
		var all []int
		for i := 0; i < n; i++ {
			v := rng.Int()
			all = append(all, v)
			require.NoError(t, log.Append(ctx, v))
		}

		want := all
		if len(all) > capacity {
			want = all[len(all)-capacity:]
		}
		got, err := log.List(ctx)
		require.NoError(t, err)
		if len(want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, want, got, "capacity=%d n=%d", capacity, n)
	}
}

func TestMemory_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	log := NewMemory[int](50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = log.Append(ctx, g*100+i)
			}
		}(g)
	}
	wg.Wait()

	n, err := log.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, int64(750), log.Dropped())
}

func TestMemory_ListIsACopy(t *testing.T) {
	ctx := context.Background()
	log := NewMemory[int](2)
	require.NoError(t, log.Append(ctx, 1))

	got, _ := log.List(ctx)
	got[0] = 99

	again, _ := log.List(ctx)
	assert.Equal(t, []int{1}, again)
}
