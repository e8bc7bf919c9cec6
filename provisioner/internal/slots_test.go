package internal

import (
	"fmt"
	"sync"
	"testing"

	"github.com/gammadia/jeeves/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsCap(t *testing.T) {
	slots := NewSlots(2)

	require.NoError(t, slots.Acquire("a"))
	assert.False(t, slots.Full())
	require.NoError(t, slots.Acquire("b"))
	assert.True(t, slots.Full())

	err := slots.Acquire("c")
	assert.ErrorIs(t, err, cloud.ErrNoCapacity)
	assert.Equal(t, 2, slots.InUse())

	slots.Release("a")
	assert.False(t, slots.Full())
	require.NoError(t, slots.Acquire("c"))
}

func TestSlotsUnlimited(t *testing.T) {
	slots := NewSlots(0)
	for i := range 100 {
		require.NoError(t, slots.Acquire(fmt.Sprintf("label-%d", i)))
	}
	assert.False(t, slots.Full())
	assert.Equal(t, 100, slots.InUse())
}

func TestSlotsRejectsDuplicateLabel(t *testing.T) {
	slots := NewSlots(0)
	require.NoError(t, slots.Acquire("a"))
	assert.EqualError(t, slots.Acquire("a"), "label 'a' already holds a slot")
	assert.Equal(t, 1, slots.InUse())
}

func TestSlotsReleaseUnknown(t *testing.T) {
	slots := NewSlots(1)
	slots.Release("missing")
	assert.Equal(t, 0, slots.InUse())
}

func TestSlotsConcurrentAcquire(t *testing.T) {
	slots := NewSlots(5)

	var mu sync.Mutex
	acquired := 0
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if slots.Acquire(fmt.Sprintf("label-%d", i)) == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, acquired)
	assert.Equal(t, 5, slots.InUse())
}
