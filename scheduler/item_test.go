package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noteAction struct {
	note string
}

func (*noteAction) Kind() string { return "note" }

func TestItemActions(t *testing.T) {
	item := &Item{id: 1, task: &Job{Name: "build"}}
	note := &noteAction{"hello"}
	assignment := NewLabelAssignment("docker-1-abc")

	item.AddAction(note)
	item.AddAction(assignment)

	assert.Equal(t, []Action{note, assignment}, item.Actions())
	assert.Equal(t, []*LabelAssignment{assignment}, ActionsOf[*LabelAssignment](item))
	assert.Equal(t, []*noteAction{note}, ActionsOf[*noteAction](item))

	assert.True(t, item.RemoveAction(assignment))
	assert.False(t, item.RemoveAction(assignment))
	assert.Empty(t, ActionsOf[*LabelAssignment](item))
	assert.Equal(t, []Action{note}, item.Actions())
}

func TestAttachOnceKeepsExisting(t *testing.T) {
	item := &Item{id: 1, task: &Job{Name: "build"}}
	first := NewLabelAssignment("first")
	item.AddAction(first)

	calls := 0
	action, created, err := AttachOnce(item, func() (*LabelAssignment, error) {
		calls++
		return NewLabelAssignment("second"), nil
	})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, first, action)
	assert.Zero(t, calls)
	assert.Len(t, item.Actions(), 1)
}

func TestAttachOnceError(t *testing.T) {
	item := &Item{id: 1, task: &Job{Name: "build"}}

	_, created, err := AttachOnce(item, func() (*LabelAssignment, error) {
		return nil, errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.False(t, created)
	assert.Empty(t, item.Actions())
}

func TestAttachOnceConcurrent(t *testing.T) {
	item := &Item{id: 1, task: &Job{Name: "build"}}
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]*LabelAssignment, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, _ = AttachOnce(item, func() (*LabelAssignment, error) {
				return NewLabelAssignment(fmt.Sprintf("label-%d", calls.Add(1))), nil
			})
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	require.Len(t, ActionsOf[*LabelAssignment](item), 1)
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}
