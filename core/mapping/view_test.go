package mapping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-obe/core/outcome"
)

func TestSelection(t *testing.T) {
	var sel Selection
	a := sel.Select(1)
	assert.True(t, sel.IsCurrent(a))

	b := sel.Select(2)
	assert.False(t, sel.IsCurrent(a))
	assert.True(t, sel.IsCurrent(b))

	again := sel.Select(2)
	assert.False(t, sel.IsCurrent(b), "reselecting the same course supersedes older loads")
	assert.False(t, sel.Commit(b, func() { t.Fatal("stale commit ran") }))

	var ran bool
	assert.True(t, sel.Commit(again, func() { ran = true }))
	assert.True(t, ran)
}

func TestView_StaleResponse(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	svc, _ := newTestService(b, nil)

	_, err := svc.Create(ctx, outcome.KindAssessmentLO, 1, 5, 10) // course 10
	require.NoError(t, err)
	_, err = svc.Create(ctx, outcome.KindAssessmentLO, 3, 6, 20) // course 20
	require.NoError(t, err)

	gateA := make(chan struct{})
	b.gates = map[int]chan struct{}{10: gateA}
	b.started = make(chan int, 2)

	v := NewView(svc, outcome.KindAssessmentLO)

	type result struct {
		ms  []outcome.Mapping
		err error
	}
	doneA := make(chan result, 1)
	go func() {
		ms, err := v.Select(ctx, 10)
		doneA <- result{ms, err}
	}()
	require.Equal(t, 10, <-b.started, "course A request is in flight")

	msB, err := v.Select(ctx, 20)
	require.NoError(t, err)
	require.Len(t, msB, 1)
	assert.Equal(t, 3, msB[0].SourceID)
	<-b.started

	close(gateA)
	select {
	case res := <-doneA:
		assert.ErrorIs(t, res.err, ErrStaleResponse)
		assert.Nil(t, res.ms)
	case <-time.After(5 * time.Second):
		t.Fatal("course A load never returned")
	}

	course, shown := v.Mappings()
	assert.Equal(t, 20, course)
	require.Len(t, shown, 1)
	assert.Equal(t, 3, shown[0].SourceID)
}

func TestView_RefetchesAfterChanges(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	svc, _ := newTestService(b, confirmWith(true, nil))
	v := NewView(svc, outcome.KindLOPO)

	_, err := v.Create(ctx, 1, 5, 50)
	assert.ErrorIs(t, err, ErrNoCourse)

	ms, err := v.Select(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ms)

	m, err := v.Create(ctx, 1, 5, 50)
	require.NoError(t, err)
	_, shown := v.Mappings()
	require.Len(t, shown, 1)
	assert.Equal(t, outcome.Percentage(50), shown[0].Percentage())

	_, err = v.Update(ctx, m.ID, 25)
	require.NoError(t, err)
	_, shown = v.Mappings()
	require.Len(t, shown, 1)
	assert.Equal(t, outcome.Percentage(25), shown[0].Percentage())

	deleted, err := v.Delete(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, shown = v.Mappings()
	assert.Empty(t, shown)
}
