package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
)

func TestErrand_RoleOf(t *testing.T) {
	requester := uuid.New()
	runner := uuid.New()
	stranger := uuid.New()

	e := &Errand{RequesterID: requester, RunnerID: &runner, Status: valueobject.ErrandStatusInProgress}

	assert.Equal(t, ParticipantRequester, e.RoleOf(requester))
	assert.Equal(t, ParticipantRunner, e.RoleOf(runner))
	assert.Equal(t, ParticipantNone, e.RoleOf(stranger))
	assert.Equal(t, ParticipantNone, e.RoleOf(uuid.Nil))
}

func TestErrand_RoleOf_StaleRunnerAfterCancel(t *testing.T) {
	runner := uuid.New()
	e := &Errand{RequesterID: uuid.New(), RunnerID: &runner, Status: valueobject.ErrandStatusCancelled}

	assert.Equal(t, ParticipantNone, e.RoleOf(runner))
	assert.Equal(t, ParticipantRequester, e.RoleOf(e.RequesterID))
}

func TestErrand_Counterpart(t *testing.T) {
	requester := uuid.New()
	runner := uuid.New()
	e := &Errand{RequesterID: requester, RunnerID: &runner, Status: valueobject.ErrandStatusCompleted}

	other, ok := e.Counterpart(requester)
	assert.True(t, ok)
	assert.Equal(t, runner, other)

	other, ok = e.Counterpart(runner)
	assert.True(t, ok)
	assert.Equal(t, requester, other)

	_, ok = e.Counterpart(uuid.New())
	assert.False(t, ok)

	open := &Errand{RequesterID: requester, Status: valueobject.ErrandStatusOpen}
	_, ok = open.Counterpart(requester)
	assert.False(t, ok)
}

func TestErrand_Payout(t *testing.T) {
	tip := 150.0
	assert.Equal(t, 1000.0, (&Errand{Price: 1000}).Payout())
	assert.Equal(t, 1150.0, (&Errand{Price: 1000, Tip: &tip}).Payout())
}

func TestComputeRatingStats(t *testing.T) {
	stats := ComputeRatingStats([]int{5, 5, 4})

	assert.Equal(t, 4.67, stats.Average)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 0, 4: 1, 5: 2}, stats.Distribution)
}

func TestComputeRatingStats_Empty(t *testing.T) {
	stats := ComputeRatingStats(nil)

	assert.Equal(t, 0.0, stats.Average)
	assert.Equal(t, 0, stats.Count)
	assert.Len(t, stats.Distribution, 5)
	for s := 1; s <= 5; s++ {
		assert.Equal(t, 0, stats.Distribution[s])
	}
}
