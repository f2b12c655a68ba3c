package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_WalksHappyPath(t *testing.T) {
	state := StateReceived
	var stages []Stage

	for !state.IsTerminal() {
		if stage := StageFrom(state); stage != StageNone {
			stages = append(stages, stage)
		}

		next, err := Advance(state)
		require.NoError(t, err)

		state = next
	}

	assert.Equal(t, StateDone, state)
	assert.Equal(t, Stages, stages)
}

func TestAdvance_TerminalStates(t *testing.T) {
	for _, s := range []State{StateDone, StateFailed} {
		_, err := Advance(s)
		require.Error(t, err, s)
		assert.Equal(t, StageNone, StageFrom(s))
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []Outcome{
		{State: StateDone, StoredID: 1},
		{State: StateDone, StoredID: 1, AlreadyIssued: true},
		{State: StateFailed, FailedStage: StageNormalize},
		{State: StateFailed, FailedStage: StageDeliver, StoredID: 3},
	}

	s := Summarize(outcomes)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Done)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 3, s.Issued)
	assert.Equal(t, 2, s.Notified)
	assert.Equal(t, map[Stage]int{StageNormalize: 1, StageDeliver: 1}, s.ByStage)
}

func TestBatchConfig_Normalized(t *testing.T) {
	cfg := BatchConfig{MaxConcurrency: -2, PerRecordTimeout: -1, RunTimeout: -1, MaxRecords: -5}.Normalized()

	assert.Equal(t, BatchConfig{MaxConcurrency: 1}, cfg)
}
