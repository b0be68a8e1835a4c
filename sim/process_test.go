package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/os-sim/sim/internal/testutil"
)

func TestNewProcess_StartsNew(t *testing.T) {
	p := NewProcess(1, 64, 5, PriorityHigh, 7)
	assert.Equal(t, StateNew, p.State)
	assert.Equal(t, 5, p.Remaining)
	assert.Equal(t, int64(7), p.ArrivalTime)
	assert.Equal(t, []ProcessState{StateNew}, p.Path())
	assert.True(t, p.NeedsMemory())
	assert.True(t, p.Schedulable())
	assert.False(t, p.EligibleToRun())
}

func TestProcess_Lifecycle_RecordsTimesAndCounters(t *testing.T) {
	// GIVEN a 3-cycle process arriving at 0
	p := NewProcess(1, 10, 3, PriorityMedium, 0)

	// WHEN it is admitted, runs two cycles, blocks, returns and finishes
	require.True(t, p.Transition(StateReady, 0))
	require.True(t, p.Transition(StateRunning, 1))
	assert.False(t, p.ExecuteCycle(2))
	assert.False(t, p.ExecuteCycle(3))
	require.True(t, p.Transition(StateBlocked, 3))
	assert.Equal(t, BlockReasonIO, p.BlockReason)
	assert.False(t, p.Schedulable())
	require.True(t, p.Transition(StateReady, 6))
	require.True(t, p.Transition(StateRunning, 7))
	done := p.ExecuteCycle(8)

	// THEN completion derives every metric
	require.True(t, done)
	assert.Equal(t, StateTerminated, p.State)
	assert.Equal(t, int64(1), p.StartTime, "start time is recorded on first dispatch only")
	assert.Equal(t, 2, p.ContextSwitches)
	assert.Equal(t, 1, p.TimesBlocked)
	assert.Equal(t, int64(3), p.BlockedTime)
	assert.Equal(t, int64(8), p.CompletionTime)
	assert.Equal(t, int64(8), p.Turnaround)
	assert.Equal(t, int64(3), p.ServiceTime)
	assert.Equal(t, int64(5), p.WaitTime)
	testutil.AssertFloat64Equal(t, "efficiency", 37.5, p.Efficiency, 1e-9)
	testutil.AssertFloat64Equal(t, "block rate", 37.5, p.BlockRate, 1e-9)
	assert.Equal(t, []ProcessState{
		StateNew, StateReady, StateRunning, StateBlocked, StateReady, StateRunning, StateTerminated,
	}, p.Path())
}

func TestProcess_Transition_RejectsInvalidMoves(t *testing.T) {
	tests := []struct {
		name string
		path []ProcessState
		bad  ProcessState
	}{
		{"new cannot run", nil, StateRunning},
		{"new cannot block", nil, StateBlocked},
		{"ready cannot block", []ProcessState{StateReady}, StateBlocked},
		{"ready cannot terminate", []ProcessState{StateReady}, StateTerminated},
		{"blocked cannot run", []ProcessState{StateReady, StateRunning, StateBlocked}, StateRunning},
		{"terminated is final", []ProcessState{StateReady, StateRunning, StateTerminated}, StateReady},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProcess(1, 10, 3, PriorityLow, 0)
			for _, s := range tc.path {
				require.True(t, p.Transition(s, 0))
			}
			before := p.State
			assert.False(t, p.Transition(tc.bad, 1))
			assert.Equal(t, before, p.State)
		})
	}
}

func TestProcess_ExecuteCycle_OnlyWhileRunning(t *testing.T) {
	p := NewProcess(1, 10, 3, PriorityLow, 0)
	assert.False(t, p.ExecuteCycle(1))
	assert.Equal(t, 3, p.Remaining)
	assert.Equal(t, int64(0), p.CyclesExecuted)

	require.True(t, p.Transition(StateReady, 0))
	assert.True(t, p.EligibleToRun())
	assert.False(t, p.ExecuteCycle(1))
	assert.Equal(t, 3, p.Remaining)
}

func TestProcess_ExecuteCycle_CountsQuantumPerDispatch(t *testing.T) {
	p := NewProcess(1, 10, 10, PriorityLow, 0)
	p.Transition(StateReady, 0)
	p.Transition(StateRunning, 1)
	p.ExecuteCycle(2)
	p.ExecuteCycle(3)
	assert.Equal(t, 2, p.QuantumUsed)

	p.Transition(StateReady, 3)
	p.Transition(StateRunning, 4)
	assert.Equal(t, 0, p.QuantumUsed)
	assert.Equal(t, int64(2), p.CyclesExecuted)
}

func TestParsePriority(t *testing.T) {
	for name, want := range map[string]Priority{"low": PriorityLow, "medium": PriorityMedium, "high": PriorityHigh} {
		got, ok := ParsePriority(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}
	_, ok := ParsePriority("urgent")
	assert.False(t, ok)
	assert.False(t, IsValidPriority(""))
}
