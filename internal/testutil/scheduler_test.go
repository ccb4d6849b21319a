package testutil

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")

// TestManualScheduler_Lifecycle tests the schedule, reset, cancel
// sequence and its bookkeeping.
func TestManualScheduler_Lifecycle(t *testing.T) {
	s := NewManualScheduler()

	require.NoError(t, s.Schedule(testID, time.Second))
	assert.True(t, s.Armed(testID))
	assert.Equal(t, 1, s.ArmedCount())

	require.NoError(t, s.Reset(testID, 2*time.Second))
	assert.Equal(t, 1, s.Resets(testID))
	d, ok := s.Deadline(testID)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	require.NoError(t, s.Cancel(testID))
	assert.False(t, s.Armed(testID))
	assert.Equal(t, 0, s.ArmedCount())
}

// TestManualScheduler_ContractErrors tests that the double mirrors the
// production scheduler's error cases.
func TestManualScheduler_ContractErrors(t *testing.T) {
	s := NewManualScheduler()

	assert.Error(t, s.Reset(testID, time.Second))
	assert.Error(t, s.Cancel(testID))

	require.NoError(t, s.Schedule(testID, time.Second))
	assert.Error(t, s.Schedule(testID, time.Second))
}

// TestManualScheduler_FailureInjection tests the Fail* hooks.
func TestManualScheduler_FailureInjection(t *testing.T) {
	s := NewManualScheduler()
	s.FailSchedule = errors.New("boom")

	assert.ErrorIs(t, s.Schedule(testID, time.Second), s.FailSchedule)
	assert.False(t, s.Armed(testID), "failed schedule must not arm")

	s.FailSchedule = nil
	require.NoError(t, s.Schedule(testID, time.Second))

	s.FailReset = errors.New("boom reset")
	assert.ErrorIs(t, s.Reset(testID, time.Second), s.FailReset)

	s.FailCancel = errors.New("boom cancel")
	assert.ErrorIs(t, s.Cancel(testID), s.FailCancel)
	assert.True(t, s.Armed(testID), "failed cancel must leave the alarm")
}
