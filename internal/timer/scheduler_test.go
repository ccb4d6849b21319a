package timer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	idB = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")
)

// waitExpiry reads one expiry token or fails the test after a generous
// grace period.
func waitExpiry(t *testing.T, s *Scheduler) Expiry {
	t.Helper()
	select {
	case e := <-s.Expired():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no expiry delivered")
		return Expiry{}
	}
}

// TestScheduler_ExpiryDelivered tests the basic arm, fire, confirm path.
func TestScheduler_ExpiryDelivered(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, time.Millisecond))

	e := waitExpiry(t, s)
	assert.Equal(t, idA, e.ID)
	assert.True(t, s.Confirm(e), "fresh token must confirm")
}

// TestScheduler_ConfirmConsumesAlarm tests that a confirmed token can
// not evict twice.
func TestScheduler_ConfirmConsumesAlarm(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, time.Millisecond))
	e := waitExpiry(t, s)

	require.True(t, s.Confirm(e))
	assert.False(t, s.Confirm(e), "second confirm of the same token")
}

// TestScheduler_ResetSupersedesQueuedExpiry tests the boundary race: a
// source transmits right at the timeout, its packet resets the alarm
// while the expiry token is still queued. The reset must succeed and
// the stale token must not confirm.
func TestScheduler_ResetSupersedesQueuedExpiry(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, time.Millisecond))
	e := waitExpiry(t, s)

	// Alarm fired but not yet confirmed: the source's next packet lands.
	require.NoError(t, s.Reset(idA, time.Hour), "fired alarm must still accept a reset")

	assert.False(t, s.Confirm(e), "superseded token must not evict a live source")
	require.NoError(t, s.Cancel(idA))
}

// TestScheduler_CancelSupersedesQueuedExpiry tests that a termination
// racing a queued expiry wins: the token is dead after Cancel.
func TestScheduler_CancelSupersedesQueuedExpiry(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, time.Millisecond))
	e := waitExpiry(t, s)

	require.NoError(t, s.Cancel(idA))

	assert.False(t, s.Confirm(e))
}

// TestScheduler_StaleTokenAfterReadmission tests that a token from
// before a cancel/re-admission cycle cannot confirm against the fresh
// alarm of the re-admitted source.
func TestScheduler_StaleTokenAfterReadmission(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, time.Millisecond))
	stale := waitExpiry(t, s)

	// Terminate and re-admit while the old token is still in flight.
	require.NoError(t, s.Cancel(idA))
	require.NoError(t, s.Schedule(idA, time.Hour))

	assert.False(t, s.Confirm(stale), "token predates the current arming")
	require.NoError(t, s.Cancel(idA))
}

// TestScheduler_DuplicateScheduleFails tests the one-alarm-per-identity
// rule.
func TestScheduler_DuplicateScheduleFails(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, time.Hour))

	assert.Error(t, s.Schedule(idA, time.Hour))
}

// TestScheduler_CancelSuppressesExpiry tests that a cancelled alarm
// never delivers.
func TestScheduler_CancelSuppressesExpiry(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, 20*time.Millisecond))
	require.NoError(t, s.Cancel(idA))

	select {
	case e := <-s.Expired():
		t.Fatalf("unexpected expiry for %s", e.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestScheduler_CancelUnknownFails tests cancel of an identity that
// holds no alarm.
func TestScheduler_CancelUnknownFails(t *testing.T) {
	s := New()
	defer s.Close()

	assert.Error(t, s.Cancel(idA))
}

// TestScheduler_ResetPostponesExpiry tests that a reset alarm fires
// once, on the new deadline.
func TestScheduler_ResetPostponesExpiry(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, time.Hour))
	require.NoError(t, s.Reset(idA, time.Millisecond))

	e := waitExpiry(t, s)
	assert.Equal(t, idA, e.ID)
	assert.True(t, s.Confirm(e))

	select {
	case e := <-s.Expired():
		t.Fatalf("second expiry for %s after a single reset", e.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestScheduler_ResetUnknownFails tests reset of an identity that holds
// no alarm.
func TestScheduler_ResetUnknownFails(t *testing.T) {
	s := New()
	defer s.Close()

	assert.Error(t, s.Reset(idA, time.Second))
}

// TestScheduler_RescheduleAfterExpiry tests that a confirmed expiry
// frees the identity for a fresh Schedule, mirroring source
// re-admission after a timeout.
func TestScheduler_RescheduleAfterExpiry(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, time.Millisecond))
	require.True(t, s.Confirm(waitExpiry(t, s)))

	require.NoError(t, s.Schedule(idA, time.Millisecond))
	e := waitExpiry(t, s)
	assert.Equal(t, idA, e.ID)
	assert.True(t, s.Confirm(e))
}

// TestScheduler_IndependentAlarms tests that two identities expire
// independently.
func TestScheduler_IndependentAlarms(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Schedule(idA, time.Millisecond))
	require.NoError(t, s.Schedule(idB, time.Millisecond))

	got := map[uuid.UUID]bool{}
	for i := 0; i < 2; i++ {
		e := waitExpiry(t, s)
		require.True(t, s.Confirm(e))
		got[e.ID] = true
	}

	assert.True(t, got[idA])
	assert.True(t, got[idB])
}

// TestScheduler_ClosedRejectsEverything tests the post-Close contract.
func TestScheduler_ClosedRejectsEverything(t *testing.T) {
	s := New()
	require.NoError(t, s.Schedule(idA, time.Hour))

	s.Close()

	assert.ErrorIs(t, s.Schedule(idB, time.Hour), ErrClosed)
	assert.ErrorIs(t, s.Reset(idA, time.Hour), ErrClosed)
	assert.ErrorIs(t, s.Cancel(idA), ErrClosed)
	assert.False(t, s.Confirm(Expiry{ID: idA}))
}

// TestScheduler_CloseIdempotent tests double Close.
func TestScheduler_CloseIdempotent(t *testing.T) {
	s := New()
	s.Close()
	s.Close()
}
