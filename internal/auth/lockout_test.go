package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance a guard's notion of time without waiting on
// real timers.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestGuard() (*LockoutGuard, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	guard := NewLockoutGuard(MaxFailedAttempts, LockoutDuration)
	guard.now = clock.now
	return guard, clock
}

func TestLockoutGuard_StaysUnlockedBelowThreshold(t *testing.T) {
	guard, _ := newTestGuard()
	t.Cleanup(guard.Close)

	for i := 1; i < MaxFailedAttempts; i++ {
		require.NoError(t, guard.Allow())
		locked, remaining := guard.RecordFailure()
		require.False(t, locked)
		require.Equal(t, MaxFailedAttempts-i, remaining)
	}

	require.False(t, guard.IsLocked())
	require.Equal(t, MaxFailedAttempts-1, guard.FailedAttempts())
	require.NoError(t, guard.Allow())
}

func TestLockoutGuard_LocksOnThresholdFailure(t *testing.T) {
	guard, clock := newTestGuard()
	t.Cleanup(guard.Close)

	for i := 0; i < MaxFailedAttempts-1; i++ {
		locked, _ := guard.RecordFailure()
		require.False(t, locked)
	}

	locked, remaining := guard.RecordFailure()
	require.True(t, locked)
	require.Zero(t, remaining)
	require.True(t, guard.IsLocked())
	require.Equal(t, clock.now().Add(LockoutDuration), guard.LockoutEndsAt())
}

func TestLockoutGuard_RefusesWhileLocked(t *testing.T) {
	guard, clock := newTestGuard()
	t.Cleanup(guard.Close)

	for i := 0; i < MaxFailedAttempts; i++ {
		guard.RecordFailure()
	}

	err := guard.Allow()
	require.Error(t, err)

	var lockErr *LockedOutError
	require.True(t, errors.As(err, &lockErr))
	require.Equal(t, 5, lockErr.RemainingMinutes)

	// Remaining time rounds up to whole minutes.
	clock.advance(3*time.Minute + 30*time.Second)
	err = guard.Allow()
	require.True(t, errors.As(err, &lockErr))
	require.Equal(t, 2, lockErr.RemainingMinutes)
}

func TestLockoutGuard_FailuresWhileLockedDoNotExtend(t *testing.T) {
	guard, _ := newTestGuard()
	t.Cleanup(guard.Close)

	for i := 0; i < MaxFailedAttempts; i++ {
		guard.RecordFailure()
	}
	endsAt := guard.LockoutEndsAt()

	locked, remaining := guard.RecordFailure()
	require.True(t, locked)
	require.Zero(t, remaining)
	require.Equal(t, endsAt, guard.LockoutEndsAt())
	require.Equal(t, MaxFailedAttempts, guard.FailedAttempts())
}

func TestLockoutGuard_UnlocksAfterWindowElapses(t *testing.T) {
	guard, clock := newTestGuard()
	t.Cleanup(guard.Close)

	for i := 0; i < MaxFailedAttempts; i++ {
		guard.RecordFailure()
	}
	require.True(t, guard.IsLocked())

	clock.advance(LockoutDuration)

	require.NoError(t, guard.Allow())
	require.False(t, guard.IsLocked())
	require.Zero(t, guard.FailedAttempts())

	// A fresh lockout takes the full threshold again.
	locked, remaining := guard.RecordFailure()
	require.False(t, locked)
	require.Equal(t, MaxFailedAttempts-1, remaining)
}

func TestLockoutGuard_TimerUnlocks(t *testing.T) {
	guard := NewLockoutGuard(2, 20*time.Millisecond)
	t.Cleanup(guard.Close)

	guard.RecordFailure()
	locked, _ := guard.RecordFailure()
	require.True(t, locked)

	require.Eventually(t, func() bool {
		return !guard.IsLocked()
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, guard.Allow())
	require.Zero(t, guard.FailedAttempts())
}

func TestLockoutGuard_SuccessResetsCounter(t *testing.T) {
	guard, _ := newTestGuard()
	t.Cleanup(guard.Close)

	guard.RecordFailure()
	guard.RecordFailure()
	require.Equal(t, 2, guard.FailedAttempts())

	guard.RecordSuccess()
	require.Zero(t, guard.FailedAttempts())

	// The reset gives back the full threshold.
	locked, remaining := guard.RecordFailure()
	require.False(t, locked)
	require.Equal(t, MaxFailedAttempts-1, remaining)
}

func TestLockedOutError_Message(t *testing.T) {
	err := &LockedOutError{RemainingMinutes: 1}
	require.Equal(t, "too many failed attempts, try again in 1 minute", err.Error())

	err = &LockedOutError{RemainingMinutes: 5}
	require.Equal(t, "too many failed attempts, try again in 5 minutes", err.Error())
}

func TestLockoutTracker_GuardPerKey(t *testing.T) {
	tracker := NewLockoutTracker(MaxFailedAttempts, LockoutDuration)
	t.Cleanup(tracker.Close)

	a := tracker.Guard("10.0.0.1")
	b := tracker.Guard("10.0.0.2")
	require.NotSame(t, a, b)
	require.Same(t, a, tracker.Guard("10.0.0.1"))

	// Locking one client leaves the other untouched.
	for i := 0; i < MaxFailedAttempts; i++ {
		a.RecordFailure()
	}
	require.True(t, a.IsLocked())
	require.False(t, b.IsLocked())
	require.NoError(t, b.Allow())
}
