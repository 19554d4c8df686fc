package auth

import (
	"fmt"
	"sync"
	"time"
)

const (
	// MaxFailedAttempts is the number of consecutive failed submissions
	// that trips the lockout
	MaxFailedAttempts = 5

	// LockoutDuration is how long submissions are refused once locked
	LockoutDuration = 5 * time.Minute
)

// LockedOutError is returned while a session is locked. The remaining
// lockout time is rounded up to whole minutes.
type LockedOutError struct {
	RemainingMinutes int
}

func (e *LockedOutError) Error() string {
	unit := "minute"
	if e.RemainingMinutes != 1 {
		unit = "minutes"
	}
	return fmt.Sprintf("too many failed attempts, try again in %d %s", e.RemainingMinutes, unit)
}

// LockoutGuard throttles repeated failed credential submissions for one
// client session. Reaching the failure threshold locks the session for the
// lockout window; while locked every submission is refused before any
// credential check happens, so no attempt reaches the identity store.
//
// The guard holds at most one pending unlock timer. Lockout is only entered
// from the unlocked state, so scheduling a new timer always follows a
// cancel of the previous one.
type LockoutGuard struct {
	mu sync.Mutex

	maxAttempts int
	lockFor     time.Duration
	now         func() time.Time

	failedAttempts int
	locked         bool
	lockoutEndsAt  time.Time
	unlockTimer    *time.Timer
}

// NewLockoutGuard creates a guard in the unlocked state with a zero counter.
func NewLockoutGuard(maxAttempts int, lockFor time.Duration) *LockoutGuard {
	return &LockoutGuard{
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
		now:         time.Now,
	}
}

// Allow reports whether a credential submission may proceed. While locked it
// returns a LockedOutError naming the remaining minutes. If the lockout
// window has already elapsed the guard unlocks and the submission proceeds
// with a fresh counter.
func (g *LockoutGuard) Allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.locked {
		return nil
	}

	now := g.now()
	if !now.Before(g.lockoutEndsAt) {
		// The timer normally unlocks first; the lazy check keeps the
		// guard correct if it fires late.
		g.unlockLocked()
		return nil
	}

	remaining := g.lockoutEndsAt.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return &LockedOutError{RemainingMinutes: minutes}
}

// RecordFailure counts a failed credential check. Reaching the threshold
// transitions to the locked state and schedules the automatic unlock.
// Returns whether the session is now locked and, if not, how many attempts
// remain before it would be.
func (g *LockoutGuard) RecordFailure() (locked bool, attemptsRemaining int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.locked {
		return true, 0
	}

	g.failedAttempts++
	if g.failedAttempts >= g.maxAttempts {
		g.locked = true
		g.lockoutEndsAt = g.now().Add(g.lockFor)
		g.unlockTimer = time.AfterFunc(g.lockFor, g.expireLock)
		return true, 0
	}

	return false, g.maxAttempts - g.failedAttempts
}

// RecordSuccess resets the failure counter after a successful authentication.
func (g *LockoutGuard) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failedAttempts = 0
}

// Close cancels any pending unlock timer. Call when the owning session is
// torn down.
func (g *LockoutGuard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelTimerLocked()
}

// FailedAttempts returns the current consecutive-failure count.
func (g *LockoutGuard) FailedAttempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failedAttempts
}

// IsLocked reports whether the guard is in the locked state.
func (g *LockoutGuard) IsLocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked
}

// LockoutEndsAt returns when the current lockout window ends. Zero while
// unlocked.
func (g *LockoutGuard) LockoutEndsAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lockoutEndsAt
}

func (g *LockoutGuard) expireLock() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.locked && !g.now().Before(g.lockoutEndsAt) {
		g.unlockLocked()
	}
}

// unlockLocked resets to the unlocked state. Caller must hold g.mu.
func (g *LockoutGuard) unlockLocked() {
	g.locked = false
	g.failedAttempts = 0
	g.lockoutEndsAt = time.Time{}
	g.cancelTimerLocked()
}

// cancelTimerLocked stops the pending unlock timer. Caller must hold g.mu.
func (g *LockoutGuard) cancelTimerLocked() {
	if g.unlockTimer != nil {
		g.unlockTimer.Stop()
		g.unlockTimer = nil
	}
}

// LockoutTracker hands out one LockoutGuard per client key. The login
// handler keys guards by remote IP, the closest server-side equivalent of a
// browser session.
type LockoutTracker struct {
	mu          sync.Mutex
	guards      map[string]*LockoutGuard
	maxAttempts int
	lockFor     time.Duration
}

func NewLockoutTracker(maxAttempts int, lockFor time.Duration) *LockoutTracker {
	return &LockoutTracker{
		guards:      make(map[string]*LockoutGuard),
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
	}
}

// Guard returns the lockout guard for the given client key, creating it on
// first use.
func (t *LockoutTracker) Guard(key string) *LockoutGuard {
	t.mu.Lock()
	defer t.mu.Unlock()

	guard, ok := t.guards[key]
	if !ok {
		guard = NewLockoutGuard(t.maxAttempts, t.lockFor)
		t.guards[key] = guard
	}
	return guard
}

// Close tears down all guards, cancelling their pending unlock timers.
func (t *LockoutTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, guard := range t.guards {
		guard.Close()
		delete(t.guards, key)
	}
}
