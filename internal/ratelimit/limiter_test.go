package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_DeniesAfterMaxThenRecovers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := NewWithClock(3, time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		if !l.Admit(7) {
			t.Fatalf("request %d should be admitted", i+1)
		}
		clock.Advance(time.Second)
	}
	if l.Admit(7) {
		t.Fatal("4th request inside the window should be denied")
	}
	if got := l.Count(7); got != 3 {
		t.Fatalf("denied request must not be recorded, count=%d", got)
	}

	// oldest admission was at t0; t0+60s is outside the window.
	clock.Advance(57 * time.Second)
	if !l.Admit(7) {
		t.Fatal("request after the oldest admission expired should be admitted")
	}
	if l.Admit(7) {
		t.Fatal("window is full again and should deny")
	}
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := NewWithClock(1, time.Minute, clock.Now)
	if !l.Admit(1) {
		t.Fatal("first identity should be admitted")
	}
	if !l.Admit(2) {
		t.Fatal("second identity should have its own window")
	}
	if l.Admit(1) {
		t.Fatal("first identity should be denied")
	}
}

func TestLimiter_SlidingWindowNeverExceedsMax(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	const max = 10
	l := NewWithClock(max, time.Minute, clock.Now)

	var admitted []time.Time
	for i := 0; i < 600; i++ {
		if l.Admit(3) {
			admitted = append(admitted, clock.Now())
		}
		clock.Advance(time.Duration(1+i%7) * time.Second)
	}
	for i := range admitted {
		inWindow := 0
		for j := i; j < len(admitted) && admitted[j].Sub(admitted[i]) < time.Minute; j++ {
			inWindow++
		}
		if inWindow > max {
			t.Fatalf("window starting at %v admitted %d requests", admitted[i], inWindow)
		}
	}
}

func TestLimiter_ConcurrentSameIdentityAdmitsExactlyMax(t *testing.T) {
	l := New(10, time.Minute)
	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit(42) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := admitted.Load(); got != 10 {
		t.Fatalf("expected exactly 10 admissions, got %d", got)
	}
}
