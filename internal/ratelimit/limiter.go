package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most max requests per identity within a trailing window.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[int64]*slidingWindow
}

type slidingWindow struct {
	mu    sync.Mutex
	stamp []time.Time
}

func New(max int, window time.Duration) *Limiter {
	return NewWithClock(max, window, time.Now)
}

func NewWithClock(max int, window time.Duration, now func() time.Time) *Limiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{max: max, window: window, now: now, windows: map[int64]*slidingWindow{}}
}

// Admit records a request for id and reports whether it fits the window.
// A rejected request leaves the window untouched.
func (l *Limiter) Admit(id int64) bool {
	w := l.windowFor(id)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	w.prune(now, l.window)
	if len(w.stamp) >= l.max {
		return false
	}
	w.stamp = append(w.stamp, now)
	return true
}

// Count returns the number of requests for id still inside the window.
func (l *Limiter) Count(id int64) int {
	w := l.windowFor(id)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(l.now(), l.window)
	return len(w.stamp)
}

func (l *Limiter) windowFor(id int64) *slidingWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[id]
	if !ok {
		w = &slidingWindow{}
		l.windows[id] = w
	}
	return w
}

func (w *slidingWindow) prune(now time.Time, window time.Duration) {
	keep := 0
	for _, t := range w.stamp {
		if now.Sub(t) < window {
			w.stamp[keep] = t
			keep++
		}
	}
	clear(w.stamp[keep:])
	w.stamp = w.stamp[:keep]
}
