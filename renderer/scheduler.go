package renderer

import (
	"sync"
	"time"
)

// Scheduler runs fn once at the next frame opportunity. The returned cancel
// func drops the request if it has not run yet.
type Scheduler interface {
	Schedule(fn func(now time.Time)) (cancel func())
}

// TimerScheduler schedules frames on timers, for headless runs.
type TimerScheduler struct {
	Interval time.Duration
}

// NewTimerScheduler creates a timer scheduler firing every interval.
func NewTimerScheduler(interval time.Duration) TimerScheduler {
	if interval <= 0 {
		interval = time.Second / DefaultTargetFPS
	}
	return TimerScheduler{Interval: interval}
}

func (s TimerScheduler) Schedule(fn func(now time.Time)) func() {
	t := time.AfterFunc(s.Interval, func() { fn(time.Now()) })
	return func() { t.Stop() }
}

// PumpScheduler holds at most one pending frame until Pump is called. It
// drives the loop from a thread that owns the drawing surface.
type PumpScheduler struct {
	mu      sync.Mutex
	pending func(time.Time)
	gen     uint64
}

// NewPumpScheduler creates an empty pump scheduler.
func NewPumpScheduler() *PumpScheduler {
	return &PumpScheduler{}
}

func (p *PumpScheduler) Schedule(fn func(now time.Time)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	gen := p.gen
	p.pending = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.gen == gen {
			p.pending = nil
		}
	}
}

// Pump runs the pending frame, if any, and reports whether one ran.
func (p *PumpScheduler) Pump(now time.Time) bool {
	p.mu.Lock()
	fn := p.pending
	p.pending = nil
	p.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(now)
	return true
}

// Pending reports whether a frame is waiting.
func (p *PumpScheduler) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}
