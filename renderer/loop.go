package renderer

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pthm-cable/soupview/camera"
	"github.com/pthm-cable/soupview/display"
	"github.com/pthm-cable/soupview/telemetry"
	"github.com/pthm-cable/soupview/world"
)

// ErrStopped is returned when starting a loop that has been stopped.
var ErrStopped = errors.New("render loop stopped")

// DefaultTargetFPS is the frame rate cap when none is configured.
const DefaultTargetFPS = 60

// LoopOptions configures a Loop.
type LoopOptions struct {
	TargetFPS  int
	Background Color
	LinkAlpha  float64
	Perf       *telemetry.PerfCollector
	Logger     *slog.Logger

	// OnFrame is called after each drawn frame, on the drawing goroutine.
	OnFrame func(snap *world.Snapshot, rep FrameReport)
}

// LoopStats counts loop activity since creation.
type LoopStats struct {
	Drawn   uint64
	Skipped uint64
	Refits  uint64
	Panics  uint64
	Last    FrameReport
	LastAt  time.Time
}

// LogValue implements slog.LogValuer for structured logging.
func (s LoopStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("drawn", s.Drawn),
		slog.Uint64("skipped", s.Skipped),
		slog.Uint64("refits", s.Refits),
		slog.Uint64("panics", s.Panics),
		slog.Any("last", s.Last),
	)
}

// Loop draws the latest committed snapshot at most once per frame budget,
// independent of how often the store changes.
type Loop struct {
	store   *world.Store
	display *display.Store
	canvas  Canvas
	frame   *Frame
	budget  time.Duration
	perf    *telemetry.PerfCollector
	logger  *slog.Logger
	onFrame func(*world.Snapshot, FrameReport)

	mu        sync.Mutex
	cam       *camera.Camera
	applied   camera.Transform
	hasApply  bool
	last      time.Time
	drawnOnce bool
	stats     LoopStats
	sched     Scheduler
	cancel    func()
	stopped   bool
}

// NewLoop creates a loop drawing store snapshots onto canvas.
func NewLoop(store *world.Store, disp *display.Store, canvas Canvas, opts LoopOptions) *Loop {
	if opts.TargetFPS <= 0 {
		opts.TargetFPS = DefaultTargetFPS
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "render")

	snap := store.Snapshot()
	w, h := canvas.Size()

	return &Loop{
		store:   store,
		display: disp,
		canvas:  canvas,
		frame:   NewFrame(opts.Background, opts.LinkAlpha, opts.Perf, logger),
		budget:  time.Second / time.Duration(opts.TargetFPS),
		perf:    opts.Perf,
		logger:  logger,
		onFrame: opts.OnFrame,
		cam:     camera.New(w, h, snap.Width, snap.Height),
	}
}

// Budget returns the minimum interval between drawn frames.
func (l *Loop) Budget() time.Duration { return l.budget }

// WithCamera runs fn with the loop's camera locked, for pan/zoom and picking.
func (l *Loop) WithCamera(fn func(c *camera.Camera)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.cam)
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() LoopStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Tick draws a frame if at least one frame budget has passed since the last
// drawn frame, and reports whether it drew.
func (l *Loop) Tick(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return false
	}
	if l.drawnOnce && now.Sub(l.last) < l.budget {
		l.stats.Skipped++
		if l.perf != nil {
			l.perf.RecordSkip()
		}
		return false
	}

	snap := l.store.Snapshot()
	l.fit(snap)

	rep, ok := l.draw(snap)
	if !ok {
		l.stats.Panics++
	}

	l.last = now
	l.drawnOnce = true
	l.stats.Drawn++
	l.stats.Last = rep
	l.stats.LastAt = now

	if l.onFrame != nil {
		l.onFrame(snap, rep)
	}
	return true
}

// fit refits the camera when the container or world size changed, and pushes
// the transform to the canvas only when it differs from the last one applied.
func (l *Loop) fit(snap *world.Snapshot) {
	w, h := l.canvas.Size()
	if l.cam.Resize(w, h, snap.Width, snap.Height) {
		l.stats.Refits++
		l.logger.Debug("viewport refit", "width", w, "height", h, "scale", l.cam.Scale())
	}
	if t := l.cam.Transform(); !l.hasApply || t != l.applied {
		l.canvas.SetTransform(t)
		l.applied = t
		l.hasApply = true
	}
}

func (l *Loop) draw(snap *world.Snapshot) (rep FrameReport, ok bool) {
	if l.perf != nil {
		l.perf.StartFrame()
		defer l.perf.EndFrame()
	}
	if fb, isBracket := l.canvas.(FrameBracket); isBracket {
		fb.BeginFrame()
		defer fb.EndFrame()
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("frame draw failed", "tick", snap.Tick, "panic", r)
			ok = false
		}
	}()
	return l.frame.Draw(l.canvas, snap, l.display.Options()), true
}

// Start schedules frames on s until Stop. Each scheduled callback draws if
// the budget allows and schedules the next one.
func (l *Loop) Start(s Scheduler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStopped
	}
	if l.sched != nil {
		return nil
	}
	l.sched = s
	l.cancel = s.Schedule(l.run)
	return nil
}

func (l *Loop) run(now time.Time) {
	l.Tick(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || l.sched == nil {
		return
	}
	l.cancel = l.sched.Schedule(l.run)
}

// Stop cancels any pending frame and disposes the loop. No frame is drawn
// after Stop returns. Stop is idempotent.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.sched = nil
	l.logger.Debug("render loop stopped", "stats", l.stats)
}
