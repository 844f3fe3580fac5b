// Package viewer wires the transport session, reconciler, world store,
// render loop and telemetry into one running client.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/soupview/camera"
	"github.com/pthm-cable/soupview/config"
	"github.com/pthm-cable/soupview/display"
	"github.com/pthm-cable/soupview/inspector"
	"github.com/pthm-cable/soupview/reconcile"
	"github.com/pthm-cable/soupview/renderer"
	"github.com/pthm-cable/soupview/telemetry"
	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/world"
)

// ErrUnknownPreset is returned by AddPreset for names not in the config.
var ErrUnknownPreset = errors.New("unknown species preset")

// telemetryPoll is how often the stats window is checked for a flush.
const telemetryPoll = 250 * time.Millisecond

// Options configures a Viewer beyond the loaded config.
type Options struct {
	MetricsAddr string // Empty disables the exporter
	OutputDir   string // Empty disables CSV output
	MaxFrames   int    // Stop after N drawn frames, 0 for unlimited
	Registry    *prometheus.Registry
	Logger      *slog.Logger
}

// Viewer is a running visualization client.
type Viewer struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	store      *world.Store
	display    *display.Store
	session    transport.Session
	reconciler *reconcile.Reconciler
	loop       *renderer.Loop
	perf       *telemetry.PerfCollector
	metrics    *telemetry.Metrics
	output     *telemetry.OutputManager

	mu        sync.Mutex
	selection inspector.Selection
	paused    bool
	collector *telemetry.Collector

	frames  atomic.Uint64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	closed  bool
}

// New assembles a viewer drawing onto canvas and reading from session.
func New(cfg *config.Config, session transport.Session, canvas renderer.Canvas, opts Options) (*Viewer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = cfg.Telemetry.OutputDir
	}
	if opts.MetricsAddr == "" {
		opts.MetricsAddr = cfg.Metrics.Addr
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	if err := output.WriteConfig(cfg); err != nil {
		output.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	v := &Viewer{
		cfg:     cfg,
		opts:    opts,
		logger:  opts.Logger.With("component", "viewer"),
		store:   world.NewStore(),
		display: display.NewStore(display.FromConfig(cfg.Render)),
		session: session,
		perf:    telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		output:  output,
	}
	v.metrics = telemetry.NewMetrics(opts.Registry, v.perf)

	observers := []reconcile.Observer{v.metrics}
	if output != nil {
		observers = append(observers, output)
	}
	v.reconciler = reconcile.New(v.store, reconcile.Options{
		ResyncOnConnect: cfg.Transport.ResyncOnConnect,
		Logger:          opts.Logger,
		Observers:       observers,
	})

	v.loop = renderer.NewLoop(v.store, v.display, canvas, renderer.LoopOptions{
		TargetFPS:  cfg.Screen.TargetFPS,
		Background: renderer.ParseHex(cfg.Render.Background, renderer.Black),
		LinkAlpha:  cfg.Render.LinkAlpha,
		Perf:       v.perf,
		Logger:     opts.Logger,
		OnFrame:    v.onFrame,
	})
	return v, nil
}

// Store returns the world store.
func (v *Viewer) Store() *world.Store { return v.store }

// Display returns the display option store.
func (v *Viewer) Display() *display.Store { return v.display }

// Loop returns the render loop.
func (v *Viewer) Loop() *renderer.Loop { return v.loop }

// Reconciler returns the reconciler feeding the store.
func (v *Viewer) Reconciler() *reconcile.Reconciler { return v.reconciler }

// Start connects the session and begins reconciling, rendering on sched and
// collecting telemetry. It returns once everything is running.
func (v *Viewer) Start(ctx context.Context, sched renderer.Scheduler) error {
	v.mu.Lock()
	if v.started {
		v.mu.Unlock()
		return errors.New("viewer already started")
	}
	v.started = true
	now := time.Now()
	v.collector = telemetry.NewCollector(v.cfg.Derived.StatsWindow, now)
	v.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	v.ctx, v.cancel = ctx, cancel

	if err := v.session.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("starting session: %w", err)
	}
	v.logger.Info("session started", "session", v.session.ID(), "kind", v.cfg.Transport.Kind)

	v.goroutine(func() {
		// The session closing for good ends the run.
		defer cancel()
		if err := v.reconciler.Run(ctx, v.session); err != nil && !errors.Is(err, context.Canceled) {
			v.logger.Error("reconciler stopped", "error", err)
		}
	})
	v.goroutine(func() { v.telemetryLoop(ctx) })

	if v.opts.MetricsAddr != "" {
		v.goroutine(func() {
			if err := v.metrics.Serve(ctx, v.opts.MetricsAddr, v.logger); err != nil {
				v.logger.Error("metrics server failed", "error", err)
			}
		})
	}

	if err := v.loop.Start(sched); err != nil {
		cancel()
		return fmt.Errorf("starting render loop: %w", err)
	}
	return nil
}

func (v *Viewer) goroutine(fn func()) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		fn()
	}()
}

// Run starts the viewer and blocks until ctx is cancelled or the frame limit
// is reached, then closes it.
func (v *Viewer) Run(ctx context.Context, sched renderer.Scheduler) error {
	if err := v.Start(ctx, sched); err != nil {
		return errors.Join(err, v.Close())
	}
	<-v.Done()
	return v.Close()
}

// Done is closed once the viewer stops running. It is nil before Start.
func (v *Viewer) Done() <-chan struct{} {
	if v.ctx == nil {
		return nil
	}
	return v.ctx.Done()
}

// Stop asks a running viewer to shut down.
func (v *Viewer) Stop() {
	if v.cancel != nil {
		v.cancel()
	}
}

// Close stops rendering, closes the session, waits for background work and
// flushes telemetry. Close is idempotent.
func (v *Viewer) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	v.loop.Stop()
	v.Stop()

	var errs []error
	if err := v.session.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
		errs = append(errs, fmt.Errorf("closing session: %w", err))
	}
	v.wg.Wait()

	if v.started {
		v.flushTelemetry(time.Now())
	}
	if err := v.output.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing output: %w", err))
	}

	v.logger.Info("viewer closed",
		"frames", v.frames.Load(),
		"reconcile", v.reconciler.Stats(),
		"loop", v.loop.Stats(),
	)
	return errors.Join(errs...)
}

// onFrame runs on the drawing goroutine with the loop locked.
func (v *Viewer) onFrame(_ *world.Snapshot, rep renderer.FrameReport) {
	n := v.frames.Add(1)
	if rep.Skipped > 0 {
		v.logger.Debug("frame skipped entities", "report", rep)
	}
	if v.opts.MaxFrames > 0 && n >= uint64(v.opts.MaxFrames) {
		v.logger.Info("max frames reached", "frames", n)
		v.Stop()
	}
}

// Frames returns the number of frames drawn so far.
func (v *Viewer) Frames() uint64 { return v.frames.Load() }

func (v *Viewer) telemetryLoop(ctx context.Context) {
	ticker := time.NewTicker(telemetryPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			v.mu.Lock()
			due := v.collector.ShouldFlush(now)
			v.mu.Unlock()
			if due {
				v.flushTelemetry(now)
			}
		}
	}
}

func (v *Viewer) counters() telemetry.Counters {
	rs := v.reconciler.Stats()
	ps := v.perf.Stats()
	return telemetry.Counters{
		PatchesApplied:  rs.Applied,
		PatchesRejected: rs.Rejected,
		PatchesEmpty:    rs.Empty,
		Resyncs:         rs.Resyncs,
		FramesDrawn:     ps.FramesDrawn,
		FramesSkipped:   ps.FramesSkipped,
	}
}

func (v *Viewer) flushTelemetry(now time.Time) {
	v.mu.Lock()
	st := v.collector.Flush(now, v.store.Snapshot(), v.counters(), v.reconciler.ConnectionState().String())
	v.mu.Unlock()

	perf := v.perf.Stats()
	v.logger.Info("telemetry", "stats", st, "perf", perf)

	if err := v.output.WriteTelemetry(st); err != nil {
		v.logger.Warn("telemetry write failed", "error", err)
	}
	if err := v.output.WritePerf(perf, st.WindowEndMS); err != nil {
		v.logger.Warn("perf write failed", "error", err)
	}
}

// Paused reports whether the last successful command paused the simulation.
func (v *Viewer) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// TogglePause sends pause or resume depending on the current state.
func (v *Viewer) TogglePause(ctx context.Context) error {
	paused := v.Paused()
	var cmd transport.Command = transport.Pause{}
	if paused {
		cmd = transport.Resume{}
	}
	if err := v.session.Send(ctx, cmd); err != nil {
		v.logger.Warn("command not sent", "type", cmd.Type(), "error", err)
		return err
	}

	v.mu.Lock()
	v.paused = !paused
	v.mu.Unlock()
	return nil
}

// AddPreset sends an add_species command built from the named config preset.
func (v *Viewer) AddPreset(ctx context.Context, name string) error {
	p, ok := v.cfg.Preset(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	cmd := AddSpeciesCommand(p)
	if err := v.session.Send(ctx, cmd); err != nil {
		v.logger.Warn("command not sent", "type", cmd.Type(), "preset", name, "error", err)
		return err
	}
	v.logger.Info("species requested", "preset", name, "count", cmd.InitialCount)
	return nil
}

// AddSpeciesCommand converts a config preset to a wire command.
func AddSpeciesCommand(p config.SpeciesPreset) transport.AddSpecies {
	kind := world.Kind(p.ParticleType)
	if kind == "" {
		kind = world.KindCreature
	}
	return transport.AddSpecies{
		Name:              p.Name,
		Color:             p.Color,
		Diet:              world.Diet(p.Diet),
		ReproductionStyle: world.ReproductionMode(p.ReproductionStyle),
		InitialCount:      p.InitialCount,
		Rules: transport.Rules{
			ReproductionRate:  p.Rules.ReproductionRate,
			EnergyConsumption: p.Rules.EnergyConsumption,
			MaxSpeed:          p.Rules.MaxSpeed,
			VisionRange:       p.Rules.VisionRange,
			SocialDistance:    p.Rules.SocialDistance,
			ParticleType:      kind,
		},
	}
}

// Camera runs fn with the render camera locked.
func (v *Viewer) Camera(fn func(c *camera.Camera)) {
	v.loop.WithCamera(fn)
}

// Select inspects the entity under screen point (sx, sy), or clears the
// selection when nothing is there.
func (v *Viewer) Select(sx, sy float64) (string, bool) {
	snap := v.store.Snapshot()
	scale := v.display.Options().ParticleScale

	var id string
	var ok bool
	v.loop.WithCamera(func(c *camera.Camera) {
		id, ok = inspector.Pick(snap, c, sx, sy, scale)
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	if !ok {
		v.selection.Deselect()
		return "", false
	}
	v.selection.SelectEntity(id)
	return id, true
}

// Deselect stops inspecting any entity.
func (v *Viewer) Deselect() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection.Deselect()
}

// ToggleSpecies filters statistics to one species, or back to all.
func (v *Viewer) ToggleSpecies(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection.ToggleSpecies(id)
}

// Panel gathers what the side panel shows for the current snapshot.
type Panel struct {
	Stats   inspector.Stats
	Species []inspector.SpeciesRow
	Filter  string
	Detail  *inspector.EntityDetail
}

// Panel computes the side panel contents from the latest snapshot.
func (v *Viewer) Panel() Panel {
	snap := v.store.Snapshot()

	v.mu.Lock()
	defer v.mu.Unlock()

	p := Panel{
		Stats:   v.selection.Stats(snap),
		Species: inspector.SpeciesList(snap),
		Filter:  v.selection.Species(),
	}
	if e, ok := v.selection.Entity(snap); ok {
		if d, ok := inspector.Detail(snap, e.ID); ok {
			p.Detail = &d
		}
	}
	return p
}

// Status is the HUD summary of the viewer.
type Status struct {
	Tick      int64
	Creatures int
	Plants    int
	Species   int
	Groups    int
	State     transport.State
	Paused    bool
	Rejected  uint64
}

// Status summarizes the latest snapshot and connection.
func (v *Viewer) Status() Status {
	snap := v.store.Snapshot()
	st := Status{
		Tick:     snap.Tick,
		Species:  snap.NumSpecies(),
		Groups:   snap.NumGroups(),
		State:    v.reconciler.ConnectionState(),
		Paused:   v.Paused(),
		Rejected: v.reconciler.Stats().Rejected,
	}
	snap.Entities(func(e *world.Entity) bool {
		if e.IsPlant() {
			st.Plants++
		} else {
			st.Creatures++
		}
		return true
	})
	return st
}
