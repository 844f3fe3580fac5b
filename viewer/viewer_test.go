package viewer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/soupview/config"
	"github.com/pthm-cable/soupview/renderer"
	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/world"
)

const patch = `{
	"particles": {
		"a": {"id": "a", "position": {"x": 100, "y": 100}, "velocity": {"x": 1, "y": 0},
		      "attributes": {"energy": 50, "hunger": 10, "size": 3, "diet": "herbivore"},
		      "rules": {"visionRange": 40, "particleType": "creature"},
		      "speciesId": "s1", "color": "#3498DB"},
		"b": {"id": "b", "position": {"x": 300, "y": 300},
		      "attributes": {"energy": 90, "size": 4},
		      "rules": {"particleType": "plant"},
		      "speciesId": "s2", "color": "#2ECC71"}
	},
	"species": {
		"s1": {"id": "s1", "name": "herbivores", "color": "#3498DB", "population": 1},
		"s2": {"id": "s2", "name": "plants", "color": "#2ECC71", "population": 1}
	},
	"tickCount": 7,
	"worldWidth": 800,
	"worldHeight": 600
}`

// fakeSession is an in-memory transport session.
type fakeSession struct {
	events chan transport.Event
	done   chan struct{}
	once   sync.Once

	startErr error

	mu      sync.Mutex
	sent    []transport.Command
	sendErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan transport.Event, 16), done: make(chan struct{})}
}

func (f *fakeSession) ID() string                     { return "fake" }
func (f *fakeSession) Start(context.Context) error    { return f.startErr }
func (f *fakeSession) Events() <-chan transport.Event { return f.events }
func (f *fakeSession) Done() <-chan struct{}          { return f.done }
func (f *fakeSession) State() transport.State         { return transport.StateConnected }

func (f *fakeSession) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeSession) failSends(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeSession) Send(_ context.Context, cmd transport.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeSession) commands() []transport.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Command(nil), f.sent...)
}

func (f *fakeSession) connect() {
	f.events <- transport.Event{Kind: transport.EventState, State: transport.StateConnected, At: time.Now()}
}

func (f *fakeSession) message(s string) {
	f.events <- transport.Event{Kind: transport.EventMessage, Data: []byte(s), At: time.Now()}
}

func newTestViewer(t *testing.T, opts Options) (*Viewer, *fakeSession, *renderer.Recorder) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fs := newFakeSession()
	rec := renderer.NewRecorder(800, 600)
	v, err := New(cfg, fs, rec, opts)
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v, fs, rec
}

func waitApplied(t *testing.T, v *Viewer) {
	t.Helper()
	require.Eventually(t, func() bool {
		return v.Store().Snapshot().Version > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestViewerRendersReconciledWorld(t *testing.T) {
	dir := t.TempDir()
	v, fs, rec := newTestViewer(t, Options{OutputDir: dir})
	pump := renderer.NewPumpScheduler()
	require.NoError(t, v.Start(context.Background(), pump))

	fs.connect()
	fs.message(patch)
	waitApplied(t, v)

	require.True(t, pump.Pump(time.Now()))
	assert.Equal(t, uint64(1), v.Frames())
	assert.Equal(t, 2, rec.Count(renderer.OpRoundedRect), "plant body and energy glow")
	assert.GreaterOrEqual(t, rec.Count(renderer.OpCircle), 1, "creature body")

	st := v.Status()
	assert.Equal(t, int64(7), st.Tick)
	assert.Equal(t, 1, st.Creatures)
	assert.Equal(t, 1, st.Plants)
	assert.Equal(t, 2, st.Species)
	assert.Equal(t, transport.StateConnected, st.State)

	require.NoError(t, v.Close())

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2, "header and the final window")

	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, err)

	data, err = os.ReadFile(filepath.Join(dir, "connections.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ",connected,")
}

func TestViewerMaxFrames(t *testing.T) {
	v, _, _ := newTestViewer(t, Options{MaxFrames: 2})
	pump := renderer.NewPumpScheduler()
	require.NoError(t, v.Start(context.Background(), pump))

	t0 := time.Now()
	pump.Pump(t0)
	select {
	case <-v.Done():
		t.Fatal("stopped after one frame")
	default:
	}

	pump.Pump(t0.Add(20 * time.Millisecond))
	select {
	case <-v.Done():
	case <-time.After(time.Second):
		t.Fatal("viewer did not stop at the frame limit")
	}
}

func TestViewerRunReleasesOnStartError(t *testing.T) {
	dir := t.TempDir()
	v, fs, _ := newTestViewer(t, Options{OutputDir: dir})
	refused := errors.New("connection refused")
	fs.startErr = refused

	err := v.Run(context.Background(), renderer.NewPumpScheduler())
	require.ErrorIs(t, err, refused)

	select {
	case <-fs.Done():
	default:
		t.Fatal("session left open after a failed start")
	}
	select {
	case <-v.Done():
	default:
		t.Fatal("viewer context left running after a failed start")
	}
	assert.NoError(t, v.Close(), "second close is a no-op")
}

func TestViewerStopsWhenSessionEnds(t *testing.T) {
	v, fs, _ := newTestViewer(t, Options{})
	require.NoError(t, v.Start(context.Background(), renderer.NewPumpScheduler()))

	fs.Close()
	select {
	case <-v.Done():
	case <-time.After(time.Second):
		t.Fatal("viewer kept running after the session closed")
	}
}

func TestViewerTogglePause(t *testing.T) {
	v, fs, _ := newTestViewer(t, Options{})
	ctx := context.Background()

	require.NoError(t, v.TogglePause(ctx))
	assert.True(t, v.Paused())
	require.NoError(t, v.TogglePause(ctx))
	assert.False(t, v.Paused())

	cmds := fs.commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "pause", cmds[0].Type())
	assert.Equal(t, "start", cmds[1].Type())

	fs.failSends(transport.ErrNotConnected)
	err := v.TogglePause(ctx)
	assert.ErrorIs(t, err, transport.ErrNotConnected)
	assert.False(t, v.Paused(), "state unchanged when the command is not sent")
}

func TestViewerAddPreset(t *testing.T) {
	v, fs, _ := newTestViewer(t, Options{})
	ctx := context.Background()

	err := v.AddPreset(ctx, "dragons")
	assert.True(t, errors.Is(err, ErrUnknownPreset))

	require.NoError(t, v.AddPreset(ctx, "plants"))
	cmds := fs.commands()
	require.Len(t, cmds, 1)
	add, ok := cmds[0].(transport.AddSpecies)
	require.True(t, ok)
	assert.Equal(t, world.KindPlant, add.Rules.ParticleType)
	assert.Equal(t, world.SelfReplicating, add.ReproductionStyle)

	// Every shipped preset encodes
	cfg, err := config.Load("")
	require.NoError(t, err)
	for _, p := range cfg.SpeciesPresets {
		_, err := transport.Encode(AddSpeciesCommand(p))
		assert.NoError(t, err, p.Name)
	}
}

func TestViewerSelectionAndPanel(t *testing.T) {
	v, fs, _ := newTestViewer(t, Options{})
	require.NoError(t, v.Start(context.Background(), renderer.NewPumpScheduler()))

	fs.connect()
	fs.message(patch)
	waitApplied(t, v)

	id, ok := v.Select(101, 100)
	require.True(t, ok)
	assert.Equal(t, "a", id)

	p := v.Panel()
	require.NotNil(t, p.Detail)
	assert.Equal(t, "herbivores", p.Detail.SpeciesName)
	assert.Equal(t, 2, p.Stats.Count)
	assert.Len(t, p.Species, 2)

	v.ToggleSpecies("s2")
	p = v.Panel()
	assert.Equal(t, "s2", p.Filter)
	assert.Equal(t, 1, p.Stats.Count)

	_, ok = v.Select(700, 50)
	assert.False(t, ok)
	assert.Nil(t, v.Panel().Detail, "empty click clears the selection")
}
