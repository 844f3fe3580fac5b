package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/world"
)

// Source is the inbound side of a transport session.
type Source interface {
	Events() <-chan transport.Event
	Done() <-chan struct{}
}

// Observer is notified of reconciliation outcomes. Calls are made from the
// goroutine running the reconciler and must not block.
type Observer interface {
	PatchApplied(snap *world.Snapshot, elapsed time.Duration)
	PatchRejected(reason string)
	ConnectionState(st transport.State, err error)
}

// Options configures a Reconciler.
type Options struct {
	// ResyncOnConnect treats the first message after each (re)connect as a
	// full state, dropping records it does not mention.
	ResyncOnConnect bool
	Logger          *slog.Logger
	Observers       []Observer
	Now             func() time.Time
}

// Stats are cumulative reconciliation counters.
type Stats struct {
	Applied       uint64
	Rejected      uint64
	Empty         uint64
	Resyncs       uint64
	KindConflicts uint64
	LastError     string
}

// LogValue implements slog.LogValuer for structured logging.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("applied", s.Applied),
		slog.Uint64("rejected", s.Rejected),
		slog.Uint64("empty", s.Empty),
		slog.Uint64("resyncs", s.Resyncs),
		slog.Uint64("kind_conflicts", s.KindConflicts),
	)
}

// Reconciler applies inbound patches to a store. It is the store's only
// writer.
type Reconciler struct {
	store     *world.Store
	opts      Options
	logger    *slog.Logger
	observers []Observer

	applied       atomic.Uint64
	rejected      atomic.Uint64
	empty         atomic.Uint64
	resyncs       atomic.Uint64
	kindConflicts atomic.Uint64

	errMu   sync.Mutex
	lastErr string

	state         atomic.Uint32
	pendingResync atomic.Bool
}

// New creates a reconciler writing to store.
func New(store *world.Store, opts Options) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Reconciler{
		store:     store,
		opts:      opts,
		logger:    opts.Logger.With("component", "reconciler"),
		observers: opts.Observers,
	}
	r.state.Store(uint32(transport.StateDisconnected))
	return r
}

// AddObserver registers an observer. Must be called before Run.
func (r *Reconciler) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// Run consumes src until it is closed or ctx is cancelled. Events still
// buffered when the source closes are discarded.
func (r *Reconciler) Run(ctx context.Context, src Source) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-src.Done():
			r.logger.Info("source closed", "stats", r.Stats())
			return nil
		case ev := <-src.Events():
			select {
			case <-src.Done():
				return nil
			default:
			}
			r.Handle(ev)
		}
	}
}

// Handle processes a single transport event.
func (r *Reconciler) Handle(ev transport.Event) {
	switch ev.Kind {
	case transport.EventState:
		r.handleState(ev)
	case transport.EventMessage:
		if err := r.Apply(ev.Data, ev.At); err != nil && !errors.Is(err, ErrEmptyPatch) {
			r.logger.Warn("discarding malformed message", "error", err, "bytes", len(ev.Data))
		}
	}
}

func (r *Reconciler) handleState(ev transport.Event) {
	r.state.Store(uint32(ev.State))
	if ev.State == transport.StateConnected && r.opts.ResyncOnConnect {
		r.pendingResync.Store(true)
	}
	r.logger.Info("connection state", "state", ev.State.String(), "error", ev.Err)
	for _, o := range r.observers {
		o.ConnectionState(ev.State, ev.Err)
	}
}

// ConnectionState returns the last state reported by the transport.
func (r *Reconciler) ConnectionState() transport.State {
	return transport.State(r.state.Load())
}

// Apply decodes data and merges it into the store. On any error the store is
// left unchanged.
func (r *Reconciler) Apply(data []byte, receivedAt time.Time) (err error) {
	start := r.opts.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic while applying: %v", ErrMalformed, rec)
			r.reject(err)
		}
	}()

	p, err := Decode(data)
	if len(p.Dropped) > 0 {
		r.logger.Warn("ignoring out-of-range fields", "fields", p.Dropped)
	}
	if errors.Is(err, ErrEmptyPatch) {
		r.empty.Add(1)
		r.logger.Debug("ignoring patch without recognized fields")
		return err
	}
	if err != nil {
		r.reject(err)
		return err
	}
	if receivedAt.IsZero() {
		receivedAt = start
	}
	p.ReceivedAt = receivedAt

	resync := r.pendingResync.Swap(false)
	var res applyResult
	snap, _ := r.store.Update(func(cur *world.Snapshot) (*world.Snapshot, error) {
		var next *world.Snapshot
		next, res = apply(cur, p, resync)
		return next, nil
	})

	if resync {
		r.resyncs.Add(1)
		r.logger.Info("resynced world state", "snapshot", snap)
	}
	if res.kindConflicts > 0 {
		r.kindConflicts.Add(uint64(res.kindConflicts))
		r.logger.Warn("ignored kind change for existing entities", "count", res.kindConflicts)
	}
	if res.tickRegressed {
		r.logger.Warn("tick counter went backwards", "tick", snap.Tick)
	}

	r.applied.Add(1)
	elapsed := r.opts.Now().Sub(start)
	for _, o := range r.observers {
		o.PatchApplied(snap, elapsed)
	}
	return nil
}

func (r *Reconciler) reject(err error) {
	r.rejected.Add(1)
	r.errMu.Lock()
	r.lastErr = err.Error()
	r.errMu.Unlock()
	for _, o := range r.observers {
		o.PatchRejected(rejectReason(err))
	}
}

func rejectReason(err error) string {
	if errors.Is(err, ErrMalformed) {
		return "malformed"
	}
	return "other"
}

// Stats returns the cumulative counters.
func (r *Reconciler) Stats() Stats {
	r.errMu.Lock()
	lastErr := r.lastErr
	r.errMu.Unlock()
	return Stats{
		Applied:       r.applied.Load(),
		Rejected:      r.rejected.Load(),
		Empty:         r.empty.Load(),
		Resyncs:       r.resyncs.Load(),
		KindConflicts: r.kindConflicts.Load(),
		LastError:     lastErr,
	}
}
