package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/soupview/reconcile"
	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/world"
)

const namespace = "soupview"

var connectionStates = []transport.State{
	transport.StateDisconnected,
	transport.StateConnecting,
	transport.StateConnected,
	transport.StateError,
	transport.StateClosed,
}

var _ reconcile.Observer = (*Metrics)(nil)

// Metrics exports reconciliation and render loop counters to prometheus.
type Metrics struct {
	registry *prometheus.Registry

	patchesApplied  prometheus.Counter
	patchesRejected *prometheus.CounterVec
	applyDuration   prometheus.Histogram
	worldTick       prometheus.Gauge
	entities        *prometheus.GaugeVec
	species         prometheus.Gauge
	groups          prometheus.Gauge
	connection      *prometheus.GaugeVec
}

// NewMetrics creates and registers the viewer metrics on reg. When perf is
// non-nil its frame counters are exported as well.
func NewMetrics(reg *prometheus.Registry, perf *PerfCollector) *Metrics {
	m := &Metrics{
		registry: reg,
		patchesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patches_applied_total",
			Help:      "Total number of patches merged into the world model",
		}),
		patchesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patches_rejected_total",
			Help:      "Total number of inbound messages that could not be applied",
		}, []string{"reason"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "patch_apply_duration_seconds",
			Help:      "Time to decode and merge one patch",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}),
		worldTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_tick",
			Help:      "Last simulation tick reported by the server",
		}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_entities",
			Help:      "Entities in the current snapshot",
		}, []string{"kind"}),
		species: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_species",
			Help:      "Species in the current snapshot",
		}),
		groups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_groups",
			Help:      "Groups in the current snapshot",
		}),
		connection: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current transport state, 0 otherwise",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.patchesApplied,
		m.patchesRejected,
		m.applyDuration,
		m.worldTick,
		m.entities,
		m.species,
		m.groups,
		m.connection,
	)
	m.setState(transport.StateDisconnected)

	if perf != nil {
		reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_drawn_total",
				Help:      "Total number of frames drawn",
			}, func() float64 { return float64(perf.Stats().FramesDrawn) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_skipped_total",
				Help:      "Total number of scheduled frames skipped by the frame budget",
			}, func() float64 { return float64(perf.Stats().FramesSkipped) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "frame_draw_seconds",
				Help:      "Average frame draw time over the perf window",
			}, func() float64 { return perf.Stats().AvgFrameDuration.Seconds() }),
		)
	}
	return m
}

// PatchApplied records a merged patch and the resulting world size.
func (m *Metrics) PatchApplied(snap *world.Snapshot, elapsed time.Duration) {
	m.patchesApplied.Inc()
	m.applyDuration.Observe(elapsed.Seconds())
	m.worldTick.Set(float64(snap.Tick))

	var plants, creatures int
	snap.Entities(func(e *world.Entity) bool {
		if e.IsPlant() {
			plants++
		} else {
			creatures++
		}
		return true
	})
	m.entities.WithLabelValues(string(world.KindPlant)).Set(float64(plants))
	m.entities.WithLabelValues(string(world.KindCreature)).Set(float64(creatures))
	m.species.Set(float64(snap.NumSpecies()))
	m.groups.Set(float64(snap.NumGroups()))
}

// PatchRejected records a message that could not be applied.
func (m *Metrics) PatchRejected(reason string) {
	m.patchesRejected.WithLabelValues(reason).Inc()
}

// ConnectionState records a transport lifecycle change.
func (m *Metrics) ConnectionState(st transport.State, _ error) {
	m.setState(st)
}

func (m *Metrics) setState(cur transport.State) {
	for _, st := range connectionStates {
		v := 0.0
		if st == cur {
			v = 1
		}
		m.connection.WithLabelValues(st.String()).Set(v)
	}
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
