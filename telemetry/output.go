package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/soupview/config"
	"github.com/pthm-cable/soupview/reconcile"
	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/world"
)

var _ reconcile.Observer = (*OutputManager)(nil)

// ConnectionRecord is one connection state transition in connections.csv.
type ConnectionRecord struct {
	AtMS  int64  `csv:"at_ms"`
	State string `csv:"state"`
	Error string `csv:"error"`
}

// csvSink is one CSV file whose header is written with the first record.
type csvSink struct {
	mu     sync.Mutex
	f      *os.File
	header bool
}

func openSink(dir, name string) (*csvSink, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvSink{f: f}, nil
}

func (s *csvSink) write(records any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.header {
		return gocsv.MarshalWithoutHeaders(records, s.f)
	}
	if err := gocsv.Marshal(records, s.f); err != nil {
		return err
	}
	s.header = true
	return nil
}

func (s *csvSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// OutputManager writes run output: window stats, perf samples and
// connection transitions as CSV, plus a config snapshot.
type OutputManager struct {
	dir         string
	telemetry   *csvSink
	perf        *csvSink
	connections *csvSink
	now         func() time.Time
}

// NewOutputManager creates the output directory and its files.
// Returns nil if dir is empty (output disabled); all methods accept a nil
// receiver.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir, now: time.Now}
	for _, target := range []struct {
		sink **csvSink
		name string
	}{
		{&om.telemetry, "telemetry.csv"},
		{&om.perf, "perf.csv"},
		{&om.connections, "connections.csv"},
	} {
		s, err := openSink(dir, target.name)
		if err != nil {
			om.Close()
			return nil, err
		}
		*target.sink = s
	}
	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry appends a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.write([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WritePerf appends a performance record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEndMS int64) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(windowEndMS)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// PatchApplied implements reconcile.Observer.
func (om *OutputManager) PatchApplied(*world.Snapshot, time.Duration) {}

// PatchRejected implements reconcile.Observer.
func (om *OutputManager) PatchRejected(string) {}

// ConnectionState implements reconcile.Observer by appending the transition
// to connections.csv. Write errors are dropped.
func (om *OutputManager) ConnectionState(st transport.State, err error) {
	if om == nil {
		return
	}
	rec := ConnectionRecord{AtMS: om.now().UnixMilli(), State: st.String()}
	if err != nil {
		rec.Error = err.Error()
	}
	om.connections.write([]ConnectionRecord{rec})
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var errs []error
	for _, s := range []*csvSink{om.telemetry, om.perf, om.connections} {
		if s == nil {
			continue
		}
		if err := s.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
