// Command mockserver serves a synthetic simulation for developing the viewer
// without the real backend.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pthm-cable/soupview/config"
	"github.com/pthm-cable/soupview/mocksim"
	"github.com/pthm-cable/soupview/viewer"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	addr := flag.String("addr", ":8000", "HTTP listen address")
	natsURL := flag.String("nats", "", "Also publish patches to this NATS server")
	width := flag.Float64("width", 800, "World width")
	height := flag.Float64("height", 600, "World height")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	tps := flag.Int("tps", 60, "Ticks per second")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sim := mocksim.New(*width, *height, *seed)
	for _, p := range cfg.SpeciesPresets {
		cmd := viewer.AddSpeciesCommand(p)
		if err := cmd.Validate(); err != nil {
			logger.Warn("skipping preset", "preset", p.Name, "error", err)
			continue
		}
		sim.AddSpecies(cmd)
	}

	opts := mocksim.ServerOptions{
		TickRate: time.Second / time.Duration(max(*tps, 1)),
		Logger:   logger,
	}
	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL, nats.Name("soupview-mockserver"))
		if err != nil {
			logger.Error("failed to connect to nats", "url", *natsURL, "error", err)
			os.Exit(1)
		}
		defer nc.Drain()
		opts.NATS = nc
		opts.PatchSubject = cfg.Transport.PatchSubject
		opts.ControlSubject = cfg.Transport.ControlSubject
	}
	srv := mocksim.NewServer(sim, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	logger.Info("mock simulation running",
		"addr", *addr,
		"path", mocksim.Path,
		"species", len(cfg.SpeciesPresets),
		"tps", *tps,
		"nats", *natsURL != "",
	)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("simulation stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("mock simulation stopped", "tick", sim.Tick())
}
