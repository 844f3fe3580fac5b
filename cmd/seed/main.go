// Command seed connects to the simulation and adds species from the
// configured presets, then exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pthm-cable/soupview/config"
	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/viewer"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	url := flag.String("url", "", "Simulation server URL (overrides config)")
	kind := flag.String("transport", "", "Transport kind: ws or nats (overrides config)")
	presets := flag.String("presets", "", "Comma-separated preset names (empty = all)")
	count := flag.Int("count", 0, "Override the initial count of every preset")
	timeout := flag.Duration("timeout", 10*time.Second, "Give up if not connected within this time")
	list := flag.Bool("list", false, "List presets and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *list {
		for _, p := range cfg.SpeciesPresets {
			fmt.Printf("%-12s %-8s %-10s %-16s %d\n", p.Name, p.Color, p.Diet, p.ReproductionStyle, p.InitialCount)
		}
		return
	}
	if *kind != "" {
		cfg.Transport.Kind = *kind
	}
	if *url != "" {
		if cfg.Transport.Kind == "nats" {
			cfg.Transport.NATSURL = *url
		} else {
			cfg.Transport.URL = *url
		}
	}

	selected, err := selectPresets(cfg.SpeciesPresets, *presets)
	if err != nil {
		logger.Error("bad preset selection", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := seed(ctx, cfg.Transport, selected, *count, logger); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

func selectPresets(all []config.SpeciesPreset, names string) ([]config.SpeciesPreset, error) {
	if names == "" {
		return all, nil
	}
	var out []config.SpeciesPreset
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		found := false
		for _, p := range all {
			if strings.EqualFold(p.Name, name) {
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", viewer.ErrUnknownPreset, name)
		}
	}
	return out, nil
}

func seed(ctx context.Context, tc config.TransportConfig, presets []config.SpeciesPreset, count int, logger *slog.Logger) error {
	// One attempt only; a seeding run should fail fast.
	tc.ReconnectMin = 0
	session, err := transport.New(tc, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		return err
	}
	if err := awaitConnected(ctx, session); err != nil {
		return err
	}

	var errs []error
	for _, p := range presets {
		cmd := viewer.AddSpeciesCommand(p)
		if count > 0 {
			cmd.InitialCount = count
		}
		if err := session.Send(ctx, cmd); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
			continue
		}
		logger.Info("species added", "preset", p.Name, "count", cmd.InitialCount)
	}
	return errors.Join(errs...)
}

func awaitConnected(ctx context.Context, s transport.Session) error {
	if s.State() == transport.StateConnected {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for connection: %w", ctx.Err())
		case <-s.Done():
			return transport.ErrClosed
		case ev := <-s.Events():
			if ev.Kind != transport.EventState {
				continue
			}
			switch ev.State {
			case transport.StateConnected:
				return nil
			case transport.StateError:
				return fmt.Errorf("connecting: %w", ev.Err)
			}
		}
	}
}
