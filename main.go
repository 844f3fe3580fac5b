package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/soupview/camera"
	"github.com/pthm-cable/soupview/config"
	"github.com/pthm-cable/soupview/renderer"
	"github.com/pthm-cable/soupview/renderer/rlcanvas"
	"github.com/pthm-cable/soupview/transport"
	"github.com/pthm-cable/soupview/ui"
	"github.com/pthm-cable/soupview/viewer"
)

const controlsLegend = "Space: pause | G/L/V/E/H/D/I: toggles | [ ]: scale | , .: grid | Arrows/wheel: camera | Home: reset | Click: inspect"

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without a window, drawing into a recording canvas")
	url := flag.String("url", "", "Simulation server URL (overrides config)")
	kind := flag.String("transport", "", "Transport kind: ws or nats (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address (overrides config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	maxFrames := flag.Int("max-frames", 0, "Stop after N drawn frames (0 = unlimited)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
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

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Derived.LogLevel}))
	slog.SetDefault(logger)

	session, err := transport.New(cfg.Transport, logger)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := viewer.Options{
		MetricsAddr: *metricsAddr,
		OutputDir:   *outputDir,
		MaxFrames:   *maxFrames,
		Logger:      logger,
	}

	if *headless {
		canvas := renderer.NewRecorder(float64(cfg.Screen.Width), float64(cfg.Screen.Height))
		v, err := viewer.New(cfg, session, canvas, opts)
		if err != nil {
			session.Close()
			logger.Error("failed to create viewer", "error", err)
			os.Exit(1)
		}

		logger.Info("starting headless viewer",
			"transport", cfg.Transport.Kind,
			"target_fps", cfg.Screen.TargetFPS,
			"max_frames", *maxFrames,
		)
		if err := v.Run(ctx, renderer.NewTimerScheduler(cfg.Derived.FrameBudget)); err != nil {
			logger.Error("viewer failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	defer rl.CloseWindow()
	rl.SetExitKey(rl.KeyNull)
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	canvas := rlcanvas.New(ui.PanelWidth)
	defer canvas.Unload()

	v, err := viewer.New(cfg, session, canvas, opts)
	if err != nil {
		session.Close()
		logger.Error("failed to create viewer", "error", err)
		os.Exit(1)
	}
	if err := runWindow(ctx, cfg, v, canvas); err != nil {
		logger.Error("viewer failed", "error", err)
		os.Exit(1)
	}
}

// runWindow drives the viewer from the raylib main thread: each iteration
// pumps at most one render loop frame into the canvas texture, then presents
// it under the UI.
func runWindow(ctx context.Context, cfg *config.Config, v *viewer.Viewer, canvas *rlcanvas.Canvas) error {
	pump := renderer.NewPumpScheduler()
	if err := v.Start(ctx, pump); err != nil {
		return errors.Join(err, v.Close())
	}

	presets := make([]string, 0, len(cfg.SpeciesPresets))
	for _, p := range cfg.SpeciesPresets {
		presets = append(presets, p.Name)
	}

	hud := ui.NewHUD()
	side := ui.NewSidePanel()
	controls := ui.NewControlsPanel(presets)
	input := ui.NewInput(v.Display())
	theme := ui.DefaultTheme()

	for !rl.WindowShouldClose() {
		select {
		case <-v.Done():
			return v.Close()
		default:
		}

		screenW := int32(rl.GetScreenWidth())
		screenH := int32(rl.GetScreenHeight())
		panelX := screenW - ui.PanelWidth

		it := input.Poll(v.Display(), float32(panelX))
		if it.Fullscreen {
			rl.ToggleFullscreen()
		}
		if it.TogglePause {
			v.TogglePause(ctx)
		}
		applyCamera(v, it)
		if it.Deselect {
			v.Deselect()
		}
		if it.Select {
			v.Select(it.SelectX, it.SelectY)
		}

		pump.Pump(time.Now())

		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)
		canvas.Present()

		status := v.Status()
		hud.Draw(ui.HUDData{
			Title:     cfg.Screen.Title,
			Tick:      status.Tick,
			Creatures: status.Creatures,
			Plants:    status.Plants,
			Species:   status.Species,
			Groups:    status.Groups,
			FPS:       rl.GetFPS(),
			State:     status.State,
			Paused:    status.Paused,
			Rejected:  status.Rejected,
		})
		hud.DrawControls(screenH, controlsLegend)

		// Side panel
		rl.DrawRectangle(panelX, 0, ui.PanelWidth, screenH, theme.PanelBg)
		rl.DrawLine(panelX, 0, panelX, screenH, theme.PanelBorder)
		y, res := controls.Draw(panelX, theme.Padding, ui.PanelWidth, v.Display(), status.Paused)
		if res.TogglePause {
			v.TogglePause(ctx)
		}
		if res.AddPreset != "" {
			v.AddPreset(ctx, res.AddPreset)
		}

		panel := v.Panel()
		clicks := side.Draw(panelX, y+6, ui.PanelWidth, ui.SideData{
			ShowStats: v.Display().Options().ShowStats,
			Stats:     panel.Stats,
			Species:   panel.Species,
			Filter:    panel.Filter,
			Detail:    panel.Detail,
		})
		if clicks.ToggleSpecies != "" {
			v.ToggleSpecies(clicks.ToggleSpecies)
		}
		if clicks.CloseCard {
			v.Deselect()
		}

		rl.EndDrawing()
	}
	return v.Close()
}

func applyCamera(v *viewer.Viewer, it ui.Intent) {
	if it.PanX == 0 && it.PanY == 0 && it.Zoom == 1 && !it.ResetCamera {
		return
	}
	v.Camera(func(c *camera.Camera) {
		if it.ResetCamera {
			c.Reset()
		}
		if it.Zoom != 1 {
			c.ZoomBy(it.Zoom)
		}
		if it.PanX != 0 || it.PanY != 0 {
			c.Pan(it.PanX, it.PanY)
		}
	})
}
