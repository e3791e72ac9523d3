package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/ayusman/facecam/internal/app"
	"github.com/ayusman/facecam/internal/capture"
	"github.com/ayusman/facecam/internal/config"
	"github.com/ayusman/facecam/internal/detector"
	"github.com/ayusman/facecam/internal/link"
	"github.com/ayusman/facecam/internal/log"
	"github.com/ayusman/facecam/internal/server"
	"github.com/ayusman/facecam/internal/store"
	"github.com/ayusman/facecam/internal/telemetry"
	"github.com/ayusman/facecam/internal/tray"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		dataDir    = flag.String("data-dir", "", "data directory (default ~/.facecam)")
		withTray   = flag.Bool("tray", false, "show the system tray menu")
	)
	flag.Parse()

	if *dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get home directory: %v\n", err)
			os.Exit(1)
		}
		*dataDir = filepath.Join(homeDir, ".facecam")
	}

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.Log.Level)

	if err := run(cfg, *withTray); err != nil {
		log.Error("facecam exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, withTray bool) error {
	log.Info("starting facecam", "data_dir", filepath.Dir(cfg.Library.DBPath))

	if err := os.MkdirAll(filepath.Dir(cfg.Library.DBPath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.Library.DBPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	lib, err := store.NewLibrary(st, cfg.Library.Dir)
	if err != nil {
		return fmt.Errorf("initialize library: %w", err)
	}

	detCfg := detector.DefaultConfig()
	detCfg.ModelPath = cfg.Detector.ModelPath
	detCfg.CascadePath = cfg.Detector.CascadePath
	detCfg.MinConfidence = cfg.Detector.MinConfidence

	initial, err := capture.ParsePosition(cfg.Camera.InitialPosition)
	if err != nil {
		return err
	}

	resolver := capture.NewDeviceResolver(cfg.Camera.FrontDevice, cfg.Camera.BackDevice, capture.Settings{
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	})
	for pos, name := range map[capture.Position]string{
		capture.Front: cfg.Camera.FrontOrientation,
		capture.Back:  cfg.Camera.BackOrientation,
	} {
		o, err := capture.ParseOrientation(name)
		if err != nil {
			return err
		}
		resolver.SetOrientation(pos, o)
	}

	controller, err := app.New(app.Config{
		Resolver:        resolver,
		Detector:        detector.Open(detCfg),
		Writers:         capture.VideoWriterFactory(cfg.Camera.Codec),
		Sink:            lib,
		InitialPosition: initial,
		RecordingDir:    cfg.Camera.RecordingDir,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := controller.Run(ctx); err != nil {
			errCh <- fmt.Errorf("controller: %w", err)
			stop()
		}
	}()

	if cfg.Telemetry.Enabled {
		if err := startTelemetry(ctx, &wg, cfg.Telemetry, controller); err != nil {
			log.Warn("telemetry disabled", "error", err)
		}
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(filepath.Dir(cfg.Library.DBPath))
	}
	if staticDir != "" {
		log.Info("serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Camera:    controller,
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %w", err)
			stop()
		}
	}()

	if withTray {
		t := tray.New(controller)
		t.OnSettings(func() { openBrowser(browserURL(cfg.Server.Addr)) })
		t.OnQuit(stop)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine on macOS.
		t.Run()
	}

	<-ctx.Done()
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func startTelemetry(ctx context.Context, wg *sync.WaitGroup, cfg config.TelemetryConfig, controller *app.Controller) error {
	ble, err := link.NewBLE(link.BLEConfig{
		DeviceName:     cfg.DeviceName,
		ServiceUUID:    cfg.ServiceUUID,
		Characteristic: cfg.Characteristic,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		return err
	}

	relay := telemetry.NewRelay(telemetry.NewThrottle(cfg.MinInterval), ble)
	faces, cancel := controller.Faces()

	wg.Add(2)
	go func() {
		defer wg.Done()
		ble.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		relay.Run(ctx, faces)
		log.Info("telemetry stopped", "sent", relay.Sent(), "suppressed", relay.Suppressed(), "failed", relay.Failed())
	}()
	return nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("failed to open browser", "url", url, "error", err)
	}
}
