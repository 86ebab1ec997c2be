package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/ayusman/signn/internal/app"
	"github.com/ayusman/signn/internal/capture"
	"github.com/ayusman/signn/internal/coalescer"
	"github.com/ayusman/signn/internal/config"
	"github.com/ayusman/signn/internal/log"
	"github.com/ayusman/signn/internal/pipeline"
	"github.com/ayusman/signn/internal/recognizer"
	"github.com/ayusman/signn/internal/server"
	"github.com/ayusman/signn/internal/store"
	"github.com/ayusman/signn/internal/tray"
)

func main() {
	configPath := flag.String("config", config.Path(""), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signn: %v\n", err)
		os.Exit(1)
	}

	log.NewLogger(log.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	log.Info(log.Fields{"config": *configPath}, "signn - sign language recognition")

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		log.Fatal(log.Fields{"path": cfg.Store.Path, "error": err.Error()}, "failed to initialize store")
	}
	defer st.Close()

	hub := server.NewConsoleHub()
	defer hub.Close()

	a := app.New(app.Config{
		Camera: capture.NewCameraWithOptions(capture.Options{
			DeviceID: cfg.Camera.DeviceID,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
		}),
		Loader: modelLoader(cfg.Recognizer),
		Pipeline: pipeline.Config{
			FrameCapacity:  cfg.Pipeline.FrameCapacity,
			FrameSkip:      cfg.Pipeline.FrameSkip,
			DequeueTimeout: cfg.Pipeline.DequeueTimeout,
		},
		TickInterval: cfg.Pipeline.TickInterval,
		Cooldown:     cfg.Console.Cooldown,
		Store:        st,
		Surface:      coalescer.Surfaces{coalescer.LogSurface{}, hub},
	})

	if err := a.Start(); err != nil {
		if errors.Is(err, pipeline.ErrModelLoad) {
			log.Fatal(log.Fields{"model": cfg.Recognizer.ModelPath, "error": err.Error()}, "cannot start without a recognition model")
		}
		log.Fatal(log.Fields{"error": err.Error()}, "failed to start capture")
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Control:   a,
		Frames:    a.Frames(),
		Console:   hub,
	})
	go func() {
		if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
			log.Error(log.Fields{"addr": cfg.Server.Addr, "error": err.Error()}, "http server failed")
			cancel()
		}
	}()

	if *configPath != "" {
		go watchConfig(ctx, *configPath, cfg, a)
	}

	if !cfg.Tray.Enabled {
		log.Info(nil, "running headless, press Ctrl+C to quit")
		<-ctx.Done()
		log.Info(nil, "shutting down")
		return
	}

	t := tray.New()
	t.SetEnabled(a.Enabled())
	t.OnToggle(a.SetEnabled)
	t.OnClear(a.Clear)
	t.OnConsole(func() { openBrowser(consoleURL(cfg.Server.Addr)) })
	t.OnQuit(cancel)
	a.OnEmit(func(s app.Snapshot) { t.SetLastGesture(s.LastGesture, s.HasGesture) })

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
	log.Info(nil, "shutting down")
}

// modelLoader returns a loader for the MediaPipe recognition service.
func modelLoader(rc config.RecognizerConfig) pipeline.ModelLoader {
	return func() (recognizer.Recognizer, error) {
		r, err := recognizer.NewMediaPipeRecognizer(recognizer.Config{
			ModelPath:     rc.ModelPath,
			ScriptPath:    rc.ScriptPath,
			Python:        rc.Python,
			MaxHands:      rc.MaxHands,
			MinConfidence: rc.MinConfidence,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// watchConfig applies live-reloadable settings from config edits.
func watchConfig(ctx context.Context, path string, current *config.Config, a *app.App) {
	err := config.Watch(ctx, path, func(next *config.Config) {
		cooldown, level, restart := config.LiveChanges(current, next)
		if cooldown {
			a.SetCooldown(next.Console.Cooldown)
		}
		if level {
			log.SetLevel(next.Log.Level)
			log.Info(log.Fields{"level": next.Log.Level}, "log level changed")
		}
		if restart {
			log.Warn(nil, "config changes other than cooldown and log level apply after restart")
		}
		current = next
	})
	if err != nil {
		log.Warn(log.Fields{"path": path, "error": err.Error()}, "config hot reload disabled")
	}
}

func consoleURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/"
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
		log.Warn(log.Fields{"url": url, "error": err.Error()}, "failed to open browser")
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.signn/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".signn", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
