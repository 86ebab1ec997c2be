// Package app runs the capture and display loop: it feeds camera frames to the
// recognition pipeline, coalesces results into the transcript and fans the
// outcome out to the stream, the tray and the event store.
package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayusman/signn/internal/capture"
	"github.com/ayusman/signn/internal/coalescer"
	"github.com/ayusman/signn/internal/log"
	"github.com/ayusman/signn/internal/pipeline"
	"github.com/ayusman/signn/internal/store"
)

// DefaultTickInterval is the display cadence.
const DefaultTickInterval = 50 * time.Millisecond

// stopGrace is added to the dequeue timeout when waiting for the worker.
const stopGrace = time.Second

// ErrNotRunning is returned by operations that need a started App.
var ErrNotRunning = errors.New("app is not running")

// Config holds the collaborators and tunables of an App.
type Config struct {
	Camera   capture.Camera
	Loader   pipeline.ModelLoader
	Pipeline pipeline.Config

	TickInterval time.Duration
	Cooldown     time.Duration

	// Store is optional. Without it no session or events are recorded.
	Store *store.Store
	// Surface receives transcript updates. Optional.
	Surface coalescer.Surface
}

// Snapshot is the transcript state last published by the consumer loop.
type Snapshot struct {
	Text        string    `json:"text"`
	LastGesture string    `json:"last_gesture,omitempty"`
	HasGesture  bool      `json:"has_gesture"`
	LastEmit    time.Time `json:"last_emit"`
	Enabled     bool      `json:"enabled"`
	Running     bool      `json:"running"`
}

// App is the consumer side of the recognition pipeline.
type App struct {
	config Config
	frames *FrameHolder

	enabled    atomic.Bool
	clearCh    chan struct{}
	cooldownCh chan time.Duration

	mu        sync.RWMutex
	pipe      *pipeline.Pipeline
	session   *store.Session
	snapshot  Snapshot
	cooldown  time.Duration
	onEmit    []func(Snapshot)
	stopCh    chan struct{}
	doneCh    chan struct{}
	startedAt time.Time

	readLog *rate.Limiter
}

// New creates an App. Recognition starts deactivated; see SetEnabled.
func New(config Config) *App {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.Cooldown < 0 {
		config.Cooldown = 0
	}

	return &App{
		config:     config,
		frames:     NewFrameHolder(),
		clearCh:    make(chan struct{}, 1),
		cooldownCh: make(chan time.Duration, 1),
		cooldown:   config.Cooldown,
		readLog:    rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// Start loads the model, opens the camera and starts the consumer loop. A
// model load failure is returned as *pipeline.ModelLoadError.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	a.restoreSettings()

	pipe, err := pipeline.New(a.config.Loader, a.config.Pipeline)
	if err != nil {
		return err
	}

	if err := a.config.Camera.Open(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), pipe.Config().DequeueTimeout+stopGrace)
		defer cancel()
		pipe.Close(ctx)
		return err
	}

	if a.config.Store != nil {
		sess, err := a.config.Store.Sessions().Start()
		if err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "failed to start session, events will not be recorded")
		} else {
			a.session = sess
		}
	}

	console := coalescer.NewConsole(coalescer.New(a.cooldown), a.config.Surface)

	a.pipe = pipe
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.startedAt = time.Now()
	a.snapshot.Running = true
	go a.run(console, a.stopCh, a.doneCh)

	log.Info(log.Fields{
		"tick":     a.config.TickInterval.String(),
		"cooldown": a.cooldown.String(),
		"enabled":  a.enabled.Load(),
	}, "capture loop started")
	return nil
}

// Stop halts the consumer loop and the worker and releases the camera. It
// waits at most one dequeue timeout plus a grace period for the worker.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh, pipe := a.stopCh, a.doneCh, a.pipe
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}

	close(stopCh)
	<-doneCh

	ctx, cancel := context.WithTimeout(context.Background(), pipe.Config().DequeueTimeout+stopGrace)
	defer cancel()
	if err := pipe.Close(ctx); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "recognition worker did not stop in time")
	}

	if err := a.config.Camera.Close(); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "error closing camera")
	}

	a.mu.Lock()
	if a.session != nil && a.config.Store != nil {
		if err := a.config.Store.Sessions().End(a.session.ID); err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "failed to end session")
		}
	}
	a.session = nil
	a.snapshot.Running = false
	a.mu.Unlock()

	log.Info(log.Fields{"stats": pipe.Stats()}, "capture loop stopped")
}

// Close stops the App and releases the frame holder.
func (a *App) Close() {
	a.Stop()
	a.frames.Close()
}

// SetEnabled activates or deactivates recognition. While deactivated the
// stream shows a blurred frame and nothing reaches the worker.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) == enabled {
		return
	}
	a.mu.Lock()
	a.snapshot.Enabled = enabled
	a.mu.Unlock()

	a.saveSetting(store.SettingEnabled, strconv.FormatBool(enabled))
	log.Info(log.Fields{"enabled": enabled}, "recognition toggled")
}

// Enabled reports whether recognition is active.
func (a *App) Enabled() bool {
	return a.enabled.Load()
}

// Clear asks the consumer loop to reset the transcript. It never blocks.
func (a *App) Clear() {
	select {
	case a.clearCh <- struct{}{}:
	default:
	}
	a.mu.Lock()
	a.snapshot.Text = ""
	a.mu.Unlock()
}

// SetCooldown changes the emission cooldown. The consumer loop applies it
// before its next tick.
func (a *App) SetCooldown(d time.Duration) {
	if d < 0 {
		d = 0
	}

	a.mu.Lock()
	a.cooldown = d
	a.mu.Unlock()

	// Keep only the newest pending value.
	select {
	case <-a.cooldownCh:
	default:
	}
	select {
	case a.cooldownCh <- d:
	default:
	}

	a.saveSetting(store.SettingCooldown, d.String())
	log.Info(log.Fields{"cooldown": d.String()}, "cooldown changed")
}

// Cooldown returns the configured cooldown.
func (a *App) Cooldown() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cooldown
}

// OnEmit registers fn to run on the consumer loop after every emission.
// fn must not block.
func (a *App) OnEmit(fn func(Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEmit = append(a.onEmit, fn)
}

// Snapshot returns the transcript state. Safe from any goroutine.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.snapshot
	s.Enabled = a.enabled.Load()
	return s
}

// Stats returns pipeline counters, or ErrNotRunning before Start.
func (a *App) Stats() (pipeline.Stats, error) {
	a.mu.RLock()
	pipe := a.pipe
	a.mu.RUnlock()

	if pipe == nil {
		return pipeline.Stats{}, ErrNotRunning
	}
	return pipe.Stats(), nil
}

// Frames returns the holder of the latest displayed frame.
func (a *App) Frames() *FrameHolder {
	return a.frames
}

// SessionID returns the current session, or "" when none is recorded.
func (a *App) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.ID
}

// restoreSettings applies persisted overrides. Called with a.mu held.
func (a *App) restoreSettings() {
	if a.config.Store == nil {
		return
	}
	settings := a.config.Store.Settings()

	if d, err := settings.Duration(store.SettingCooldown); err == nil {
		a.cooldown = d
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn(log.Fields{"error": err.Error()}, "ignoring stored cooldown")
	}

	if on, err := settings.Bool(store.SettingEnabled); err == nil {
		a.enabled.Store(on)
		a.snapshot.Enabled = on
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn(log.Fields{"error": err.Error()}, "ignoring stored activation state")
	}
}

func (a *App) saveSetting(key, value string) {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Settings().Set(key, value); err != nil {
		log.Warn(log.Fields{"key": key, "error": err.Error()}, "failed to save setting")
	}
}
