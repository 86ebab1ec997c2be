package app

import (
	"time"

	"github.com/ayusman/signn/internal/capture"
	"github.com/ayusman/signn/internal/coalescer"
	"github.com/ayusman/signn/internal/log"
	"github.com/ayusman/signn/internal/store"
)

// run is the consumer loop. It owns console for its whole life.
//
// Each tick:
//  1. apply pending clear and cooldown requests
//  2. read one camera frame
//  3. when active, show it and offer it to the worker; otherwise show it blurred
//  4. when active, poll at most one result and ingest it
func (a *App) run(console *coalescer.Console, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer console.Close()

	ticker := time.NewTicker(a.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-a.clearCh:
			console.Clear()
			a.mu.Lock()
			a.snapshot.Text = ""
			a.mu.Unlock()
		case d := <-a.cooldownCh:
			console.Coalescer().SetCooldown(d)
		case <-ticker.C:
			a.tick(console)
		}
	}
}

func (a *App) tick(console *coalescer.Console) {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		if a.readLog.Allow() {
			log.Warn(log.Fields{"error": err.Error()}, "camera read failed")
		}
		return
	}

	if !a.enabled.Load() {
		a.showBlurred(frame)
		return
	}

	a.frames.Publish(frame.Mat)
	a.mu.RLock()
	pipe := a.pipe
	a.mu.RUnlock()

	if !pipe.SubmitFrame(frame) {
		frame.Close()
	}

	result, ok := pipe.PollResult()
	if !ok {
		return
	}

	now := time.Now()
	out := console.Ingest(result, now)
	if out.Frame != nil {
		a.frames.Publish(*out.Frame)
	}
	a.publish(out, now)
}

func (a *App) showBlurred(frame *capture.Frame) {
	blurred := capture.Blur(frame.Mat)
	frame.Close()
	a.frames.Publish(blurred)
	blurred.Close()
}

// publish updates the snapshot and, on emission, notifies listeners and
// records the logged lines.
func (a *App) publish(out coalescer.Output, now time.Time) {
	a.mu.Lock()
	a.snapshot.Text = out.Text
	if out.Emitted {
		a.snapshot.LastGesture = out.LastGesture
		a.snapshot.HasGesture = out.HasGesture
		a.snapshot.LastEmit = now
	}
	snap := a.snapshot
	snap.Enabled = a.enabled.Load()
	listeners := a.onEmit
	session := a.session
	a.mu.Unlock()

	if !out.Emitted {
		return
	}

	for _, fn := range listeners {
		fn(snap)
	}

	if session == nil || len(out.Emissions) == 0 {
		return
	}
	events := make([]*store.Event, len(out.Emissions))
	for i, e := range out.Emissions {
		events[i] = &store.Event{
			SessionID:  session.ID,
			Index:      e.Index,
			Label:      e.Label,
			Confidence: e.Confidence,
			EmittedAt:  snap.LastEmit,
		}
	}
	if err := a.config.Store.Events().CreateBatch(events); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "failed to record gesture events")
	}
}
