package pipeline

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayusman/signn/internal/capture"
	"github.com/ayusman/signn/internal/log"
	"github.com/ayusman/signn/internal/recognizer"
)

type counters struct {
	submitted atomic.Uint64
	rejected  atomic.Uint64
	processed atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
}

// worker owns the recognizer and runs the recognition loop on its own
// goroutine until the shared running flag is cleared.
type worker struct {
	frames    *FrameChannel
	results   *ResultChannel
	model     recognizer.Recognizer
	frameSkip uint64
	timeout   time.Duration

	running *atomic.Bool
	state   *atomic.Int32
	stats   *counters
	done    chan struct{}

	// failLog keeps a broken model from flooding the log at frame rate.
	failLog *rate.Limiter
}

// run is the worker loop.
//
// The frame counter advances only for frames actually dequeued, so with
// frameSkip k exactly one of every k dequeued frames reaches the model. A
// dequeue timeout leaves the counter alone.
func (w *worker) run() {
	defer close(w.done)
	defer w.cleanup()

	var i uint64
	for w.running.Load() {
		frame, ok := w.frames.Dequeue(w.timeout)
		if !ok {
			continue
		}

		if !w.running.Load() {
			frame.Close()
			break
		}

		if i%w.frameSkip != 0 {
			frame.Close()
			w.stats.skipped.Add(1)
			i++
			continue
		}
		i++

		if result, ok := w.process(frame); ok {
			w.results.Push(result)
			w.stats.processed.Add(1)
		}
	}
}

// process runs the model on frame and builds its result. A model error or
// panic drops this frame only. process always releases frame.
func (w *worker) process(frame *capture.Frame) (result *DetectionResult, ok bool) {
	defer frame.Close()
	defer func() {
		if r := recover(); r != nil {
			w.fail(frame, fmt.Errorf("recognizer panic: %v", r))
			result, ok = nil, false
		}
	}()

	hands, err := w.model.Recognize(frame.Mat)
	if err != nil {
		w.fail(frame, err)
		return nil, false
	}

	detections := make([]Detection, len(hands))
	for i, h := range hands {
		detections[i] = Detection{Label: h.Gesture, Confidence: h.Score}
	}

	return &DetectionResult{
		Annotated:   recognizer.Annotate(frame.Mat, hands),
		Detections:  detections,
		Seq:         frame.Seq,
		CapturedAt:  frame.CapturedAt,
		ProcessedAt: time.Now(),
	}, true
}

func (w *worker) fail(frame *capture.Frame, err error) {
	n := w.stats.failed.Add(1)
	if w.failLog.Allow() {
		log.Warn(log.Fields{
			"seq":    frame.Seq,
			"failed": n,
			"error":  err.Error(),
		}, "recognition failed, frame dropped")
	}
}

func (w *worker) cleanup() {
	if n := w.frames.drain(); n > 0 {
		log.Debug(log.Fields{"frames": n}, "released queued frames")
	}
	if err := w.model.Close(); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "close recognizer")
	}
	w.state.Store(int32(Stopped))
	log.Info(log.Fields{
		"processed": w.stats.processed.Load(),
		"skipped":   w.stats.skipped.Load(),
		"failed":    w.stats.failed.Load(),
	}, "recognition worker stopped")
}
