package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayusman/signn/internal/capture"
	"github.com/ayusman/signn/internal/log"
	"github.com/ayusman/signn/internal/recognizer"
)

// Defaults match the reference capture cadence.
const (
	DefaultFrameCapacity  = 10
	DefaultFrameSkip      = 1
	DefaultDequeueTimeout = time.Second
)

// ErrModelLoad matches every *ModelLoadError.
var ErrModelLoad = errors.New("recognition model failed to load")

// ModelLoadError reports that the recognizer could not be loaded during New.
// No pipeline exists when it is returned.
type ModelLoadError struct {
	Err error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load recognition model: %v", e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

func (e *ModelLoadError) Is(target error) bool { return target == ErrModelLoad }

// ModelLoader loads the recognizer. New calls it exactly once, synchronously.
type ModelLoader func() (recognizer.Recognizer, error)

// Config sizes a pipeline. Zero fields take the defaults.
type Config struct {
	FrameCapacity  int
	FrameSkip      int
	DequeueTimeout time.Duration
}

// DefaultConfig returns capacity 10, no skipping and a 1s dequeue timeout.
func DefaultConfig() Config {
	return Config{
		FrameCapacity:  DefaultFrameCapacity,
		FrameSkip:      DefaultFrameSkip,
		DequeueTimeout: DefaultDequeueTimeout,
	}
}

func (c Config) withDefaults() (Config, error) {
	if c.FrameCapacity == 0 {
		c.FrameCapacity = DefaultFrameCapacity
	}
	if c.FrameSkip == 0 {
		c.FrameSkip = DefaultFrameSkip
	}
	if c.DequeueTimeout == 0 {
		c.DequeueTimeout = DefaultDequeueTimeout
	}

	switch {
	case c.FrameCapacity < 1:
		return c, fmt.Errorf("frame capacity must be at least 1, got %d", c.FrameCapacity)
	case c.FrameSkip < 1:
		return c, fmt.Errorf("frame skip must be at least 1, got %d", c.FrameSkip)
	case c.DequeueTimeout < 0:
		return c, fmt.Errorf("dequeue timeout must be positive, got %v", c.DequeueTimeout)
	}
	return c, nil
}

// Pipeline connects a capture loop to one recognition worker. SubmitFrame and
// PollResult are meant for a single producer and a single consumer.
type Pipeline struct {
	config  Config
	frames  *FrameChannel
	results *ResultChannel

	// running is the one-shot control flag shared with the worker.
	running atomic.Bool
	state   atomic.Int32
	stats   counters
	done    chan struct{}
}

// New loads the model, then starts the worker. The worker is already running
// when New returns, so the first SubmitFrame is never lost. A loader failure
// is returned as *ModelLoadError and nothing is started.
func New(load ModelLoader, config Config) (*Pipeline, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	if load == nil {
		return nil, &ModelLoadError{Err: errors.New("no model loader")}
	}
	model, err := load()
	if err != nil {
		return nil, &ModelLoadError{Err: err}
	}
	if model == nil {
		return nil, &ModelLoadError{Err: errors.New("loader returned no recognizer")}
	}

	p := &Pipeline{
		config:  config,
		frames:  NewFrameChannel(config.FrameCapacity),
		results: NewResultChannel(),
		done:    make(chan struct{}),
	}
	p.running.Store(true)
	p.state.Store(int32(Running))

	w := &worker{
		frames:    p.frames,
		results:   p.results,
		model:     model,
		frameSkip: uint64(config.FrameSkip),
		timeout:   config.DequeueTimeout,
		running:   &p.running,
		state:     &p.state,
		stats:     &p.stats,
		done:      p.done,
		failLog:   rate.NewLimiter(rate.Every(time.Second), 3),
	}
	go w.run()

	log.Info(log.Fields{
		"capacity":   config.FrameCapacity,
		"frame_skip": config.FrameSkip,
		"timeout":    config.DequeueTimeout.String(),
	}, "recognition worker started")

	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// SubmitFrame offers frame to the worker without blocking. It returns true if
// the frame was accepted, transferring ownership. On false the frame was
// dropped and the caller must close it.
func (p *Pipeline) SubmitFrame(frame *capture.Frame) bool {
	if frame == nil {
		return false
	}
	if !p.running.Load() || !p.frames.TryEnqueue(frame) {
		p.stats.rejected.Add(1)
		return false
	}
	p.stats.submitted.Add(1)
	return true
}

// PollResult returns the next result without blocking. The caller owns it.
func (p *Pipeline) PollResult() (*DetectionResult, bool) {
	return p.results.TryDequeue()
}

// Stop asks the worker to exit. The worker notices within one dequeue
// timeout. Stop is idempotent and does not wait; see Done and Wait.
func (p *Pipeline) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.state.CompareAndSwap(int32(Running), int32(Stopping))
	log.Info(nil, "recognition worker stopping")
}

// Done is closed once the worker goroutine has exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the worker exits or ctx is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker, waits for it, and releases results nobody polled.
func (p *Pipeline) Close(ctx context.Context) error {
	p.Stop()
	if err := p.Wait(ctx); err != nil {
		return err
	}
	// Frames can still land between the worker's final drain and Stop
	// becoming visible to the producer.
	p.frames.drain()
	if n := p.results.drain(); n > 0 {
		log.Debug(log.Fields{"results": n}, "released unpolled results")
	}
	return nil
}

// State reports the worker lifecycle state.
func (p *Pipeline) State() WorkerState {
	return WorkerState(p.state.Load())
}

// Stats returns current counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted: p.stats.submitted.Load(),
		Rejected:  p.stats.rejected.Load(),
		Processed: p.stats.processed.Load(),
		Skipped:   p.stats.skipped.Load(),
		Failed:    p.stats.failed.Load(),
		Queued:    p.frames.Len(),
		Pending:   p.results.Len(),
		State:     p.State(),
	}
}
