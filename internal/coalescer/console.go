package coalescer

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/signn/internal/log"
	"github.com/ayusman/signn/internal/pipeline"
)

// Surface is where the transcript is shown.
type Surface interface {
	Append(line string)
	Clear()
	SetText(text string)
}

// Surfaces fans every call out to each surface in order.
type Surfaces []Surface

func (s Surfaces) Append(line string) {
	for _, sf := range s {
		sf.Append(line)
	}
}

func (s Surfaces) Clear() {
	for _, sf := range s {
		sf.Clear()
	}
}

func (s Surfaces) SetText(text string) {
	for _, sf := range s {
		sf.SetText(text)
	}
}

// LogSurface writes appended gesture lines to the application log. Clear and
// SetText are ignored so the log stays one entry per detection.
type LogSurface struct{}

func (LogSurface) Append(line string) {
	log.Info(log.Fields{"component": "console"}, line)
}

func (LogSurface) Clear() {}

func (LogSurface) SetText(string) {}

// Output is what the presentation layer gets back from Console.Ingest.
type Output struct {
	Decision
	// Frame is the most recent annotated frame. It is owned by the Console
	// and valid until the next Ingest or Close.
	Frame *gocv.Mat
}

// Console applies coalescing decisions to a Surface.
type Console struct {
	coalescer *Coalescer
	surface   Surface

	frame    gocv.Mat
	hasFrame bool
}

// NewConsole binds c to surface. A nil surface discards output.
func NewConsole(c *Coalescer, surface Surface) *Console {
	if surface == nil {
		surface = Surfaces(nil)
	}
	return &Console{coalescer: c, surface: surface}
}

// Coalescer returns the underlying cooldown state.
func (c *Console) Coalescer() *Coalescer {
	return c.coalescer
}

// Ingest takes ownership of result, runs the coalescer and redraws the
// surface. Emitted lines are appended first; the surface is then cleared and
// rewritten with the full accumulated text on every call, emission or not.
func (c *Console) Ingest(result *pipeline.DetectionResult, now time.Time) Output {
	if result == nil {
		return Output{Decision: c.coalescer.decision(false, nil), Frame: c.current()}
	}

	c.keepFrame(result.Annotated)
	result.Annotated = gocv.Mat{}

	d := c.coalescer.Ingest(result.Detections, now)
	for _, e := range d.Emissions {
		c.surface.Append(e.Line())
	}
	c.surface.Clear()
	c.surface.SetText(d.Text)

	return Output{Decision: d, Frame: c.current()}
}

// Clear empties the accumulated text and the surface.
func (c *Console) Clear() {
	c.coalescer.Clear()
	c.surface.Clear()
	c.surface.SetText("")
}

// Frame returns the most recent annotated frame, or nil.
func (c *Console) Frame() *gocv.Mat {
	return c.current()
}

// Close releases the retained frame.
func (c *Console) Close() error {
	if !c.hasFrame {
		return nil
	}
	c.hasFrame = false
	return c.frame.Close()
}

func (c *Console) keepFrame(m gocv.Mat) {
	if m.Ptr() == nil {
		return
	}
	if c.hasFrame {
		c.frame.Close()
	}
	c.frame = m
	c.hasFrame = true
}

func (c *Console) current() *gocv.Mat {
	if !c.hasFrame {
		return nil
	}
	return &c.frame
}
