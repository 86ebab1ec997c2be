// Package coalescer turns the per-frame detection stream into a throttled,
// human-readable transcript.
//
// A Coalescer makes the pure decision (emit or not, and what text results).
// A Console binds that decision to a presentation Surface and keeps the most
// recent annotated frame. Neither is safe for concurrent use; both belong to
// the consumer loop.
package coalescer

import (
	"fmt"
	"time"

	"github.com/ayusman/signn/internal/pipeline"
)

// DefaultCooldown is the minimum wall-clock gap between two emissions.
const DefaultCooldown = 2 * time.Second

// Emission is one logged detection.
type Emission struct {
	// Index is 1-based within its result.
	Index int
	pipeline.Detection
}

// Line renders e the way the transcript shows it, e.g. "Gesture 1: A (0.90)".
func (e Emission) Line() string {
	return fmt.Sprintf("Gesture %d: %s (%.2f)", e.Index, e.Label, e.Confidence)
}

// Decision is the outcome of one Ingest call.
type Decision struct {
	Emitted   bool
	Emissions []Emission
	// Text is the full accumulated text after this call.
	Text string
	// LastGesture is empty when HasGesture is false.
	LastGesture string
	HasGesture  bool
}

// Lines returns the log line for every emission, in detection order.
func (d Decision) Lines() []string {
	lines := make([]string, len(d.Emissions))
	for i, e := range d.Emissions {
		lines[i] = e.Line()
	}
	return lines
}

// Coalescer holds the cooldown state.
type Coalescer struct {
	cooldown time.Duration

	text        string
	lastGesture string
	hasGesture  bool

	lastEmit time.Time
	emitted  bool
}

// New returns a Coalescer with the given cooldown. A negative cooldown is
// treated as zero, so every ingest emits.
func New(cooldown time.Duration) *Coalescer {
	c := &Coalescer{}
	c.SetCooldown(cooldown)
	return c
}

// SetCooldown changes the cooldown. It takes effect on the next Ingest.
func (c *Coalescer) SetCooldown(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.cooldown = d
}

// Cooldown returns the current cooldown.
func (c *Coalescer) Cooldown() time.Duration {
	return c.cooldown
}

// Ingest observes one result's detections at time now.
//
// Within the cooldown window nothing changes. Otherwise every detection
// appends its label to the text and the last one becomes the last gesture;
// an empty list appends a single space and clears the last gesture. The
// first Ingest always emits. A clock that moves backwards never emits.
func (c *Coalescer) Ingest(detections []pipeline.Detection, now time.Time) Decision {
	if c.emitted && now.Sub(c.lastEmit) < c.cooldown {
		return c.decision(false, nil)
	}

	var emissions []Emission
	if len(detections) == 0 {
		c.text += " "
		c.lastGesture, c.hasGesture = "", false
	} else {
		emissions = make([]Emission, len(detections))
		for i, d := range detections {
			c.text += d.Label
			c.lastGesture, c.hasGesture = d.Label, true
			emissions[i] = Emission{Index: i + 1, Detection: d}
		}
	}

	c.lastEmit = now
	c.emitted = true
	return c.decision(true, emissions)
}

func (c *Coalescer) decision(emitted bool, emissions []Emission) Decision {
	return Decision{
		Emitted:     emitted,
		Emissions:   emissions,
		Text:        c.text,
		LastGesture: c.lastGesture,
		HasGesture:  c.hasGesture,
	}
}

// Clear resets the accumulated text. The last emit time is kept, so a clear
// does not open the cooldown window early.
func (c *Coalescer) Clear() {
	c.text = ""
}

// Text returns the accumulated text.
func (c *Coalescer) Text() string {
	return c.text
}

// LastGesture returns the label of the last emitted detection, if any.
func (c *Coalescer) LastGesture() (string, bool) {
	return c.lastGesture, c.hasGesture
}

// LastEmit returns the time of the last emission, or the zero time.
func (c *Coalescer) LastEmit() time.Time {
	return c.lastEmit
}
