// Package pipeline moves captured frames through a single background
// recognition worker and hands results back to a consumer that never blocks.
//
// Data flow:
//
//	capture loop -> FrameChannel -> worker -> ResultChannel -> consumer
//
// The FrameChannel is bounded and rejects on full. The ResultChannel is
// unbounded so the worker never waits on the consumer. The worker is the only
// goroutine that touches the recognizer.
package pipeline

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Detection is one recognized hand: its top gesture label and the model's
// calibrated confidence in [0,1].
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DetectionResult is produced once per processed frame.
type DetectionResult struct {
	// Annotated is a copy of the frame with landmark markers drawn on it.
	Annotated gocv.Mat
	// Detections are ordered by detection index, not by confidence.
	Detections []Detection

	Seq         uint64
	CapturedAt  time.Time
	ProcessedAt time.Time
}

// Close releases the annotated frame. Closing a nil result is a no-op.
func (r *DetectionResult) Close() error {
	if r == nil {
		return nil
	}
	return r.Annotated.Close()
}

// WorkerState is the recognition worker lifecycle.
type WorkerState int32

const (
	Stopped WorkerState = iota
	Running
	Stopping
)

func (s WorkerState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Submitted uint64      `json:"submitted"`
	Rejected  uint64      `json:"rejected"`
	Processed uint64      `json:"processed"`
	Skipped   uint64      `json:"skipped"`
	Failed    uint64      `json:"failed"`
	Queued    int         `json:"queued"`
	Pending   int         `json:"pending"`
	State     WorkerState `json:"-"`
}
