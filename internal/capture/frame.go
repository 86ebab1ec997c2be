package capture

import (
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured image sample. Whoever holds the *Frame owns the
// underlying Mat and must Close it exactly once.
type Frame struct {
	Mat        gocv.Mat
	Seq        uint64
	CapturedAt time.Time
}

// NewFrame wraps mat as a frame captured now.
func NewFrame(mat gocv.Mat, seq uint64) *Frame {
	return &Frame{
		Mat:        mat,
		Seq:        seq,
		CapturedAt: time.Now(),
	}
}

// Close releases the frame's pixel data. Closing a nil frame is a no-op.
func (f *Frame) Close() error {
	if f == nil {
		return nil
	}
	return f.Mat.Close()
}

// Clone returns a deep copy with the same sequence number and timestamp.
func (f *Frame) Clone() *Frame {
	return &Frame{
		Mat:        f.Mat.Clone(),
		Seq:        f.Seq,
		CapturedAt: f.CapturedAt,
	}
}
