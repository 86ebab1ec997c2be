// Package testutil holds helpers shared by signn tests.
package testutil

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// Frame returns a solid BGR frame of the given size.
func Frame(width, height int, b, g, r float64) *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), height, width, gocv.MatTypeCV8UC3)
	return &mat
}

// Sequence returns n small frames whose colour changes with the index, for
// feeding a mock camera.
func Sequence(n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		shade := float64((i * 40) % 256)
		frames[i] = Frame(64, 48, shade, 255-shade, 128)
	}
	return frames
}

// CloseAll closes every frame in frames.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}

// Frames returns Sequence(n) and closes the frames when the test ends.
func Frames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := Sequence(n)
	t.Cleanup(func() { CloseAll(frames) })
	return frames
}

// WaitFor polls cond until it holds or timeout passes, then fails the test.
func WaitFor(t *testing.T, what string, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
