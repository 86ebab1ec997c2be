package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrEndOfPlayback is returned by a non-looping MockCamera once every frame
// has been read.
var ErrEndOfPlayback = errors.New("mock camera: end of playback")

// MockCamera plays back a fixed set of Mats. It never takes ownership of
// them: each read returns a clone.
type MockCamera struct {
	mu     sync.Mutex
	frames []*gocv.Mat
	loop   bool
	open   bool
	next   int
	seq    uint64
	reads  int
	failAt map[int]struct{}
}

// NewMockCamera returns a closed camera over frames. With loop set, playback
// wraps around instead of ending.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{frames: frames, loop: loop, failAt: map[int]struct{}{}}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	c.open, c.next = true, 0
	c.mu.Unlock()
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	return nil
}

// ReadFrame returns a clone of the next frame. Reads registered with FailRead
// return ErrNoFrame without advancing playback.
func (c *MockCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.open:
		return nil, ErrCameraNotOpen
	case len(c.frames) == 0:
		return nil, ErrNoFrame
	}

	c.reads++
	if _, fail := c.failAt[c.reads]; fail {
		return nil, ErrNoFrame
	}

	if c.next == len(c.frames) {
		if !c.loop {
			return nil, ErrEndOfPlayback
		}
		c.next = 0
	}

	mat := c.frames[c.next].Clone()
	c.next++
	c.seq++
	return NewFrame(mat, c.seq), nil
}

func (c *MockCamera) SetFPS(int) {}
func (c *MockCamera) FPS() int   { return DefaultFPS }

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// FailRead makes the n-th call to ReadFrame (1-based) fail.
func (c *MockCamera) FailRead(n int) {
	c.mu.Lock()
	c.failAt[n] = struct{}{}
	c.mu.Unlock()
}

// Reads returns how many times ReadFrame was called on an open camera.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
