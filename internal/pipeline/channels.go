package pipeline

import (
	"sync"
	"time"

	"github.com/ayusman/signn/internal/capture"
)

// FrameChannel is a fixed-capacity FIFO of frames from the capture loop to
// the worker. Enqueue never blocks and never evicts: a full channel rejects
// the new frame.
type FrameChannel struct {
	ch chan *capture.Frame
}

// NewFrameChannel creates a FrameChannel holding at most capacity frames.
func NewFrameChannel(capacity int) *FrameChannel {
	return &FrameChannel{ch: make(chan *capture.Frame, capacity)}
}

// TryEnqueue hands frame to the channel. It returns false when the channel is
// full, in which case the caller still owns frame.
func (c *FrameChannel) TryEnqueue(frame *capture.Frame) bool {
	select {
	case c.ch <- frame:
		return true
	default:
		return false
	}
}

// Dequeue waits up to timeout for a frame. It returns false if none arrived.
func (c *FrameChannel) Dequeue(timeout time.Duration) (*capture.Frame, bool) {
	select {
	case f := <-c.ch:
		return f, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-c.ch:
		return f, true
	case <-timer.C:
		return nil, false
	}
}

// Len returns the number of queued frames.
func (c *FrameChannel) Len() int { return len(c.ch) }

// Cap returns the channel capacity.
func (c *FrameChannel) Cap() int { return cap(c.ch) }

// drain closes every queued frame and returns how many there were.
func (c *FrameChannel) drain() int {
	n := 0
	for {
		select {
		case f := <-c.ch:
			f.Close()
			n++
		default:
			return n
		}
	}
}

// ResultChannel is an unbounded FIFO of results from the worker to the
// consumer. Neither side ever blocks on it.
type ResultChannel struct {
	mu    sync.Mutex
	queue []*DetectionResult
}

// NewResultChannel creates an empty ResultChannel.
func NewResultChannel() *ResultChannel {
	return &ResultChannel{}
}

// Push appends r.
func (c *ResultChannel) Push(r *DetectionResult) {
	c.mu.Lock()
	c.queue = append(c.queue, r)
	c.mu.Unlock()
}

// TryDequeue returns the oldest result, or false if none is ready.
func (c *ResultChannel) TryDequeue() (*DetectionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil, false
	}

	r := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		c.queue = nil
	}
	return r, true
}

// Len returns the number of results waiting.
func (c *ResultChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// drain closes every waiting result and returns how many there were.
func (c *ResultChannel) drain() int {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, r := range queue {
		r.Close()
	}
	return len(queue)
}
