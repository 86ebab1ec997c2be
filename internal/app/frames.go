package app

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrNoFrame is returned by FrameHolder.JPEG before anything was published.
var ErrNoFrame = errors.New("no frame published yet")

// ErrHolderClosed is returned once the holder has been closed.
var ErrHolderClosed = errors.New("frame holder closed")

// JPEGQuality is used for every encoded frame.
const JPEGQuality = 80

// FrameHolder keeps the most recently displayed frame. Older frames are
// replaced, never queued, so slow viewers simply see fewer frames.
type FrameHolder struct {
	mu     sync.Mutex
	mat    gocv.Mat
	has    bool
	seq    uint64
	closed bool

	// encoded caches the JPEG for encodedSeq.
	encoded    []byte
	encodedSeq uint64
}

// NewFrameHolder returns an empty holder.
func NewFrameHolder() *FrameHolder {
	return &FrameHolder{}
}

// Publish stores a copy of m. The caller keeps ownership of m.
func (h *FrameHolder) Publish(m gocv.Mat) {
	if m.Empty() {
		return
	}
	clone := m.Clone()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		clone.Close()
		return
	}
	if h.has {
		h.mat.Close()
	}
	h.mat = clone
	h.has = true
	h.seq++
}

// Seq returns the number of frames published so far.
func (h *FrameHolder) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// JPEG returns the latest frame encoded as JPEG along with its sequence
// number. Repeated calls for the same frame reuse one encoding.
func (h *FrameHolder) JPEG() ([]byte, uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, 0, ErrHolderClosed
	}
	if !h.has {
		return nil, 0, ErrNoFrame
	}
	if h.encoded != nil && h.encodedSeq == h.seq {
		return h.encoded, h.seq, nil
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, h.mat, []int{int(gocv.IMWriteJpegQuality), JPEGQuality})
	if err != nil {
		return nil, 0, err
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	h.encoded, h.encodedSeq = data, h.seq
	return data, h.seq, nil
}

// Close releases the held frame. Later publishes are discarded.
func (h *FrameHolder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	if h.has {
		h.mat.Close()
		h.has = false
	}
	h.encoded = nil
}
