package recognizer

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockRecognizer is a test implementation of the Recognizer interface.
// It allows tests to control recognition results, failures and latency.
// Unlike real recognizers it is safe to configure from another goroutine
// while a worker is calling Recognize.
type MockRecognizer struct {
	mu      sync.Mutex
	hands   []Hand
	script  [][]Hand
	err     error
	failAt  map[int]error
	panicAt map[int]bool
	delay   time.Duration
	calls   int
	closed  bool
}

// NewMockRecognizer creates a new MockRecognizer instance.
func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{
		failAt:  make(map[int]error),
		panicAt: make(map[int]bool),
	}
}

// SetHands sets the hands returned by every call once any script is exhausted.
func (m *MockRecognizer) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// Script queues per-call results; call n returns script[n-1].
func (m *MockRecognizer) Script(results ...[]Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, results...)
}

// SetError sets the error that will be returned by every Recognize call.
func (m *MockRecognizer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailCall makes the n-th call (1-based) return err.
func (m *MockRecognizer) FailCall(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt[n] = err
}

// PanicCall makes the n-th call (1-based) panic.
func (m *MockRecognizer) PanicCall(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicAt[n] = true
}

// SetDelay simulates model latency.
func (m *MockRecognizer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Recognize returns the configured result for this call.
func (m *MockRecognizer) Recognize(frame gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrRecognizerClosed
	}
	m.calls++
	n := m.calls
	delay := m.delay
	shouldPanic := m.panicAt[n]
	err := m.failAt[n]
	if err == nil {
		err = m.err
	}
	hands := m.hands
	if len(m.script) > 0 {
		hands = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if shouldPanic {
		panic("mock recognizer: induced panic")
	}
	if err != nil {
		return nil, err
	}
	return hands, nil
}

// Calls returns the number of Recognize calls so far.
func (m *MockRecognizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockRecognizer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the mock closed.
func (m *MockRecognizer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockHand returns a Hand with the given classification and open-palm landmarks.
func MockHand(gesture string, score float64) Hand {
	return Hand{
		Gesture:   gesture,
		Score:     score,
		Landmarks: OpenPalmLandmarks(),
	}
}

// fingerRays gives each finger's base position and the step between its
// joints for an upright open right hand.
var fingerRays = map[Finger][4]float64{
	// baseX, baseY, dx, dy
	Thumb:  {0.55, 0.75, 0.06, -0.05},
	Index:  {0.55, 0.68, 0.01, -0.11},
	Middle: {0.50, 0.66, 0.00, -0.12},
	Ring:   {0.45, 0.68, -0.01, -0.11},
	Pinky:  {0.40, 0.70, -0.02, -0.09},
}

// OpenPalmLandmarks returns an upright open right hand with every finger
// extended.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{Handedness: "Right"}
	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	for _, f := range Fingers {
		ray := fingerRays[f]
		for j := 0; j < 4; j++ {
			landmarks.Points[int(f)+j] = Point3D{
				X: ray[0] + float64(j)*ray[2],
				Y: ray[1] + float64(j)*ray[3],
			}
		}
	}
	return landmarks
}
