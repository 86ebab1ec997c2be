package recognizer

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrRecognizerClosed is returned by Recognize after Close.
var ErrRecognizerClosed = errors.New("recognizer is closed")

// Hand is the top gesture classification for one detected hand.
type Hand struct {
	Gesture   string        `json:"gesture"`
	Score     float64       `json:"score"`
	Landmarks HandLandmarks `json:"landmarks"`
}

// Recognizer is a loaded gesture model. Recognize is synchronous and may be
// slow. Implementations are owned by a single goroutine and need not be safe
// for concurrent use.
type Recognizer interface {
	// Recognize classifies the hands visible in frame, in detection order.
	// Returns an empty slice if no hands are detected.
	Recognize(frame gocv.Mat) ([]Hand, error)

	// Close releases the model.
	Close() error
}

// Config holds configuration options for gesture recognition.
type Config struct {
	// ModelPath is the gesture recognizer model asset.
	ModelPath string

	// ScriptPath is the recognition service script. Empty means search the usual locations.
	ScriptPath string

	// Python is the interpreter. Empty means a project venv, then python3.
	Python string

	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "gesture_recognizer.task",
		MaxHands:      2,
		MinConfidence: 0.5,
	}
}
