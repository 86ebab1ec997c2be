// Package recognizer provides the gesture model interface, a MediaPipe-backed
// implementation, and frame annotation for recognized hands.
package recognizer

import "image"

// NumLandmarks is the number of points MediaPipe reports per hand: the wrist
// followed by four joints per finger, base to tip.
const NumLandmarks = 21

// Wrist is the landmark index of the wrist.
const Wrist = 0

// Finger is the landmark index of a finger's base joint. Its tip is at
// Finger+3.
type Finger int

const (
	Thumb  Finger = 1
	Index  Finger = 5
	Middle Finger = 9
	Ring   Finger = 13
	Pinky  Finger = 17
)

// Fingers lists every finger from thumb to pinky.
var Fingers = []Finger{Thumb, Index, Middle, Ring, Pinky}

// Tip returns the landmark index of the finger tip.
func (f Finger) Tip() int { return int(f) + 3 }

// Point3D is a landmark position. X and Y are normalized to [0,1] of the image.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks holds one hand's points as reported by the model.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"`
}

// Pixel maps a normalized point onto an image of the given size.
func (p Point3D) Pixel(width, height int) image.Point {
	return image.Point{
		X: int(p.X * float64(width)),
		Y: int(p.Y * float64(height)),
	}
}
