package recognizer

import (
	"image/color"

	"gocv.io/x/gocv"
)

// Landmark marker style.
const (
	MarkerRadius = 5
	markerFill   = -1
)

// MarkerColor is the landmark marker color (red).
var MarkerColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}

// Annotate returns a copy of frame with a filled circle drawn at every landmark
// of every hand. The source frame is not modified; the caller owns the copy.
func Annotate(frame gocv.Mat, hands []Hand) gocv.Mat {
	annotated := frame.Clone()
	if annotated.Empty() {
		return annotated
	}

	width, height := annotated.Cols(), annotated.Rows()
	for _, hand := range hands {
		for _, p := range hand.Landmarks.Points {
			gocv.Circle(&annotated, p.Pixel(width, height), MarkerRadius, MarkerColor, markerFill)
		}
	}

	return annotated
}
