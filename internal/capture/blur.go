package capture

import (
	"image"

	"gocv.io/x/gocv"
)

// PrivacyBlurSize is the Gaussian kernel used when recognition is switched off.
const PrivacyBlurSize = 99

// Blur returns a heavily blurred copy of src for display while recognition is
// inactive. The caller owns the returned Mat. An empty src yields an empty Mat.
func Blur(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	if src.Empty() {
		return dst
	}
	gocv.GaussianBlur(src, &dst, image.Point{X: PrivacyBlurSize, Y: PrivacyBlurSize}, 0, 0, gocv.BorderDefault)
	return dst
}
