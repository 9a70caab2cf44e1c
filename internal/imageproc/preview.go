package imageproc

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultPreviewSide - длинная сторона превью
const DefaultPreviewSide = 500

// Preview returns a display-sized copy of img: the longest side is capped at
// side, aspect ratio is kept and images that already fit are only cloned.
func Preview(img image.Image, side int) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("nil image provided to Preview")
	}
	if side <= 0 {
		side = DefaultPreviewSide
	}

	return imaging.Fit(img, side, side, imaging.Lanczos), nil
}
