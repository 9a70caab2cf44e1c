package imageproc

import (
	"fmt"

	"github.com/UnendingLoop/TextWatermark/internal/model"
)

// FontSize derives the pixel size of the watermark text from the image height.
// Each category gets height/divisor, floored, but never less than one more
// than the previous category, so Small < Medium < Large holds for any height.
func FontSize(height int, size model.SizeCategory) (int, error) {
	if height <= 0 {
		return 0, &model.ParamError{Field: "height", Value: fmt.Sprint(height)}
	}

	pt := 0
	for _, s := range model.SizeOrder {
		pt = max(pt+1, height/model.SizeDivisors[s])
		if s == size {
			return pt, nil
		}
	}

	return 0, &model.ParamError{Field: "size", Value: string(size)}
}
