package analysis

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// cropPadding is the extra normalized height added above and below a region
// when cropping, so classification sees a little surrounding context.
const cropPadding = 0.01

// CropRegion cuts the vertical slice [startY, endY] out of the page image
// and re-encodes it as JPEG. The coordinates are normalized with 0 at the
// bottom of the page and 1 at the top, while image pixels grow downward, so
// the vertical axis is flipped during conversion. pad extends the slice on
// both sides and the result is clamped to the page.
func CropRegion(img image.Image, startY, endY, pad float64) ([]byte, error) {
	if endY <= startY {
		return nil, fmt.Errorf("invalid region bounds: startY %.3f >= endY %.3f", startY, endY)
	}

	bounds := img.Bounds()
	height := float64(bounds.Dy())

	top := (1 - (endY + pad)) * height
	bottom := (1 - (startY - pad)) * height
	if top < 0 {
		top = 0
	}
	if bottom > height {
		bottom = height
	}
	if int(bottom)-int(top) < 1 {
		return nil, fmt.Errorf("region [%.3f, %.3f] is empty after clamping", startY, endY)
	}

	rect := image.Rect(bounds.Min.X, bounds.Min.Y+int(top), bounds.Max.X, bounds.Min.Y+int(bottom))
	region := imaging.Crop(img, rect)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, region, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("error encoding region image: %w", err)
	}
	return buf.Bytes(), nil
}
