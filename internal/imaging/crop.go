package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropRegion extracts a rectangular region from an image and returns it as
// a base64 PNG, optionally scaled.
//
// The region uses the package coordinate convention: Min is inclusive and Max
// is exclusive. It must lie fully inside the image and have a positive area.
// A scale of 1.0 (or any non-positive value) leaves the crop at native size;
// other values resize with a Lanczos filter, which keeps small face crops
// legible when enlarged.
func CropRegion(img image.Image, region image.Rectangle, scale float64) (*EncodedImage, error) {
	bounds := img.Bounds()

	if !region.In(bounds) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			region.Min.X, region.Min.Y, region.Max.X, region.Max.Y,
			bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if region.Empty() {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	cropped := imaging.Crop(img, region)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 {
			newWidth = 1
		}
		if newHeight < 1 {
			newHeight = 1
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	return EncodePNG(cropped)
}
